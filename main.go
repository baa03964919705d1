package main

import "github.com/ValentinKolb/uorm/cmd"

func main() {
	cmd.Execute()
}
