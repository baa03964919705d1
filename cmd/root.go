package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/uorm/cmd/cache"
	"github.com/ValentinKolb/uorm/cmd/docs"
	"github.com/ValentinKolb/uorm/cmd/serve"
	"github.com/ValentinKolb/uorm/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "uorm",
		Short: "cached document mapping with submodels and shards",
		Long: fmt.Sprintf(`uorm (v%s)

Document mapping on top of MongoDB with a two-tier cache. The shared
cache tier is served by "uorm serve", optionally replicated with RAFT.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of uorm",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("uorm v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(cache.CacheCommands)
	RootCmd.AddCommand(docs.DocsCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer of the cache protocol (json, gob, cbor)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport of the cache protocol (http, tcp)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
