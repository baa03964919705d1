package cache

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := cmd.Flags().GetDuration("ttl")
			if err != nil {
				return err
			}
			if err := rpcStore.SetE(args[0], []byte(args[1]), ttl); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			resp, ok, err := rpcStore.Get(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			deleted, err := rpcStore.Delete(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, deleted=%t\n", key, deleted)
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			found, err := rpcStore.Has(key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", key, found)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints the engine info of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetDBInfo()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)
