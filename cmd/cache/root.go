package cache

import (
	"github.com/ValentinKolb/uorm/cmd/util"
	"github.com/ValentinKolb/uorm/lib/store"
	"github.com/ValentinKolb/uorm/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// CacheCommands represents the cache command group
	CacheCommands = &cobra.Command{
		Use:               "cache",
		Short:             "Operate on one shard of a cache server",
		PersistentPreRunE: setupCacheClient,
	}
)

func init() {
	util.SetupRPCClientFlags(CacheCommands)

	CacheCommands.PersistentFlags().Int("shard", 100, util.WrapString("ID of the shard to connect to"))

	setCmd.Flags().Duration("ttl", 0, util.WrapString("Time after which the entry disappears (0 = never)"))

	CacheCommands.AddCommand(setCmd)
	CacheCommands.AddCommand(getCmd)
	CacheCommands.AddCommand(delCmd)
	CacheCommands.AddCommand(hasCmd)
	CacheCommands.AddCommand(infoCmd)
}

// setupCacheClient initializes the RPC store client
func setupCacheClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}
	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	rpcStore, err = client.NewRPCStore(util.GetShardID(), *util.GetClientConfig(), t, s)
	return err
}
