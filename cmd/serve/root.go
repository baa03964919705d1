package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/uorm/cmd/util"
	"github.com/ValentinKolb/uorm/lib/db/util"
	"github.com/ValentinKolb/uorm/rpc/common"
	"github.com/ValentinKolb/uorm/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a cache server",
		Long:    `Start a cache server serving the shared (L2) cache tier. The configuration can be set via command line flags or environment variables. The format of the environment variables is UORM_<flag> (e.g. UORM_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100=lstore", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=TYPE where TYPE is one of: lstore, dstore"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(dstore) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. Election and heartbeat timeouts are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("(dstore) SnapshotEntries defines how often the state machine should be snapshotted automatically, in applied Raft log entries. 0 disables automatic snapshots (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("(dstore) CompactionOverhead defines the number of log entries kept after a snapshot. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("(dstore) DataDir is the directory used for the raft log and snapshots"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(dstore) ReplicaID is the unique name of this node (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(dstore) ClusterMembers is a comma-separated list of raft addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("(dstore) Timeout of raft proposals and reads in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the cache server will listen"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Requests handled in parallel per connection (tcp only)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("Read buffer size per connection in KB (tcp only)"))

	key = "transport-tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "transport-tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval in seconds (tcp only)"))

	key = "transport-tcp-linger"
	ServeCmd.PersistentFlags().Int(key, -1, cmdUtil.WrapString("The linger time in seconds, -1 keeps the system default (tcp only)"))
}

// processConfig converts flags and environment variables into the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Shards = []common.ServerShard{}
	for _, shardConfig := range strings.Split(viper.GetString("shards"), ",") {
		parts := strings.Split(shardConfig, "=")
		if len(parts) != 2 {
			return fmt.Errorf("invalid shard format: %s (expected ID=TYPE)", shardConfig)
		}

		shardID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid shard ID %s: %v", parts[0], err)
		}

		shardType, err := common.ParseShardType(parts[1])
		if err != nil {
			return err
		}

		serveCmdConfig.Shards = append(serveCmdConfig.Shards, common.ServerShard{
			ShardID: shardID,
			Type:    shardType,
		})
	}

	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.TransportConfig{
		Endpoint:        viper.GetString("endpoint"),
		WorkersPerConn:  viper.GetInt("workers-per-conn"),
		BufferSize:      viper.GetInt("buffer-size") * 1024,
		TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
		TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
	}

	if id := viper.GetString("replica-id"); id != "" {
		serveCmdConfig.ReplicaID = uint64(util.HashString(id, 0))
	} else if serveCmdConfig.HasRemoteShard() {
		return fmt.Errorf("ReplicaId is required for dstore shards")
	}

	if clusterMembers := viper.GetString("cluster-members"); clusterMembers != "" {
		serveCmdConfig.ClusterMembers = make(map[uint64]string)
		for _, member := range strings.Split(clusterMembers, ",") {
			parts := strings.Split(member, "=")
			if len(parts) != 2 {
				return fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
			}
			serveCmdConfig.ClusterMembers[uint64(util.HashString(parts[0], 0))] = parts[1]
		}
	} else if serveCmdConfig.HasRemoteShard() {
		return fmt.Errorf("ClusterMembers is required for dstore shards")
	}

	if _, ok := serveCmdConfig.ClusterMembers[serveCmdConfig.ReplicaID]; !ok && serveCmdConfig.HasRemoteShard() {
		return fmt.Errorf("no address found for replica ID %d in cluster members", serveCmdConfig.ReplicaID)
	}

	return nil
}

// run starts the cache server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport(serveCmdConfig.Transport.BufferSize, serveCmdConfig.Transport.WorkersPerConn)
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(*serveCmdConfig, t, s)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		_ = serv.Close()
	}()

	return serv.Serve()
}
