package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lni/dragonboat/v4/config"
)

// --------------------------------------------------------------------------
// helper functions to interface with Dragonboat
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to the config of one raft shard
func (c *ServerConfig) ToDragonboatConfig(shardId uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardId,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// Transport configuration
// --------------------------------------------------------------------------

// TransportConfig holds the socket level settings shared by client and server.
type TransportConfig struct {
	// Endpoint is the listen address of a server
	Endpoint string
	// Endpoints are the server addresses a client connects to
	Endpoints []string

	// client side
	RetryCount             int
	ConnectionsPerEndpoint int

	// server side
	WorkersPerConn int
	BufferSize     int

	// tcp socket options
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // <0 = system default
	WriteBufferSize int
	ReadBufferSize  int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type ServerShardType string

const (
	ShardTypeLocalIStore  ServerShardType = "lstore"
	ShardTypeRemoteIStore ServerShardType = "dstore"
)

// ParseShardType accepts the names used on the command line
func ParseShardType(s string) (ServerShardType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lstore", "local":
		return ShardTypeLocalIStore, nil
	case "dstore", "raft", "remote":
		return ShardTypeRemoteIStore, nil
	default:
		return "", fmt.Errorf("invalid shard type %q, must be lstore or dstore", s)
	}
}

type ServerShard struct {
	ShardID uint64
	Type    ServerShardType
}

// ServerConfig holds all configuration parameters of a cache server.
type ServerConfig struct {
	Shards []ServerShard

	// Dragonboat parameters (only used for dstore shards)
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	TimeoutSecond int64
	Transport     TransportConfig
	LogLevel      string
}

// HasRemoteShard checks if the configuration contains any raft shards
func (c *ServerConfig) HasRemoteShard() bool {
	for _, shard := range c.Shards {
		if shard.Type == ShardTypeRemoteIStore {
			return true
		}
	}
	return false
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Shards")
	for _, shard := range c.Shards {
		addField(strconv.FormatUint(shard.ShardID, 10), string(shard.Type))
	}

	if c.HasRemoteShard() {
		addSection("Node Identity")
		addField("RAFT Address", c.ClusterMembers[c.ReplicaID])
		addField("Node ID", strconv.FormatUint(c.ReplicaID, 10))

		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))

		addSection("Storage")
		addField("Data Directory", c.DataDir)

		addSection("Cluster Members")
		var keys []uint64
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			addField(fmt.Sprintf("Node %d", k), c.ClusterMembers[k])
		}
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	TimeoutSecond int
	Transport     TransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))

	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
