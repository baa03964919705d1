package server

import (
	"fmt"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/uorm/lib/db"
	"github.com/ValentinKolb/uorm/lib/db/engines/maple"
	"github.com/ValentinKolb/uorm/lib/logging"
	"github.com/ValentinKolb/uorm/lib/store"
	"github.com/ValentinKolb/uorm/lib/store/dstore"
	"github.com/ValentinKolb/uorm/lib/store/lstore"
	"github.com/ValentinKolb/uorm/rpc/common"
	"github.com/ValentinKolb/uorm/rpc/serializer"
	"github.com/ValentinKolb/uorm/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is one shard of the server: the store and the adapter
// that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
	engine  db.KVDB // nil for dstore shards, the engine belongs to the state machine
}

// NewRPCServer creates a new cache server.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewCBORSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) IRPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	nodeHost   *dragonboat.NodeHost
	closeOnce  sync.Once
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IRPCServer)
// --------------------------------------------------------------------------

func (s *rpcServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

func (s *rpcServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.transport.Close()
		s.shards.Range(func(id uint64, shard serverShard) bool {
			if shard.engine != nil {
				if cerr := shard.engine.Close(); cerr != nil {
					Logger.Warningf("failed to close engine of shard %d: %v", id, cerr)
				}
			}
			return true
		})
		if s.nodeHost != nil {
			s.nodeHost.Close()
		}
		Logger.Infof("server stopped")
	})
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *rpcServer) init() error {
	if s.config.LogLevel != "" {
		if err := logging.Init(s.config.LogLevel); err != nil {
			return err
		}
	}
	Logger.Infof(s.config.String())

	if len(s.config.Shards) == 0 {
		return fmt.Errorf("no shards configured")
	}

	// Only create the NodeHost if we have raft shards
	if s.config.HasRemoteShard() {
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	for _, shardConfig := range s.config.Shards {
		if _, exists := s.shards.Load(shardConfig.ShardID); exists {
			return fmt.Errorf("shard %d configured twice", shardConfig.ShardID)
		}

		switch shardConfig.Type {
		case common.ShardTypeLocalIStore:
			engine := maple.NewMapleDB(nil)
			s.shards.Store(shardConfig.ShardID, serverShard{
				Store:   lstore.NewLocalStore(func() db.KVDB { return engine }),
				Adapter: NewIStoreServerAdapter(),
				engine:  engine,
			})
			Logger.Infof("created local store for shard %d", shardConfig.ShardID)

		case common.ShardTypeRemoteIStore:
			factory := dstore.CreateStateMachineFactory(func() db.KVDB { return maple.NewMapleDB(nil) })
			if err := s.nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false, factory, s.config.ToDragonboatConfig(shardConfig.ShardID)); err != nil {
				return fmt.Errorf("failed to start shard %d: %w", shardConfig.ShardID, err)
			}
			s.shards.Store(shardConfig.ShardID, serverShard{
				Store:   dstore.NewDistributedStore(s.nodeHost, shardConfig.ShardID, timeout),
				Adapter: NewIStoreServerAdapter(),
			})
			Logger.Infof("started raft replica for shard %d", shardConfig.ShardID)

		default:
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}
	}

	s.transport.RegisterHandler(s.handle)
	Logger.Infof("setup of %d shards completed", len(s.config.Shards))
	return nil
}

// handle is the transport.ServerHandleFunc of the server
func (s *rpcServer) handle(shardId uint64, req []byte) []byte {
	var respMsg *common.Message

	var msg common.Message
	if shard, ok := s.shards.Load(shardId); !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		respMsg = shard.Adapter.Handle(&msg, shard.Store)
	}

	metrics.GetOrCreateCounter(fmt.Sprintf(`uorm_cache_server_requests_total{op=%q}`, msg.MsgType)).Inc()
	if respMsg.Err != "" {
		metrics.GetOrCreateCounter(fmt.Sprintf(`uorm_cache_server_errors_total{op=%q}`, msg.MsgType)).Inc()
	}

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}
