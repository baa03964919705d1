package docs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/uorm/cmd/util"
	"github.com/ValentinKolb/uorm/lib/cache"
	"github.com/ValentinKolb/uorm/lib/db"
	"github.com/ValentinKolb/uorm/lib/db/engines/maple"
	"github.com/ValentinKolb/uorm/lib/driver"
	"github.com/ValentinKolb/uorm/lib/driver/mongodriver"
	"github.com/ValentinKolb/uorm/lib/store"
	"github.com/ValentinKolb/uorm/lib/store/lstore"
	"github.com/ValentinKolb/uorm/lib/uorm"
	"github.com/ValentinKolb/uorm/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	router  driver.Router
	manager *cache.Manager
	coll    *uorm.Collection

	// DocsCommands represents the docs command group
	DocsCommands = &cobra.Command{
		Use:   "docs",
		Short: "Read documents from MongoDB through the two-tier cache",
		Long: `Read documents from MongoDB through the two-tier cache. The collection is mapped
with an ad-hoc schema whose key field is set with --key-field. The shared cache tier
is a shard of a cache server started with "uorm serve" (disable it with --l2=false).`,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}
)

func init() {
	util.SetupRPCClientFlags(DocsCommands)

	flags := DocsCommands.PersistentFlags()
	flags.String("mongo-uri", "mongodb://localhost:27017", util.WrapString("MongoDB connection string"))
	flags.String("database", "uorm", util.WrapString("Database holding the non-sharded collections"))
	flags.Int("mongo-timeout", 10, util.WrapString("Timeout of MongoDB operations in seconds"))
	flags.String("mongo-shards", "", util.WrapString("Sharded databases in the format 'id=database,id=database'"))
	flags.String("shard", "", util.WrapString("Shard to operate on, empty for the non-sharded database"))
	flags.String("collection", "", util.WrapString("Collection to operate on"))
	flags.String("key-field", "_id", util.WrapString("Field that get and invalidate look up for values that are no ObjectID"))
	flags.Bool("l2", true, util.WrapString("Use the cache server as shared cache tier"))
	flags.Uint64("cache-shard", 100, util.WrapString("Shard of the cache server used as shared tier"))
	flags.Duration("cache-ttl", 10*time.Minute, util.WrapString("Lifetime of cached documents (0 = forever)"))

	DocsCommands.AddCommand(pingCmd)
	DocsCommands.AddCommand(findCmd)
	DocsCommands.AddCommand(getCmd)
	DocsCommands.AddCommand(invalidateCmd)
}

// setup connects to MongoDB and the cache tiers and binds the collection
func setup(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(viper.GetInt("mongo-timeout"))*time.Second)
	defer cancel()

	meta := mongodriver.Config{
		URI:           viper.GetString("mongo-uri"),
		Database:      viper.GetString("database"),
		TimeoutSecond: viper.GetInt("mongo-timeout"),
	}
	shards, err := mongodriver.ParseShards(viper.GetString("mongo-shards"), meta.URI, meta.TimeoutSecond)
	if err != nil {
		return err
	}
	if router, err = mongodriver.NewRouter(ctx, mongodriver.RouterConfig{Meta: meta, Shards: shards}); err != nil {
		return err
	}

	local := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
	var shared store.IStore
	if viper.GetBool("l2") {
		s, err := util.GetSerializer()
		if err != nil {
			return err
		}
		t, err := util.GetClientTransport()
		if err != nil {
			return err
		}
		if shared, err = client.NewRPCStore(viper.GetUint64("cache-shard"), *util.GetClientConfig(), t, s); err != nil {
			return err
		}
	}
	manager = cache.NewManager(local, shared, cache.WithName("docs"), cache.WithTTL(viper.GetDuration("cache-ttl")))

	if cmd == pingCmd {
		return nil
	}
	return bindCollection()
}

func bindCollection() error {
	name := viper.GetString("collection")
	if name == "" {
		return fmt.Errorf("--collection is required")
	}

	schema := uorm.Schema{Collection: name, KeyField: viper.GetString("key-field")}
	if schema.KeyField != "" && schema.KeyField != "_id" {
		schema.Fields = []uorm.Field{{Name: schema.KeyField}}
	}
	model, err := uorm.NewModel(schema)
	if err != nil {
		return err
	}

	if shard := strings.TrimSpace(viper.GetString("shard")); shard != "" {
		coll, err = uorm.NewShardedCollection(model, router, manager).Shard(shard)
		return err
	}
	coll = uorm.NewCollection(model, router.Meta(), manager)
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if router == nil {
		return nil
	}
	return router.Close(context.Background())
}
