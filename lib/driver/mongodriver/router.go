package mongodriver

import (
	"context"

	"github.com/ValentinKolb/uorm/lib/driver"
	"github.com/pkg/errors"
)

// NewRouter connects the meta database and every shard. If one connection fails,
// the already established ones are closed again.
func NewRouter(ctx context.Context, config RouterConfig) (driver.Router, error) {
	meta, err := Connect(ctx, config.Meta)
	if err != nil {
		return nil, errors.Wrap(err, "meta database")
	}

	router := &driver.StaticRouter{MetaDriver: meta, ShardMap: make(map[string]driver.Driver, len(config.Shards))}
	for id, shardConfig := range config.Shards {
		shard, err := Connect(ctx, shardConfig)
		if err != nil {
			_ = router.Close(ctx)
			return nil, errors.Wrapf(err, "shard %s", id)
		}
		router.ShardMap[id] = shard
	}

	Logger.Infof("connected mongodb router%s", config.String())
	return router, nil
}
