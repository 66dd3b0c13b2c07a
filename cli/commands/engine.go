package commands

import (
	"github.com/satishbabariya/quarry/config"
	"github.com/satishbabariya/quarry/internal/debug"
	"github.com/satishbabariya/quarry/pool"
	"github.com/satishbabariya/quarry/query"
	"github.com/satishbabariya/quarry/query/cache"
	"github.com/satishbabariya/quarry/query/executor"
)

// engine bundles the runtime a command needs: loaded config, the pool
// manager, and a ready processor.
type engine struct {
	cfg       *config.Config
	pools     *pool.Manager
	resolver  *config.Resolver
	processor *query.Processor
}

func newEngine() (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose && !verbose {
		debug.Init(true)
	}

	pools := pool.NewManager(cfg.PoolSettings())
	resolver := config.NewResolver(cfg, pools)

	var results *cache.ResultCache
	if cfg.Cache.Enabled {
		results = cache.New(cfg.Cache.Size, cfg.Cache.TTL)
	}

	return &engine{
		cfg:      cfg,
		pools:    pools,
		resolver: resolver,
		processor: &query.Processor{
			Databases: resolver,
			Pools:     pools,
			Recorder:  logRecorder{},
			Cache:     results,
			Timeout:   cfg.Timeout,
			MaxRows:   cfg.MaxRows,
		},
	}, nil
}

func (e *engine) Close() {
	e.pools.Close()
}

// logRecorder surfaces execution records in the debug log.
type logRecorder struct{}

func (logRecorder) Write(r executor.Record) {
	debug.Debug("execution finished",
		"execution_id", r.ExecutionID.String(),
		"query_hash", r.QueryHash,
		"driver", r.Driver,
		"running_time", r.RunningTime.String(),
		"row_count", r.RowCount,
		"status", r.Status,
	)
}
