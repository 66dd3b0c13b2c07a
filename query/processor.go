// Package query wires the pipeline stages into one front door: raw
// wire document in, uniform result envelope out. Every stage's failure
// is captured into the envelope; callers never see a failed response
// without an error field.
package query

import (
	"context"
	"time"

	"github.com/satishbabariya/quarry/auth"
	"github.com/satishbabariya/quarry/internal/debug"
	"github.com/satishbabariya/quarry/metadata"
	"github.com/satishbabariya/quarry/pool"
	"github.com/satishbabariya/quarry/query/ast"
	"github.com/satishbabariya/quarry/query/cache"
	"github.com/satishbabariya/quarry/query/compile"
	"github.com/satishbabariya/quarry/query/executor"
	"github.com/satishbabariya/quarry/query/normalize"
	"github.com/satishbabariya/quarry/query/qerror"
	"github.com/satishbabariya/quarry/query/resolve"
)

// DatabaseResolver maps a database id to its connection spec and
// metadata provider. Backed by the external application database.
type DatabaseResolver interface {
	DatabaseSpec(ctx context.Context, id int64) (pool.Spec, error)
	MetadataProvider(ctx context.Context, id int64) (metadata.Provider, error)
}

// Processor runs queries end to end.
type Processor struct {
	Databases DatabaseResolver
	Pools     *pool.Manager
	Auth      auth.Checker
	Recorder  executor.Recorder
	// Cache serves completed results for repeated queries; optional.
	Cache *cache.ResultCache
	// CacheTTL bounds how long a cached result is served; zero uses the
	// cache's default.
	CacheTTL time.Duration
	// Card expands saved-card sources; optional.
	Card func(ctx context.Context, id int64) (*ast.StructuredQuery, error)
	// Timeout bounds each execution; zero disables it.
	Timeout time.Duration
	// MaxRows caps materialized rows per query; zero means unlimited.
	MaxRows int
}

// Process executes one raw query document for a user and always
// returns a well-formed envelope.
func (p *Processor) Process(ctx context.Context, userID int64, raw map[string]any) *executor.Result {
	result, exec, hash := p.process(ctx, userID, raw)
	if p.Recorder != nil && exec != nil {
		p.Recorder.Write(executor.Record{
			ExecutionID: exec.ID,
			QueryHash:   hash,
			Driver:      exec.Driver,
			StartedAt:   time.Now().Add(-exec.Elapsed()),
			RunningTime: exec.Elapsed(),
			RowCount:    result.RowCount,
			Status:      result.Status,
			Error:       result.Error,
		})
	}
	return result
}

func (p *Processor) process(ctx context.Context, userID int64, raw map[string]any) (*executor.Result, *executor.Execution, string) {
	normalized, err := normalize.Query(raw)
	if err != nil {
		return executor.FailedResult(err), nil, ""
	}
	hash := executor.QueryHash(normalize.ToWire(normalized))

	spec, err := p.Databases.DatabaseSpec(ctx, normalized.Database)
	if err != nil {
		return executor.FailedResult(qerror.Wrap(qerror.TypeInvalidQuery, err,
			"database %d is not configured", normalized.Database)), nil, hash
	}

	provider, err := p.Databases.MetadataProvider(ctx, normalized.Database)
	if err != nil {
		return executor.FailedResult(qerror.Wrap(qerror.TypeFieldResolution, err,
			"metadata for database %d unavailable", normalized.Database)), nil, hash
	}

	resolved, err := resolve.Query(ctx, provider, normalized)
	if err != nil {
		return executor.FailedResult(err), nil, hash
	}

	// Authorization runs before compilation; a denial never reaches
	// the compiler.
	checker := p.Auth
	if checker == nil {
		checker = auth.AllowAll{}
	}
	allowed, err := checker.CanRun(ctx, userID, resolved)
	if err != nil {
		return executor.FailedResult(qerror.Wrap(qerror.TypePermissions, err, "authorization check failed")), nil, hash
	}
	if !allowed {
		return executor.FailedResult(qerror.Permissions("you do not have permission to run this query")), nil, hash
	}

	if p.Cache != nil {
		if cached, ok := p.Cache.Get(normalized.Database, hash); ok {
			return cached, nil, hash
		}
	}

	exec := executor.NewExecution(spec.Engine)
	exec.Compiling()
	native, err := compile.Compile(ctx, compile.Env{Metadata: provider, Card: p.Card}, spec.Engine, resolved)
	if err != nil {
		return executor.FailedResult(err), exec, hash
	}
	debug.Debug("compiled query", "driver", spec.Engine, "sql", native.SQL)

	db, err := p.Pools.Acquire(ctx, spec)
	if err != nil {
		return executor.FailedResult(qerror.Execution(spec.Engine, err)), exec, hash
	}

	sink := &executor.CappedSink{Cap: p.MaxRows}
	opts := executor.Options{Timeout: p.Timeout, MaxRows: p.MaxRows}
	if err := exec.Run(ctx, db, native, opts, sink); err != nil {
		return executor.FailedResult(err), exec, hash
	}
	result := sink.Result()
	if p.Cache != nil {
		p.Cache.Put(normalized.Database, hash, result, p.CacheTTL)
	}
	return result, exec, hash
}
