package query

import (
	"context"
	sqldriver "database/sql/driver"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/quarry/internal/sqltest"
	"github.com/satishbabariya/quarry/metadata"
	"github.com/satishbabariya/quarry/pool"
	"github.com/satishbabariya/quarry/query/cache"
	"github.com/satishbabariya/quarry/query/executor"
)

// End-to-end run of the whole pipeline: wire document in, envelope
// out, with the execution recorded and the result cached.
func TestEndToEndStructuredQuery(t *testing.T) {
	pools := pool.NewManager(pool.Settings{})
	defer pools.Close()

	resolver := &staticResolver{
		provider: &metadata.StaticProvider{
			Tables: map[int64]*metadata.Table{
				1: {ID: 1, Schema: "public", Name: "orders"},
			},
			Fields: map[int64]*metadata.Field{
				10: {ID: 10, TableID: 1, Name: "total", BaseType: metadata.TypeDecimal},
				11: {ID: 11, TableID: 1, Name: "created_at", BaseType: metadata.TypeDateTime},
			},
		},
	}
	rec := &captureRecorder{}
	p := &Processor{
		Databases: resolver,
		Pools:     pools,
		Recorder:  rec,
		Cache:     cache.New(16, time.Minute),
		Timeout:   5 * time.Second,
	}

	testStore.SetResult(
		[]string{"created_at_month", "sum"},
		[][]sqldriver.Value{
			{"2024-01-01", 1200.50},
			{"2024-02-01", 980.25},
		},
	)

	doc := map[string]any{
		"database": 1,
		"type":     "query",
		"query": map[string]any{
			"source-table": 1,
			"aggregation":  []any{[]any{"sum", []any{"field", 10, nil}}},
			"breakout":     []any{[]any{"field", 11, map[string]any{"temporal-unit": "month"}}},
			"filter":       []any{">", []any{"field", 10, nil}, 100},
			"limit":        50,
		},
	}

	res := p.Process(context.Background(), 1, doc)
	require.Equal(t, executor.StatusCompleted, res.Status)
	require.Equal(t, 2, res.RowCount)
	require.Len(t, res.Data.Cols, 2)
	assert.Equal(t, "created_at_month", res.Data.Cols[0].Name)
	assert.Equal(t, "sum", res.Data.Cols[1].Name)
	assert.Equal(t, "2024-01-01", res.Data.Rows[0][0])

	require.Len(t, rec.records, 1)
	assert.NotEmpty(t, rec.records[0].QueryHash)
	assert.Equal(t, testEngine, rec.records[0].Driver)

	// Its twin is served from the cache without touching the pool.
	before := len(testStore.Queries())
	again := p.Process(context.Background(), 1, doc)
	require.Equal(t, executor.StatusCompleted, again.Status)
	assert.Equal(t, before, len(testStore.Queries()))
	assert.Equal(t, int64(1), p.Cache.Stats().Hits)
}

func TestEndToEndNativeQueryWithParameters(t *testing.T) {
	pools := pool.NewManager(pool.Settings{})
	defer pools.Close()

	const sql = "SELECT email FROM users WHERE id = ?"
	testStore.ByQuery = map[string]sqltest.Result{
		sql: {Cols: []string{"email"}, Rows: [][]sqldriver.Value{{"ada@example.com"}}},
	}
	defer func() { testStore.ByQuery = nil }()

	p := &Processor{Databases: &staticResolver{}, Pools: pools}
	res := p.Process(context.Background(), 1, map[string]any{
		"database": 1,
		"type":     "native",
		"native":   map[string]any{"query": sql, "params": []any{int64(5)}},
	})
	require.Equal(t, executor.StatusCompleted, res.Status)
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, "ada@example.com", res.Data.Rows[0][0])
}
