package executor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Record is the write-once execution record persisted after every run,
// used downstream for caching and auditing. The store itself is
// external; the executor only produces the fields.
type Record struct {
	ExecutionID uuid.UUID   `json:"execution_id"`
	QueryHash   string      `json:"query_hash"`
	DatabaseID  int64       `json:"database_id"`
	Driver      string      `json:"driver"`
	StartedAt   time.Time   `json:"started_at"`
	RunningTime time.Duration `json:"running_time"`
	RowCount    int         `json:"row_count"`
	Status      string      `json:"status"`
	Error       string      `json:"error,omitempty"`
}

// Recorder receives execution records. Write must not block query
// completion on slow stores.
type Recorder interface {
	Write(Record)
}

// NopRecorder discards records.
type NopRecorder struct{}

func (NopRecorder) Write(Record) {}

// QueryHash derives a stable hash of the canonical wire form of a
// query. encoding/json marshals map keys sorted, so equal queries hash
// equal regardless of original clause ordering.
func QueryHash(wire map[string]any) string {
	b, err := json.Marshal(wire)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
