// Package history records every program run the HTTP execution
// service handles — source, selector, output, and whether it
// succeeded — so a caller can later ask "what did I run last Tuesday"
// without keeping their own log.
package history

import (
	"context"
	"time"
)

// RunRecord is one logged invocation of a jqawk program.
type RunRecord struct {
	ID        int64
	Source    string
	Selector  string
	Success   bool
	Error     string
	Output    []string
	CreatedAt time.Time
}

// Store persists and lists RunRecords.
type Store interface {
	Record(ctx context.Context, rec RunRecord) (int64, error)
	List(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}
