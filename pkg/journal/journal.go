// Package journal keeps a record of every upload attempt.
package journal

import (
	"context"
	"sync"
	"time"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

type (
	Journal interface {
		Put(ctx context.Context, r Record) error
		// Get returns nil without error when no record has the id.
		Get(ctx context.Context, transferID string) (*Record, error)
	}

	Record struct {
		TransferID string `dynamodbav:"transfer-id" json:"transferId"`
		Host       string `dynamodbav:"host" json:"host"`
		Protocol   string `dynamodbav:"protocol" json:"protocol"`
		LocalPath  string `dynamodbav:"localPath" json:"localPath"`
		RemotePath string `dynamodbav:"remotePath" json:"remotePath"`
		Bytes      int64  `dynamodbav:"bytes" json:"bytes"`
		Status     string `dynamodbav:"status" json:"status"`
		Error      string `dynamodbav:"error,omitempty" json:"error,omitempty"`
		StartedAt  int64  `dynamodbav:"startedAt" json:"startedAt"`
		FinishedAt int64  `dynamodbav:"finishedAt" json:"finishedAt"`
	}

	Config struct {
		Enabled                bool   `mapstructure:"enabled" yaml:"enabled"`
		TableName              string `mapstructure:"tableName" yaml:"tableName" validate:"required_if=Enabled true"`
		CreateMissingResources bool   `mapstructure:"createMissingResources" yaml:"createMissingResources"`
	}

	noop struct{}

	// Memory keeps records in process.
	Memory struct {
		mu      sync.RWMutex
		records map[string]Record
	}
)

// Noop discards every record.
var Noop Journal = noop{}

func (noop) Put(context.Context, Record) error { return nil }

func (noop) Get(context.Context, string) (*Record, error) { return nil, nil }

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Put(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.TransferID] = r
	return nil
}

func (m *Memory) Get(_ context.Context, transferID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[transferID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Duration is the wall time between start and finish.
func (r Record) Duration() time.Duration {
	return time.Duration(r.FinishedAt-r.StartedAt) * time.Millisecond
}
