package backend

import (
	"context"
	"time"

	"splitsmart/internal/cache"
	"splitsmart/internal/services"
	"splitsmart/internal/storage"
)

// CleanupFunc releases resources held by a created component.
type CleanupFunc func() error

// BackendResult contains the store and its cleanup function.
type BackendResult struct {
	Store   storage.Store
	Cleanup CleanupFunc
}

// PlanCacheResult contains the settlement plan cache and its cleanup function.
type PlanCacheResult struct {
	Cache   cache.Cache[services.Plan]
	Kind    string
	Cleanup CleanupFunc
}

// Factory creates the process-wide infrastructure from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreatePlanCache(ctx context.Context, config Config) (*PlanCacheResult, error)
	// CreatePublisher returns nil, nil when no broker is configured.
	CreatePublisher(config Config) (Publisher, error)
}

// Publisher is an event publisher that owns a broker connection.
type Publisher interface {
	services.EventPublisher
	Close() error
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Broker
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Plan cache; Redis is used when RedisAddr is set
	RedisAddr string
	CacheTTL  time.Duration
	CacheSize int
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
