package backend

import (
	"context"
	"fmt"
	"time"

	"splitsmart/internal/amqp"
	"splitsmart/internal/cache"
	"splitsmart/internal/log"
	"splitsmart/internal/services"
	"splitsmart/internal/storage"
	"splitsmart/internal/storage/memory"
)

const (
	planKeyPrefix    = "splitsmart:"
	cleanupInterval  = time.Minute
	redisDialTimeout = 5 * time.Second
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(_ context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	store := memory.New()

	f.logger.Warn("Initialized memory backend; data is lost on restart")

	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}

// CreatePlanCache returns a Redis-backed cache when RedisAddr is set so that
// API and worker share plans, and an in-process LRU otherwise.
func (f *DefaultFactory) CreatePlanCache(ctx context.Context, config Config) (*PlanCacheResult, error) {
	if config.RedisAddr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
		defer cancel()

		client, err := cache.NewRedisClient(dialCtx, config.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", config.RedisAddr, err)
		}
		f.logger.Info("Initialized Redis plan cache", "addr", config.RedisAddr, "ttl", config.CacheTTL)
		return &PlanCacheResult{
			Cache:   cache.NewRedisCache[services.Plan](client, planKeyPrefix, config.CacheTTL, f.logger),
			Kind:    "redis",
			Cleanup: client.Close,
		}, nil
	}

	size := config.CacheSize
	if size < 1 {
		size = 1
	}
	lru := cache.NewLRUCache[services.Plan](size, config.CacheTTL)
	manager := cache.NewManager(f.logger)
	manager.Register(lru)
	manager.StartCleanup(cleanupInterval)

	f.logger.Info("Initialized in-process plan cache", "size", size, "ttl", config.CacheTTL)
	return &PlanCacheResult{
		Cache: lru,
		Kind:  "lru",
		Cleanup: func() error {
			manager.Stop()
			return nil
		},
	}, nil
}

// CreatePublisher connects to the broker. Without an AMQP URL expense events
// are not published and it returns nil, nil.
func (f *DefaultFactory) CreatePublisher(config Config) (Publisher, error) {
	if config.AMQPURL == "" {
		f.logger.Info("AMQP disabled; expense events will not be published")
		return nil, nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client, nil
}
