package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"stockdata/config"
)

// Provider resolves and memoizes a single database handle for the process.
// The handle is constructed lazily on first use and shared by every
// repository; Reset exists for tests. When mock mode is configured the
// in-memory store is substituted transparently.
type Provider struct {
	cfg    *config.Config
	logger *zap.Logger

	mu     sync.Mutex
	db     Database
	closer func(context.Context) error
}

// NewProvider creates a provider bound to the given configuration
func NewProvider(cfg *config.Config, logger *zap.Logger) *Provider {
	return &Provider{cfg: cfg, logger: logger}
}

// Get returns the memoized database handle, constructing it on first call.
// Connection failures propagate unmodified; the next call tries again.
func (p *Provider) Get(ctx context.Context) (Database, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		return p.db, nil
	}

	if p.cfg.Mongo.UseMock {
		p.logger.Info("using in-memory mock store")
		p.db = NewMemoryDatabase()
		return p.db, nil
	}

	db, closer, err := OpenMongo(ctx, p.cfg.Mongo.URI, p.cfg.Mongo.Database)
	if err != nil {
		p.logger.Error("failed to open document store",
			zap.Error(err),
			zap.String("database", p.cfg.Mongo.Database))
		return nil, err
	}

	p.logger.Info("connected to document store", zap.String("database", p.cfg.Mongo.Database))
	p.db = db
	p.closer = closer
	return p.db, nil
}

// Reset drops the memoized handle and disconnects the client if one was
// opened. Intended for tests.
func (p *Provider) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.closer != nil {
		err = p.closer(ctx)
	}
	p.db = nil
	p.closer = nil
	return err
}
