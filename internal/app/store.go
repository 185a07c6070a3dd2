package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkwave/portal/internal/accounts"
	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/platform/db"
	"github.com/linkwave/portal/internal/platform/docstore"
	"github.com/linkwave/portal/internal/shared"
)

// Stores bundles the persistence backends opened from StoreConfig.
type Stores struct {
	Accounts accounts.Store
	Pool     *pgxpool.Pool
	audit    *shared.AuditLogger
	closers  []func()
}

// OpenStores connects the configured account store and, when a PostgreSQL
// DSN is present, the audit log. Schemas and indexes are ensured on open.
func OpenStores(ctx context.Context, cfg StoreConfig, cat *catalog.Catalog, logger *slog.Logger) (*Stores, error) {
	s := &Stores{}
	if cfg.PGDSN != "" {
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		s.Pool = pool
		s.closers = append(s.closers, pool.Close)

		s.audit = shared.NewAuditLogger(pool)
		if err := s.audit.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("app: audit schema: %w", err)
		}
	}

	switch cfg.AccountStore {
	case StoreMongo:
		database, err := docstore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = database.Client().Disconnect(context.Background()) })
		store := accounts.NewMongoStore(database, cat)
		if err := store.EnsureIndexes(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.Accounts = store
	case StorePostgres:
		if s.Pool == nil {
			return nil, fmt.Errorf("app: postgres account store requires PG_DSN")
		}
		store := accounts.NewPGStore(s.Pool, cat)
		if err := store.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.Accounts = store
	case StoreMemory:
		logger.Warn("using in-memory account store; accounts are lost on restart")
		s.Accounts = accounts.NewMemoryStore()
	default:
		s.Close()
		return nil, fmt.Errorf("app: unknown account store %q", cfg.AccountStore)
	}
	logger.Info("account store ready", slog.String("backend", cfg.AccountStore), slog.Bool("audit", s.audit != nil))
	return s, nil
}

// AuditRecorder returns the audit sink, or nil when none is configured.
func (s *Stores) AuditRecorder() accounts.AuditRecorder {
	if s == nil || s.audit == nil {
		return nil
	}
	return s.audit
}

// Close releases every backend in reverse order.
func (s *Stores) Close() {
	if s == nil {
		return
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
