package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"userctl/internal/config"
)

// Provider owns the long-lived PostgreSQL handle. The handle is built
// lazily on first use, cached for the life of the process, and rebuilt
// transparently if a caller asks for it again after Close. Construction
// is mutex-guarded so concurrent callers cannot race a duplicate build.
type Provider struct {
	db config.Database

	mu     sync.Mutex
	handle *sqlx.DB
}

// NewProvider creates a Provider for the resolved connection
// descriptor. No connection is attempted until the handle is first
// needed.
func NewProvider(db config.Database) *Provider {
	return &Provider{db: db}
}

// Handle returns the cached database handle, building and caching it
// when absent. Safe to call repeatedly.
func (p *Provider) Handle(ctx context.Context) (*sqlx.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != nil {
		return p.handle, nil
	}

	handle, err := p.build(ctx)
	if err != nil {
		return nil, err
	}
	p.handle = handle
	return handle, nil
}

func (p *Provider) build(ctx context.Context) (*sqlx.DB, error) {
	handle, err := sqlx.Open("pgx", p.db.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One operator drives the tool, so the pool stays small.
	handle.SetMaxOpenConns(5)
	handle.SetMaxIdleConns(2)
	handle.SetConnMaxLifetime(30 * time.Minute)

	if err := handle.PingContext(ctx); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := ensureSchema(ctx, handle); err != nil {
		handle.Close()
		return nil, err
	}

	log.Debug().Str("target", p.db.Redacted()).Msg("Database handle established")
	return handle, nil
}

// Session acquires a connection scoped to one logical operation. The
// caller must release it with Close on every exit path.
func (p *Provider) Session(ctx context.Context) (*sqlx.Conn, error) {
	handle, err := p.Handle(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := handle.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session: %w", err)
	}
	return conn, nil
}

// Transaction runs fn inside a transaction on its own scoped session.
// The transaction commits when fn returns nil and rolls back otherwise;
// a rollback failure is logged but never masks fn's error.
func (p *Provider) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	conn, err := p.Session(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable, building the handle if
// needed.
func (p *Provider) Ping(ctx context.Context) error {
	handle, err := p.Handle(ctx)
	if err != nil {
		return err
	}
	if err := handle.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close releases the cached handle. Idempotent and safe to call before
// the handle was ever built; a later Handle call rebuilds it.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == nil {
		return nil
	}

	err := p.handle.Close()
	p.handle = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	log.Debug().Msg("Database handle closed")
	return nil
}
