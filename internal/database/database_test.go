package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"userctl/internal/config"
)

// setupProvider connects to the database named by
// USERCTL_TEST_DATABASE_URL and starts the test from an empty users
// table. Tests are skipped when the variable is unset.
func setupProvider(t *testing.T) *Provider {
	t.Helper()

	raw := os.Getenv("USERCTL_TEST_DATABASE_URL")
	if raw == "" {
		t.Skip("USERCTL_TEST_DATABASE_URL not set, skipping database integration test")
	}

	cfg := &config.Config{DatabaseURL: raw}
	p := NewProvider(cfg.ResolveDatabase())
	t.Cleanup(func() { p.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	handle, err := p.Handle(ctx)
	if err != nil {
		t.Skipf("failed to connect to test database: %v", err)
	}
	if _, err := handle.ExecContext(ctx, "DELETE FROM users"); err != nil {
		t.Fatalf("failed to clean users table: %v", err)
	}
	return p
}

func TestProviderHandleIsCached(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	first, err := p.Handle(ctx)
	if err != nil {
		t.Fatalf("first Handle failed: %v", err)
	}
	second, err := p.Handle(ctx)
	if err != nil {
		t.Fatalf("second Handle failed: %v", err)
	}
	if first != second {
		t.Fatal("expected the same cached handle across calls")
	}
}

func TestProviderRebuildsAfterClose(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	first, err := p.Handle(ctx)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second, err := p.Handle(ctx)
	if err != nil {
		t.Fatalf("Handle after Close failed: %v", err)
	}
	if first == second {
		t.Fatal("expected a fresh handle after Close")
	}
	if err := p.Ping(ctx); err != nil {
		t.Fatalf("rebuilt handle is not usable: %v", err)
	}
}

func TestProviderCloseIsIdempotent(t *testing.T) {
	raw := os.Getenv("USERCTL_TEST_DATABASE_URL")
	if raw == "" {
		t.Skip("USERCTL_TEST_DATABASE_URL not set, skipping database integration test")
	}

	cfg := &config.Config{DatabaseURL: raw}
	p := NewProvider(cfg.ResolveDatabase())

	// Close before the handle was ever built.
	if err := p.Close(); err != nil {
		t.Fatalf("Close before first use failed: %v", err)
	}

	if _, err := p.Handle(context.Background()); err != nil {
		t.Skipf("failed to connect to test database: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestProviderTransactionCommits(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	err := p.Transaction(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO users (name, email, created_at) VALUES ($1, $2, $3)",
			"Commit Test", "commit@test.local", time.Now().UTC())
		return err
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	handle, err := p.Handle(ctx)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	var count int
	if err := handle.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM users WHERE email = $1", "commit@test.local"); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected committed row, found %d", count)
	}
}

func TestProviderTransactionRollsBackOnError(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := p.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO users (name, email, created_at) VALUES ($1, $2, $3)",
			"Rollback Test", "rollback@test.local", time.Now().UTC()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to surface, got %v", err)
	}

	handle, err := p.Handle(ctx)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	var count int
	if err := handle.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM users WHERE email = $1", "rollback@test.local"); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to remove row, found %d", count)
	}
}

func TestProviderSessionIsScoped(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		conn, err := p.Session(ctx)
		if err != nil {
			t.Fatalf("Session %d failed: %v", i, err)
		}
		var one int
		if err := conn.GetContext(ctx, &one, "SELECT 1"); err != nil {
			conn.Close()
			t.Fatalf("query on session %d failed: %v", i, err)
		}
		if err := conn.Close(); err != nil {
			t.Fatalf("closing session %d failed: %v", i, err)
		}
	}
}
