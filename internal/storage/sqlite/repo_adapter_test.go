package sqlite

import (
	"context"
	"testing"

	"retailetl/internal/storage"
)

// TestSQLiteStorageRegistrationUsesNewRepositoryHook verifies that the
// "sqlite" backend registered in init() uses the newRepository hook and that
// wrappedRepo delegates Close.
func TestSQLiteStorageRegistrationUsesNewRepositoryHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var (
		gotCfg Config
		closed bool
	)
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return &Repository{}, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: "file:test.db"})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	if gotCfg.DSN != "file:test.db" {
		t.Errorf("hook cfg.DSN = %q", gotCfg.DSN)
	}
	repo.Close()
	if !closed {
		t.Fatalf("Close did not call closeFn")
	}
}
