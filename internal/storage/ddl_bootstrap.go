package storage

import (
	"context"
	"fmt"
	"sync"

	"retailetl/internal/ddl"
)

var (
	ddlMu    sync.RWMutex
	dialects = map[string]ddl.Dialect{}
)

// RegisterDDL registers (or replaces) the DDL dialect for a storage kind.
// Backends call it from init.
func RegisterDDL(kind string, d ddl.Dialect) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	dialects[kind] = d
}

// DialectFor returns the dialect registered for kind.
func DialectFor(kind string) (ddl.Dialect, error) {
	ddlMu.RLock()
	d, ok := dialects[kind]
	ddlMu.RUnlock()
	if !ok {
		return ddl.Dialect{}, fmt.Errorf("no DDL dialect registered for storage.kind=%q", kind)
	}
	return d, nil
}

// EnsureTables creates defs in order. With replace set, the tables are
// dropped first in reverse order so that referencing tables go before the
// tables they reference.
func EnsureTables(ctx context.Context, kind string, repo Repository, defs []ddl.TableDef, replace bool) error {
	d, err := DialectFor(kind)
	if err != nil {
		return err
	}
	if replace {
		for i := len(defs) - 1; i >= 0; i-- {
			if err := repo.Exec(ctx, ddl.BuildDropTableSQL(defs[i].FQN, d)); err != nil {
				return fmt.Errorf("drop %s: %w", defs[i].FQN, err)
			}
		}
	}
	for _, td := range defs {
		stmt, err := ddl.BuildCreateTableSQL(td, d)
		if err != nil {
			return err
		}
		if err := repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create %s: %w", td.FQN, err)
		}
	}
	return nil
}
