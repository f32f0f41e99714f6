package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pkt.systems/computeengine/schema"

	_ "modernc.org/sqlite"
)

const createBindingsTable = `
CREATE TABLE IF NOT EXISTS bindings (
    name     TEXT PRIMARY KEY,
    network  TEXT NOT NULL,
    address  TEXT NOT NULL,
    bound_at DATETIME NOT NULL
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps bindings in a SQLite database so they survive registry restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createBindingsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bindings table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Put upserts binding.
func (s *SQLiteStore) Put(ctx context.Context, binding schema.Binding) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bindings (name, network, address, bound_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			network = excluded.network,
			address = excluded.address,
			bound_at = excluded.bound_at`,
		binding.Name, binding.Endpoint.Network, binding.Endpoint.Address, binding.BoundAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert binding: %w", err)
	}
	return nil
}

// Get retrieves the binding for name.
func (s *SQLiteStore) Get(ctx context.Context, name string) (schema.Binding, error) {
	var b schema.Binding
	var boundAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT name, network, address, bound_at FROM bindings WHERE name = ?`, name,
	).Scan(&b.Name, &b.Endpoint.Network, &b.Endpoint.Address, &boundAt)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.Binding{}, fmt.Errorf("%w: %q", schema.ErrNotBound, name)
	}
	if err != nil {
		return schema.Binding{}, fmt.Errorf("get binding: %w", err)
	}
	b.BoundAt = boundAt.UTC()
	return b, nil
}

// Delete removes the binding for name.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bindings WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", schema.ErrNotBound, name)
	}
	return nil
}

// DeleteIf removes the binding for name only while it points at ep.
func (s *SQLiteStore) DeleteIf(ctx context.Context, name string, ep schema.Endpoint) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bindings WHERE name = ? AND network = ? AND address = ?`,
		name, ep.Network, ep.Address,
	)
	if err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q at %s", schema.ErrNotBound, name, ep)
	}
	return nil
}

// List returns all bindings ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]schema.Binding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, network, address, bound_at FROM bindings ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}
	defer rows.Close()

	var out []schema.Binding
	for rows.Next() {
		var b schema.Binding
		var boundAt time.Time
		if err := rows.Scan(&b.Name, &b.Endpoint.Network, &b.Endpoint.Address, &boundAt); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		b.BoundAt = boundAt.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bindings: %w", err)
	}
	return out, nil
}
