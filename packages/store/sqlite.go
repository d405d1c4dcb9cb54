package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS environments (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	scope_kind    TEXT NOT NULL,
	collection_id TEXT NOT NULL DEFAULT '',
	data          TEXT NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_environments_scope ON environments (scope_kind, collection_id);
CREATE TABLE IF NOT EXISTS overrides (
	collection_id  TEXT PRIMARY KEY,
	environment_id TEXT NOT NULL
);`

// SQLiteRepository stores one row per environment with the aggregate encoded
// as JSON in the data column.
type SQLiteRepository struct {
	db           *sql.DB
	path         string
	queryTimeout time.Duration
}

// NewSQLiteRepository opens (creating if needed) the database at path.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single writer keeps read-modify-write sequences from interleaving
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(pingCtx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteRepository{
		db:           db,
		path:         path,
		queryTimeout: 30 * time.Second,
	}, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, envID string) (*env.Environment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM environments WHERE id = ?`, envID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(envID)
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return decodeEnvironment([]byte(data))
}

func (r *SQLiteRepository) Put(ctx context.Context, e *env.Environment) error {
	if err := validateForPut(e); err != nil {
		return err
	}
	data, err := encodeEnvironment(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO environments (id, name, scope_kind, collection_id, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			scope_kind = excluded.scope_kind,
			collection_id = excluded.collection_id,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		e.ID, e.Name, scopeKind(e), e.Scope.CollectionID, string(data), e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put environment %s: %w", e.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, envID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM environments WHERE id = ?`, envID)
	if err != nil {
		return fmt.Errorf("delete environment %s: %w", envID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete environment %s: %w", envID, err)
	}
	if n == 0 {
		return notFound(envID)
	}
	return nil
}

func (r *SQLiteRepository) ListByCollection(ctx context.Context, collectionID string) ([]*env.Environment, error) {
	return r.list(ctx, `SELECT data FROM environments WHERE scope_kind = ? AND collection_id = ?`,
		string(env.ScopeCollection), collectionID)
}

func (r *SQLiteRepository) ListGlobal(ctx context.Context) ([]*env.Environment, error) {
	return r.list(ctx, `SELECT data FROM environments WHERE scope_kind = ?`, string(env.ScopeGlobal))
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*env.Environment, error) {
	return r.list(ctx, `SELECT data FROM environments`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*env.Environment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	out := make([]*env.Environment, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e, err := decodeEnvironment([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	sortEnvironments(out)
	return out, nil
}

func (r *SQLiteRepository) Overrides(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT collection_id, environment_id FROM overrides`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var cid, eid string
		if err := rows.Scan(&cid, &eid); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out[cid] = eid
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SetOverride(ctx context.Context, collectionID, envID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	var err error
	if envID == "" {
		_, err = r.db.ExecContext(ctx, `DELETE FROM overrides WHERE collection_id = ?`, collectionID)
	} else {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO overrides (collection_id, environment_id) VALUES (?, ?)
			ON CONFLICT(collection_id) DO UPDATE SET environment_id = excluded.environment_id`,
			collectionID, envID)
	}
	if err != nil {
		return fmt.Errorf("set override for collection %s: %w", collectionID, err)
	}
	return nil
}

func scopeKind(e *env.Environment) string {
	if e.Scope.IsGlobal() {
		return string(env.ScopeGlobal)
	}
	return string(env.ScopeCollection)
}
