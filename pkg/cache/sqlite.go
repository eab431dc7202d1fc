package cache

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/evopipe/evopipe/pkg/errors"
	"github.com/evopipe/evopipe/pkg/gp"
)

const createEvaluationsTable = `
CREATE TABLE IF NOT EXISTS evaluations (
	pipeline   TEXT PRIMARY KEY,
	complexity REAL NOT NULL,
	quality    REAL NOT NULL,
	created_at INTEGER NOT NULL
)`

// SQLiteStore persists evaluation results across runs. A search
// restarted on the same dataset reuses every pipeline it has ever
// scored.
type SQLiteStore struct {
	db *sql.DB
	c  counters
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "evopipe_cache.db"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "opening sqlite cache")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(createEvaluationsTable); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.Unknown, "initializing sqlite cache schema")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrap(err, errors.Unknown, "configuring sqlite cache")
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, key string) (gp.Fitness, bool, error) {
	var fit gp.Fitness
	row := s.db.QueryRowContext(ctx,
		"SELECT complexity, quality FROM evaluations WHERE pipeline = ?", key)
	switch err := row.Scan(&fit.Complexity, &fit.Quality); err {
	case nil:
		s.c.hits.Add(1)
		return fit, true, nil
	case sql.ErrNoRows:
		s.c.misses.Add(1)
		return gp.Fitness{}, false, nil
	default:
		return gp.Fitness{}, false, errors.Wrap(err, errors.Unknown, "reading sqlite cache")
	}
}

func (s *SQLiteStore) Put(ctx context.Context, key string, fit gp.Fitness) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO evaluations (pipeline, complexity, quality, created_at) VALUES (?, ?, ?, ?)",
		key, fit.Complexity, fit.Quality, time.Now().Unix())
	if err != nil {
		return errors.Wrap(err, errors.Unknown, "writing sqlite cache")
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.c.puts.Add(1)
	}
	return nil
}

func (s *SQLiteStore) Len() int {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM evaluations").Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *SQLiteStore) Snapshot() map[string]gp.Fitness {
	out := make(map[string]gp.Fitness)
	rows, err := s.db.Query("SELECT pipeline, complexity, quality FROM evaluations")
	if err != nil {
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var fit gp.Fitness
		if err := rows.Scan(&key, &fit.Complexity, &fit.Quality); err != nil {
			continue
		}
		out[key] = fit
	}
	return out
}

func (s *SQLiteStore) Stats() Stats { return s.c.stats() }

func (s *SQLiteStore) Close() error { return s.db.Close() }
