// Package store persists submitted batches so jobs can be polled or deleted
// by later qflow invocations. The scheduler remains the source of truth for
// job state; this is client-side bookkeeping only.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed record of submitted batches and their job ids.
type Store struct{ db *sql.DB }

//go:embed migrations/*.sql
var migrationFS embed.FS

// JobRecord is one submitted job as remembered by the client.
type JobRecord struct {
	Name  string
	JobID string
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveBatch records a committed batch and its jobs in one transaction.
func (s *Store) SaveBatch(ctx context.Context, name string, jobs []JobRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO batches(name) VALUES (?)`, name)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	batchID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO jobs(batch_id, name, job_id) VALUES (?, ?, ?)`,
			batchID, j.Name, j.JobID); err != nil {
			return fmt.Errorf("insert job %s: %w", j.Name, err)
		}
	}
	return tx.Commit()
}

// Jobs returns the jobs of the most recent batch with the given name, in
// submission order.
func (s *Store) Jobs(ctx context.Context, batchName string) ([]JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT j.name, j.job_id
		FROM jobs j
		JOIN batches b ON b.id = j.batch_id
		WHERE b.id = (SELECT id FROM batches WHERE name = ? ORDER BY id DESC LIMIT 1)
		ORDER BY j.id`, batchName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var j JobRecord
		if err := rows.Scan(&j.Name, &j.JobID); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Batches lists all recorded batch names, most recent first.
func (s *Store) Batches(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM batches ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
