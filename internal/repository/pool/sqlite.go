package pool

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/domain/record"
	"github.com/kailas-cloud/shortlist/internal/domain/vector"
)

const schema = `CREATE TABLE IF NOT EXISTS pool_records (
	pool_id   TEXT    NOT NULL,
	ordinal   INTEGER NOT NULL,
	name      TEXT    NOT NULL,
	text      TEXT    NOT NULL,
	score     REAL    NOT NULL,
	embedding BLOB    NOT NULL,
	PRIMARY KEY (pool_id, ordinal)
)`

// SQLRepo stores pools in one SQLite table.
type SQLRepo struct {
	db  *sql.DB
	dim int
}

// OpenSQLite opens the SQLite database at dsn and ensures the schema.
func OpenSQLite(ctx context.Context, dsn string, dim int) (*SQLRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLRepo{db: db, dim: dim}, nil
}

// Ping checks connectivity.
func (r *SQLRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database.
func (r *SQLRepo) Close() error {
	return r.db.Close()
}

// SelectAll returns every record of the pool in ordinal order.
func (r *SQLRepo) SelectAll(ctx context.Context, poolID string) ([]record.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ordinal, name, text, score, embedding FROM pool_records WHERE pool_id = ? ORDER BY ordinal`,
		poolID)
	if err != nil {
		return nil, fmt.Errorf("select pool %s: %w: %w", poolID, domain.ErrStoreFailure, err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		var (
			ordinal    int
			name, text string
			persisted  float64
			blob       []byte
		)
		if err := rows.Scan(&ordinal, &name, &text, &persisted, &blob); err != nil {
			return nil, fmt.Errorf("scan pool %s: %w: %w", poolID, domain.ErrStoreFailure, err)
		}
		emb, err := vector.Decode(blob)
		if err != nil {
			emb = nil
		}
		out = append(out, record.Reconstruct(ordinal, name, text, persisted, emb))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool %s: %w: %w", poolID, domain.ErrStoreFailure, err)
	}
	return out, nil
}

// Replace deletes and re-inserts the pool inside one transaction.
func (r *SQLRepo) Replace(ctx context.Context, poolID string, records []record.Record) error {
	if err := validateRecords(records, r.dim); err != nil {
		return err
	}
	if err := r.replaceTx(ctx, poolID, records); err != nil {
		return fmt.Errorf("replace pool %s: %w: %w", poolID, domain.ErrStoreFailure, err)
	}
	return nil
}

func (r *SQLRepo) replaceTx(ctx context.Context, poolID string, records []record.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pool_records WHERE pool_id = ?`, poolID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pool_records(pool_id, ordinal, name, text, score, embedding) VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			poolID, rec.Ordinal(), rec.Name(), rec.Text(), rec.Score(), vector.Encode(rec.Embedding()),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteAll removes the pool rows.
func (r *SQLRepo) DeleteAll(ctx context.Context, poolID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pool_records WHERE pool_id = ?`, poolID); err != nil {
		return fmt.Errorf("delete pool %s: %w: %w", poolID, domain.ErrStoreFailure, err)
	}
	return nil
}
