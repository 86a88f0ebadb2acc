package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/renderinc/review-queue/internal/normalize"
	"github.com/renderinc/review-queue/internal/record"
	"github.com/renderinc/review-queue/internal/review"
)

// CommitDecision claims the decision marker with a conditional update and,
// in the same transaction, appends derived. If the marker is already set
// nothing is written and the current source is returned.
func (d *DB) CommitDecision(ctx context.Context, id int64, verdict record.Verdict, decidedAt time.Time, derived normalize.Record) (*review.Commit, error) {
	var body []byte
	if derived != nil {
		var err error
		if body, err = json.Marshal(derived); err != nil {
			return nil, fmt.Errorf("marshal derived record: %w", err)
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE raw_records SET decision = ?, decided_at = ? WHERE id = ? AND decision IS NULL`,
		string(verdict), decidedAt.UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("set decision: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("set decision: %w", err)
	}
	if n == 0 {
		current, err := findSource(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		return &review.Commit{Current: current}, nil
	}

	commit := &review.Commit{Applied: true}
	if derived != nil {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO derived_records (source_raw_id, shape, body, created_at) VALUES (?, ?, ?, ?)`,
			id, string(derived.Shape()), string(body), decidedAt.UTC())
		if err != nil {
			return nil, fmt.Errorf("insert derived: %w", err)
		}
		if commit.DerivedID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("insert derived: %w", err)
		}
	}

	if commit.Current, err = findSource(ctx, tx, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return commit, nil
}

// CountDerived counts derived records. The estimate reads the highest
// rowid, which equals the row count while the table is append-only.
func (d *DB) CountDerived(ctx context.Context, exact bool) (int, error) {
	query := `SELECT COALESCE(MAX(id), 0) FROM derived_records`
	if exact {
		query = `SELECT COUNT(*) FROM derived_records`
	}
	var count int
	if err := d.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count derived: %w", err)
	}
	return count, nil
}

// ListDerived returns every derived record in insertion order.
func (d *DB) ListDerived(ctx context.Context) ([]*Derived, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, source_raw_id, shape, body, created_at FROM derived_records ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list derived: %w", err)
	}
	defer rows.Close()

	var out []*Derived
	for rows.Next() {
		rec := &Derived{}
		var body string
		if err := rows.Scan(&rec.ID, &rec.SourceRawID, &rec.Shape, &body, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan derived: %w", err)
		}
		rec.Body = []byte(body)
		out = append(out, rec)
	}

	return out, rows.Err()
}

// GetDerived retrieves a derived record by ID. Returns nil, nil if missing.
func (d *DB) GetDerived(ctx context.Context, id int64) (*Derived, error) {
	rec := &Derived{}
	var body string
	err := d.db.QueryRowContext(ctx,
		`SELECT id, source_raw_id, shape, body, created_at FROM derived_records WHERE id = ?`, id).
		Scan(&rec.ID, &rec.SourceRawID, &rec.Shape, &body, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get derived %d: %w", id, err)
	}
	rec.Body = []byte(body)
	return rec, nil
}

// Record decodes the stored body into its shape.
func (d *Derived) Record() (normalize.Record, error) {
	return normalize.Decode(normalize.Shape(d.Shape), d.Body)
}

var _ review.Store = (*DB)(nil)
