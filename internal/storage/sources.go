package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/renderinc/review-queue/internal/record"
	"github.com/renderinc/review-queue/internal/review"
)

const sourceColumns = `id, body, decision, decided_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (*record.Source, error) {
	var (
		id        int64
		body      string
		decision  sql.NullString
		decidedAt sql.NullTime
	)
	if err := row.Scan(&id, &body, &decision, &decidedAt); err != nil {
		return nil, err
	}
	src := record.NewSource(id, []byte(body))
	if decision.Valid {
		src.Decision = record.Verdict(decision.String)
	}
	if decidedAt.Valid {
		t := decidedAt.Time.UTC()
		src.DecidedAt = &t
	}
	return src, nil
}

// jsonPath quotes key as a single JSON path member for json_extract.
func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}

// filterClause returns a WHERE fragment (with leading AND) and its args.
func filterClause(f review.Filter) (string, []any) {
	if !f.Enabled() {
		return "", nil
	}
	return " AND json_extract(body, ?) = ?", []any{jsonPath(f.Key), f.Value}
}

// InsertSource stores a raw source document. A non-empty verdict is kept
// so existing ledgers can be migrated.
func (d *DB) InsertSource(ctx context.Context, body []byte, verdict record.Verdict, decidedAt *time.Time) (int64, error) {
	var decision, decided any
	if verdict.Valid() {
		decision = string(verdict)
		t := time.Now().UTC()
		if decidedAt != nil {
			t = decidedAt.UTC()
		}
		decided = t
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO raw_records (body, decision, decided_at, imported_at) VALUES (json(?), ?, ?, ?)`,
		string(body), decision, decided, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert source: %w", err)
	}
	return res.LastInsertId()
}

// FindSource retrieves a source by ID. Returns nil, nil if missing.
func (d *DB) FindSource(ctx context.Context, id int64) (*record.Source, error) {
	return findSource(ctx, d.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findSource(ctx context.Context, q queryer, id int64) (*record.Source, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM raw_records WHERE id = ?`, id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find source %d: %w", id, err)
	}
	return src, nil
}

// ListUndecided returns undecided sources oldest first.
func (d *DB) ListUndecided(ctx context.Context, filter review.Filter, limit int) ([]*record.Source, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + sourceColumns + ` FROM raw_records WHERE decision IS NULL` + where + ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list undecided: %w", err)
	}
	defer rows.Close()

	var sources []*record.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}

	return sources, rows.Err()
}

// CountByDecision counts sources per decision marker in one statement.
func (d *DB) CountByDecision(ctx context.Context, filter review.Filter) (review.DecisionCounts, error) {
	var counts review.DecisionCounts
	where, args := filterClause(filter)
	query := `SELECT decision, COUNT(*) FROM raw_records WHERE 1 = 1` + where + ` GROUP BY decision`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return counts, fmt.Errorf("count sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var decision sql.NullString
		var n int
		if err := rows.Scan(&decision, &n); err != nil {
			return counts, fmt.Errorf("scan count: %w", err)
		}
		switch record.Verdict(decision.String) {
		case record.Accept:
			counts.Accepted = n
		case record.Reject:
			counts.Rejected = n
		default:
			counts.Undecided += n
		}
	}

	return counts, rows.Err()
}
