// Package ingest loads heterogeneous source documents into the review store.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/renderinc/review-queue/internal/normalize"
	"github.com/renderinc/review-queue/internal/record"
)

// maxLine bounds a single JSONL record.
const maxLine = 16 << 20

// Inserter is the storage operation the importer needs.
type Inserter interface {
	InsertSource(ctx context.Context, body []byte, verdict record.Verdict, decidedAt *time.Time) (int64, error)
}

// Importer loads JSON arrays or JSON Lines of source documents
type Importer struct {
	db     Inserter
	logger *zap.Logger
}

// NewImporter creates a new importer
func NewImporter(db Inserter, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{db: db, logger: logger}
}

// Stats holds import statistics
type Stats struct {
	Total    int
	Imported int
	Decided  int // imported with an existing verdict
	Skipped  int // not a JSON object
	Errors   int
	Duration time.Duration
}

// ImportFile imports every document in the file at path.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return im.Import(ctx, f)
}

// Import reads either a top-level JSON array or one JSON object per line.
// Documents are inserted in input order so storage ids follow the file.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Stats, error) {
	startTime := time.Now()
	stats := &Stats{}

	br := bufio.NewReaderSize(r, 64<<10)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		stats.Duration = time.Since(startTime)
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	if first == '[' {
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("input is not valid JSON")
		}
		var importErr error
		gjson.ParseBytes(data).ForEach(func(_, doc gjson.Result) bool {
			if importErr = ctx.Err(); importErr != nil {
				return false
			}
			im.importOne(ctx, doc, stats)
			return true
		})
		if importErr != nil {
			return nil, importErr
		}
	} else {
		scanner := bufio.NewScanner(br)
		scanner.Buffer(make([]byte, 0, 64<<10), maxLine)
		line := 0
		for scanner.Scan() {
			line++
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			text := bytes.TrimSpace(scanner.Bytes())
			if len(text) == 0 {
				continue
			}
			if !gjson.ValidBytes(text) {
				stats.Total++
				stats.Errors++
				im.logger.Warn("Invalid JSON line", zap.Int("line", line))
				continue
			}
			im.importOne(ctx, gjson.ParseBytes(text), stats)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("scan input: %w", err)
		}
	}

	stats.Duration = time.Since(startTime)
	im.logger.Info("Import complete",
		zap.Int("total", stats.Total),
		zap.Int("imported", stats.Imported),
		zap.Int("decided", stats.Decided),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors),
		zap.Duration("duration", stats.Duration))

	return stats, nil
}

func (im *Importer) importOne(ctx context.Context, doc gjson.Result, stats *Stats) {
	stats.Total++
	if !doc.IsObject() {
		stats.Skipped++
		return
	}

	verdict, _ := record.ParseVerdict(doc.Get("decision").String())
	var decidedAt *time.Time
	if verdict.Valid() {
		decidedAt = normalize.ParseTime(doc.Get("decided_at"))
	}

	id, err := im.db.InsertSource(ctx, []byte(doc.Raw), verdict, decidedAt)
	if err != nil {
		stats.Errors++
		im.logger.Error("Insert source failed", zap.Error(err))
		return
	}

	stats.Imported++
	if verdict.Valid() {
		stats.Decided++
	}
	im.logger.Debug("Imported source", zap.Int64("id", id), zap.String("decision", string(verdict)))
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n', 0xEF, 0xBB, 0xBF: // whitespace and UTF-8 BOM
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}
