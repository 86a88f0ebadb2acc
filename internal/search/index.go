package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/renderinc/review-queue/internal/normalize"
	"github.com/renderinc/review-queue/internal/storage"
)

// Index wraps a Bleve search index over accepted knowledge records
type Index struct {
	index bleve.Index
}

// IndexedRecord represents a derived record in the search index
type IndexedRecord struct {
	ID          string
	SourceRawID string
	Shape       string
	Question    string
	Answer      string
}

// SearchResult represents a search result
type SearchResult struct {
	ID          string              `json:"id"`
	SourceRawID string              `json:"source_raw_id"`
	Question    string              `json:"question"`
	Score       float64             `json:"score"`
	Fragments   map[string][]string `json:"fragments,omitempty"` // Highlighted snippets
}

// Open opens or creates a Bleve index
func Open(path string) (*Index, error) {
	var idx bleve.Index
	var err error

	// Try to open existing index
	idx, err = bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// OpenMem creates an index held only in memory.
func OpenMem() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{index: idx}, nil
}

// buildIndexMapping analyzes question and answer text with the standard
// analyzer; most records are Korean, so no English stemming.
func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = "standard"

	keywordFieldMapping := bleve.NewKeywordFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("ID", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("SourceRawID", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Shape", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Question", textFieldMapping)
	docMapping.AddFieldMappingsAt("Answer", textFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = "standard"

	return indexMapping
}

// Close closes the index
func (i *Index) Close() error {
	return i.index.Close()
}

func newIndexedRecord(id, sourceRawID int64, rec normalize.Record) *IndexedRecord {
	question, answer := rec.Text()
	return &IndexedRecord{
		ID:          strconv.FormatInt(id, 10),
		SourceRawID: strconv.FormatInt(sourceRawID, 10),
		Shape:       string(rec.Shape()),
		Question:    question,
		Answer:      answer,
	}
}

// IndexRecord adds or updates a derived record in the index
func (i *Index) IndexRecord(id int64, sourceRawID int64, rec normalize.Record) error {
	doc := newIndexedRecord(id, sourceRawID, rec)
	return i.index.Index(doc.ID, doc)
}

// Search performs a query string search (quotes, boolean operators, fuzzy ~)
func (i *Index) Search(queryStr string, limit int) ([]*SearchResult, error) {
	query := bleve.NewQueryStringQuery(queryStr)

	search := bleve.NewSearchRequestOptions(query, limit, 0, false)
	search.Highlight = bleve.NewHighlightWithStyle("html")
	search.Fields = []string{"Question", "SourceRawID"}

	results, err := i.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	searchResults := make([]*SearchResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		result := &SearchResult{
			ID:        hit.ID,
			Score:     hit.Score,
			Fragments: hit.Fragments,
		}

		if question, ok := hit.Fields["Question"].(string); ok {
			result.Question = question
		}
		if src, ok := hit.Fields["SourceRawID"].(string); ok {
			result.SourceRawID = src
		}

		searchResults = append(searchResults, result)
	}

	return searchResults, nil
}

// Lister is the storage view Rebuild reads from.
type Lister interface {
	ListDerived(ctx context.Context) ([]*storage.Derived, error)
}

// Rebuild indexes every derived record from storage in one batch.
func (i *Index) Rebuild(ctx context.Context, db Lister, progress func(current, total int)) error {
	records, err := db.ListDerived(ctx)
	if err != nil {
		return fmt.Errorf("list derived: %w", err)
	}

	batch := i.index.NewBatch()
	for n, stored := range records {
		rec, err := stored.Record()
		if err != nil {
			return fmt.Errorf("decode derived %d: %w", stored.ID, err)
		}
		doc := newIndexedRecord(stored.ID, stored.SourceRawID, rec)
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
		if progress != nil {
			progress(n+1, len(records))
		}
	}

	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	return nil
}

// Count returns the number of records in the index
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
