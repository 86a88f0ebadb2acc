package normalize

import (
	"encoding/json"
	"fmt"
	"time"
)

// Shape names the persisted form of a derived record.
type Shape string

const (
	ShapeMinimal Shape = "minimal"
	ShapeRich    Shape = "rich"
)

// Record is a derived knowledge record written when a source is accepted.
type Record interface {
	Shape() Shape
	// Text returns the prompt and answer used for search indexing.
	Text() (question, answer string)
}

// Minimal is the two-field knowledge record.
type Minimal struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (m *Minimal) Shape() Shape { return ShapeMinimal }

func (m *Minimal) Text() (string, string) { return m.Question, m.Answer }

// Rich keeps provenance and the original alternate-key values for audit.
type Rich struct {
	SourceID    string         `json:"source_id"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	CreatedAt   *time.Time     `json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at"`
	IngestedAt  time.Time      `json:"ingested_at"`
	SourceRawID string         `json:"source_raw_id"`
	Meta        map[string]any `json:"meta"`
}

func (r *Rich) Shape() Shape { return ShapeRich }

func (r *Rich) Text() (string, string) { return r.Title, r.Content }

// Decode restores a stored derived record.
func Decode(shape Shape, body []byte) (Record, error) {
	var rec Record
	switch shape {
	case ShapeMinimal:
		rec = &Minimal{}
	case ShapeRich:
		rec = &Rich{}
	default:
		return nil, fmt.Errorf("unknown shape %q", shape)
	}
	if err := json.Unmarshal(body, rec); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", shape, err)
	}
	return rec, nil
}
