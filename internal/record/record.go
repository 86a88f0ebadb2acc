package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Verdict is the human decision recorded on a source record.
// Values match the wire format the review client sends.
type Verdict string

const (
	Accept Verdict = "yes"
	Reject Verdict = "no"
)

// ParseVerdict accepts the wire values ("yes"/"no") and their long forms.
func ParseVerdict(s string) (Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "accept", "accepted":
		return Accept, nil
	case "no", "reject", "rejected":
		return Reject, nil
	}
	return "", fmt.Errorf("invalid verdict %q", s)
}

// Valid reports whether v is one of the terminal verdicts.
func (v Verdict) Valid() bool {
	return v == Accept || v == Reject
}

// Source is a heterogeneous input document awaiting (or past) review.
// Body holds the original JSON object untouched; the decision marker lives
// beside it so it can be compare-and-set without rewriting the document.
type Source struct {
	ID        int64
	Body      []byte
	Decision  Verdict    // empty while undecided
	DecidedAt *time.Time // nil while undecided
}

// NewSource wraps a stored JSON object.
func NewSource(id int64, body []byte) *Source {
	return &Source{ID: id, Body: body}
}

// Decided reports whether a verdict has been recorded.
func (s *Source) Decided() bool {
	return s.Decision.Valid()
}

// StorageID is the internal identifier in its string form.
func (s *Source) StorageID() string {
	return strconv.FormatInt(s.ID, 10)
}

// Lookup returns the top-level value stored under key. Keys are matched
// literally, so names containing path syntax (dots, wildcards) are safe.
func (s *Source) Lookup(key string) gjson.Result {
	var found gjson.Result
	gjson.ParseBytes(s.Body).ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			found = v
			return false
		}
		return true
	})
	return found
}

// Present reports whether a looked-up value counts as set. Missing keys,
// JSON null and empty strings are all treated as absent.
func Present(r gjson.Result) bool {
	if !r.Exists() || r.Type == gjson.Null {
		return false
	}
	if r.Type == gjson.String && r.Str == "" {
		return false
	}
	return true
}
