package normalize

import (
	"time"

	"github.com/araddon/dateparse"
	"github.com/tidwall/gjson"
)

// ParseTime leniently parses a stored timestamp and normalizes it to UTC.
// Unparsable or absent input yields nil rather than an error. Values without
// a zone are read as UTC.
func ParseTime(v gjson.Result) *time.Time {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	s := v.String()
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
