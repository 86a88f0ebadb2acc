package record

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Resolver maps heterogeneous source documents onto canonical fields using
// an ordered KeyTable. It never modifies the source.
type Resolver struct {
	keys KeyTable
}

// NewResolver returns a resolver over keys. A nil table means DefaultKeyTable.
func NewResolver(keys KeyTable) *Resolver {
	if keys == nil {
		keys = DefaultKeyTable()
	}
	return &Resolver{keys: keys}
}

// Keys returns the candidate keys for f in priority order.
func (r *Resolver) Keys(f Field) []string {
	return r.keys[f]
}

// Resolve returns the first present value among the candidates for f.
func (r *Resolver) Resolve(src *Source, f Field) (gjson.Result, bool) {
	for _, key := range r.keys[f] {
		if v := src.Lookup(key); Present(v) {
			return v, true
		}
	}
	return gjson.Result{}, false
}

// String resolves f and renders it as text. Numbers keep their literal
// form, so a sequence number 12 becomes "12".
func (r *Resolver) String(src *Source, f Field) (string, bool) {
	v, ok := r.Resolve(src, f)
	if !ok {
		return "", false
	}
	return v.String(), true
}

// Text resolves f, trims surrounding whitespace and treats a blank result
// as absent.
func (r *Resolver) Text(src *Source, f Field) (string, bool) {
	s, ok := r.String(src, f)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// SourceID resolves the external identifier. With storageFallback set the
// internal storage identifier is used when no candidate key is present.
func (r *Resolver) SourceID(src *Source, storageFallback bool) (string, bool) {
	if s, ok := r.Text(src, FieldSourceID); ok {
		return s, true
	}
	if storageFallback && src.ID > 0 {
		return src.StorageID(), true
	}
	return "", false
}
