// Package normalize turns accepted source records into derived knowledge
// records. Two policies exist and exactly one is selected at startup:
//
//   - minimal: question/answer only, both trimmed and required.
//   - validating: external id, title and content required, timestamps
//     parsed leniently, original alternate-key values kept in a meta bag.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/renderinc/review-queue/internal/record"
)

// Policy names accepted by New.
const (
	PolicyMinimal    = "minimal"
	PolicyValidating = "validating"
)

// Policy converts a source record into a derived record. Implementations
// are pure: no I/O and no mutation of the source.
type Policy interface {
	Name() string
	Normalize(src *record.Source) (Record, error)
}

// New returns the policy registered under name.
func New(name string, resolver *record.Resolver) (Policy, error) {
	switch name {
	case PolicyMinimal, "":
		return NewMinimal(resolver), nil
	case PolicyValidating:
		return NewValidating(resolver, nil), nil
	}
	return nil, fmt.Errorf("unknown normalize policy %q", name)
}

func hint(keys []string, canonical record.Field) string {
	var alts []string
	for _, k := range keys {
		if k != string(canonical) {
			alts = append(alts, "'"+k+"'")
		}
	}
	return strings.Join(alts, "/")
}

func missing(resolver *record.Resolver, f record.Field) error {
	return &MissingFieldError{Field: string(f), Hint: hint(resolver.Keys(f), f)}
}

// MinimalPolicy produces the two-field question/answer record.
type MinimalPolicy struct {
	resolver *record.Resolver
}

func NewMinimal(resolver *record.Resolver) *MinimalPolicy {
	return &MinimalPolicy{resolver: resolver}
}

func (p *MinimalPolicy) Name() string { return PolicyMinimal }

func (p *MinimalPolicy) Normalize(src *record.Source) (Record, error) {
	question, ok := p.resolver.Text(src, record.FieldTitle)
	if !ok {
		return nil, missing(p.resolver, record.FieldTitle)
	}
	answer, ok := p.resolver.Text(src, record.FieldContent)
	if !ok {
		return nil, missing(p.resolver, record.FieldContent)
	}
	return &Minimal{Question: question, Answer: answer}, nil
}

// MetaKeys are copied verbatim into the rich record's meta bag.
var MetaKeys = []string{
	record.KeyPrompt, "봇", "이름", "사번", "모델", "질문토큰", "답변토큰", record.KeyRegistered, record.KeySequence,
}

// ValidatingPolicy produces the rich record.
type ValidatingPolicy struct {
	resolver *record.Resolver
	now      func() time.Time
}

// NewValidating returns the rich-record policy. now stamps ingestion time
// and defaults to time.Now.
func NewValidating(resolver *record.Resolver, now func() time.Time) *ValidatingPolicy {
	if now == nil {
		now = time.Now
	}
	return &ValidatingPolicy{resolver: resolver, now: now}
}

func (p *ValidatingPolicy) Name() string { return PolicyValidating }

func (p *ValidatingPolicy) Normalize(src *record.Source) (Record, error) {
	sourceID, ok := p.resolver.SourceID(src, true)
	if !ok {
		return nil, missing(p.resolver, record.FieldSourceID)
	}
	title, ok := p.resolver.Text(src, record.FieldTitle)
	if !ok {
		return nil, missing(p.resolver, record.FieldTitle)
	}
	content, ok := p.resolver.Text(src, record.FieldContent)
	if !ok {
		return nil, missing(p.resolver, record.FieldContent)
	}

	meta := make(map[string]any, len(MetaKeys))
	for _, k := range MetaKeys {
		meta[k] = src.Lookup(k).Value()
	}

	return &Rich{
		SourceID:    sourceID,
		Title:       title,
		Content:     content,
		CreatedAt:   p.firstTime(src, record.FieldCreatedAt),
		UpdatedAt:   p.firstTime(src, record.FieldUpdatedAt),
		IngestedAt:  p.now().UTC(),
		SourceRawID: src.StorageID(),
		Meta:        meta,
	}, nil
}

// firstTime tries every candidate key, skipping values that do not parse.
func (p *ValidatingPolicy) firstTime(src *record.Source, f record.Field) *time.Time {
	for _, key := range p.resolver.Keys(f) {
		if t := ParseTime(src.Lookup(key)); t != nil {
			return t
		}
	}
	return nil
}
