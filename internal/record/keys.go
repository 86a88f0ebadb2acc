package record

import "fmt"

// Field is a canonical field name.
type Field string

const (
	FieldTitle     Field = "title"
	FieldContent   Field = "content"
	FieldSourceID  Field = "source_id"
	FieldCreatedAt Field = "created_at"
	FieldUpdatedAt Field = "updated_at"
)

// Alternate-language keys found in legacy source documents.
const (
	KeyPrompt     = "프롬프트"
	KeyQuestion   = "질문"
	KeyAnswer     = "답변"
	KeyRegistered = "등록일시"
	KeySequence   = "no"
)

// KeyTable lists, per canonical field, the candidate keys tried in order.
type KeyTable map[Field][]string

var (
	// QueueTitleKeys is the title order the review queue displays.
	QueueTitleKeys = []string{KeyPrompt, KeyQuestion, string(FieldTitle)}

	// CanonicalTitleKeys prefers the canonical key over the alternates.
	CanonicalTitleKeys = []string{string(FieldTitle), KeyQuestion, KeyPrompt}
)

// DefaultKeyTable returns the key table used when nothing is configured.
// The title order is QueueTitleKeys.
func DefaultKeyTable() KeyTable {
	return NewKeyTable(QueueTitleKeys)
}

// NewKeyTable builds a key table with the given title order. The other
// fields have a single historical order.
func NewKeyTable(titleKeys []string) KeyTable {
	return KeyTable{
		FieldTitle:     append([]string(nil), titleKeys...),
		FieldContent:   {string(FieldContent), KeyAnswer},
		FieldSourceID:  {string(FieldSourceID), KeySequence},
		FieldCreatedAt: {string(FieldCreatedAt), KeyRegistered},
		FieldUpdatedAt: {string(FieldUpdatedAt)},
	}
}

// Validate checks that every canonical field has at least one candidate.
func (t KeyTable) Validate() error {
	for _, f := range []Field{FieldTitle, FieldContent, FieldSourceID, FieldCreatedAt, FieldUpdatedAt} {
		if len(t[f]) == 0 {
			return fmt.Errorf("no candidate keys for field %s", f)
		}
		for _, k := range t[f] {
			if k == "" {
				return fmt.Errorf("empty candidate key for field %s", f)
			}
		}
	}
	return nil
}
