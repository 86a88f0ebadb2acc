package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/review-queue/internal/record"
)

func src(id int64, body string) *record.Source {
	return record.NewSource(id, []byte(body))
}

func TestMinimalPolicy(t *testing.T) {
	p := NewMinimal(record.NewResolver(nil))

	rec, err := p.Normalize(src(1, `{"질문":"  질문텍스트 ","답변":"답변텍스트\n"}`))
	require.NoError(t, err)
	assert.Equal(t, ShapeMinimal, rec.Shape())
	assert.Equal(t, &Minimal{Question: "질문텍스트", Answer: "답변텍스트"}, rec)
}

func TestMinimalPolicyMissingFields(t *testing.T) {
	p := NewMinimal(record.NewResolver(nil))

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "no title keys", body: `{"답변":"a"}`, field: "title"},
		{name: "whitespace content", body: `{"title":"q","content":"   "}`, field: "content"},
		{name: "null content", body: `{"title":"q","content":null}`, field: "content"},
		{name: "whitespace title", body: `{"프롬프트":"\t","content":"a"}`, field: "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := p.Normalize(src(1, tt.body))
			assert.Nil(t, rec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingField))

			var mfe *MissingFieldError
			require.True(t, errors.As(err, &mfe))
			assert.Equal(t, tt.field, mfe.Field)
		})
	}
}

func TestMissingFieldMessage(t *testing.T) {
	p := NewMinimal(record.NewResolver(nil))
	_, err := p.Normalize(src(99, `{}`))
	require.Error(t, err)
	assert.Equal(t, "missing required field: title (e.g., '프롬프트'/'질문')", err.Error())
	assert.NotContains(t, err.Error(), "99")
}

func TestValidatingPolicy(t *testing.T) {
	ingested := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewValidating(record.NewResolver(record.NewKeyTable(record.CanonicalTitleKeys)), func() time.Time { return ingested })

	body := `{"no":17,"질문":"q","프롬프트":"p","답변":"a","봇":"규정집","등록일시":"2024-05-06 07:08:09","updated_at":"not a date"}`
	rec, err := p.Normalize(src(5, body))
	require.NoError(t, err)

	rich, ok := rec.(*Rich)
	require.True(t, ok)
	assert.Equal(t, "17", rich.SourceID)
	assert.Equal(t, "q", rich.Title)
	assert.Equal(t, "a", rich.Content)
	assert.Equal(t, "5", rich.SourceRawID)
	assert.Equal(t, ingested, rich.IngestedAt)
	require.NotNil(t, rich.CreatedAt)
	assert.Equal(t, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), *rich.CreatedAt)
	assert.Nil(t, rich.UpdatedAt)
	assert.Equal(t, "규정집", rich.Meta["봇"])
	assert.Equal(t, "p", rich.Meta["프롬프트"])
	assert.Nil(t, rich.Meta["이름"])
}

func TestValidatingPolicyStorageIDFallback(t *testing.T) {
	p := NewValidating(record.NewResolver(nil), nil)

	rec, err := p.Normalize(src(8, `{"title":"t","content":"c"}`))
	require.NoError(t, err)
	assert.Equal(t, "8", rec.(*Rich).SourceID)
}

func TestValidatingPolicyRequiresContent(t *testing.T) {
	p := NewValidating(record.NewResolver(nil), nil)

	_, err := p.Normalize(src(8, `{"title":"t"}`))
	var mfe *MissingFieldError
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, "content", mfe.Field)
	assert.Equal(t, "'답변'", mfe.Hint)
}

func TestNew(t *testing.T) {
	r := record.NewResolver(nil)

	p, err := New("minimal", r)
	require.NoError(t, err)
	assert.Equal(t, PolicyMinimal, p.Name())

	p, err = New("validating", r)
	require.NoError(t, err)
	assert.Equal(t, PolicyValidating, p.Name())

	_, err = New("merged", r)
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *time.Time
	}{
		{name: "rfc3339 with zone", body: `{"v":"2024-01-02T03:04:05+09:00"}`, want: ptr(time.Date(2024, 1, 1, 18, 4, 5, 0, time.UTC))},
		{name: "naive is utc", body: `{"v":"2024-01-02 03:04:05"}`, want: ptr(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))},
		{name: "garbage", body: `{"v":"yesterday-ish"}`},
		{name: "null", body: `{"v":null}`},
		{name: "missing", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTime(src(1, tt.body).Lookup("v"))
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %v", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	rec, err := Decode(ShapeMinimal, []byte(`{"question":"q","answer":"a"}`))
	require.NoError(t, err)
	q, a := rec.Text()
	assert.Equal(t, "q", q)
	assert.Equal(t, "a", a)

	_, err = Decode("other", []byte(`{}`))
	assert.Error(t, err)
}

func ptr(t time.Time) *time.Time { return &t }
