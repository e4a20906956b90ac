package structuring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/llm"
)

type fakeStructurer struct {
	reply []byte
	err   error
	got   llm.StructureRequest
}

func (f *fakeStructurer) StructureText(_ context.Context, req llm.StructureRequest) ([]byte, error) {
	f.got = req
	return f.reply, f.err
}

func TestStructureEncodesAndNormalizes(t *testing.T) {
	t.Parallel()

	fake := &fakeStructurer{reply: []byte(`{
		"ProductCopy": {"ProductName": "Phone X™", "Headlines": ["All-day battery{{sup:1}}"], "LegalReferences": ["¹ Typical use."]}
	}`)}
	c := NewClient(fake, time.Second, nil)

	res, err := c.Structure(context.Background(), "Phone X™\nAll-day battery¹\n¹ Typical use.", "phone.docx")
	require.NoError(t, err)

	assert.Equal(t, "Phone X\nAll-day battery{{sup:1}}\n{{sup:1}} Typical use.", fake.got.Text)
	assert.Equal(t, "phone.docx", fake.got.FilenameHint)
	assert.True(t, res.LegacyRaw)
	assert.Empty(t, res.Issues)

	require.Len(t, res.Extraction.ProductCopy, 1)
	e := res.Extraction.ProductCopy[0]
	assert.Equal(t, "Phone X", e.ProductName)
	assert.Equal(t, []string{"{{sup:1}} Typical use."}, e.LegalReferences)
	assert.Equal(t, []string{}, e.KeyFeatureBullets)

	assert.Equal(t,
		`{"ProductCopy":[{"ProductName":"Phone X","Headlines":["All-day battery{{sup:1}}"],"AdvertisingCopy":"","KeyFeatureBullets":[],"LegalReferences":["{{sup:1}} Typical use."]}]}`,
		string(res.Canonical))
	assert.Empty(t, res.Extraction.CrossReferenceIssues())
}

func TestStructureReportsAmbiguousSuperscripts(t *testing.T) {
	t.Parallel()

	fake := &fakeStructurer{reply: []byte(`{"ProductCopy": [{"ProductName": "Tab"}]}`)}
	res, err := NewClient(fake, time.Second, nil).Structure(context.Background(), "Only 99 ² today", "")
	require.NoError(t, err)
	require.Len(t, res.Issues, 1)
	assert.Contains(t, res.Issues[0], "ambiguous superscript")
	assert.False(t, res.LegacyRaw)
}

func TestStructureReportsAmbiguousSuperscriptsInReply(t *testing.T) {
	t.Parallel()

	fake := &fakeStructurer{reply: []byte(`{"ProductCopy": [{"ProductName": "Tab", "Headlines": ["Price 99 ²"]}]}`)}
	res, err := NewClient(fake, time.Second, nil).Structure(context.Background(), "Tab price list", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Price 99 {{sup:2}}"}, res.Extraction.ProductCopy[0].Headlines)
	require.Len(t, res.Issues, 1)
	assert.Contains(t, res.Issues[0], "ambiguous superscript")
	assert.Contains(t, res.Issues[0], "{{sup:2}}")
}

func TestStructureDeduplicatesAmbiguousIssues(t *testing.T) {
	t.Parallel()

	// The model echoes the same ambiguous glyph found in the source.
	fake := &fakeStructurer{reply: []byte(`{"ProductCopy": [{"ProductName": "Tab", "Headlines": ["Only 99 ² today"]}]}`)}
	res, err := NewClient(fake, time.Second, nil).Structure(context.Background(), "Only 99 ² today", "")
	require.NoError(t, err)
	assert.Len(t, res.Issues, 1)
}

func TestStructureErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty text is unsupported", func(t *testing.T) {
		fake := &fakeStructurer{}
		_, err := NewClient(fake, time.Second, nil).Structure(context.Background(), "  \n ", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrUnsupportedInput)
		assert.False(t, common.IsRetryable(err))
	})

	t.Run("provider failure is retryable", func(t *testing.T) {
		fake := &fakeStructurer{err: errors.New("connection reset")}
		_, err := NewClient(fake, time.Second, nil).Structure(context.Background(), "text", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrCapabilityUnavailable)
		assert.True(t, common.IsRetryable(err))

		var ce *common.CapabilityError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "structuring", ce.Capability)
	})

	t.Run("schema violation", func(t *testing.T) {
		fake := &fakeStructurer{reply: []byte(`{"ProductCopy": [{"Headlines": ["no name"]}]}`)}
		res, err := NewClient(fake, time.Second, nil).Structure(context.Background(), "text", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrSchemaViolation)
		assert.True(t, common.IsRetryable(err))
		assert.NotEmpty(t, res.Raw)
	})

	t.Run("empty extraction", func(t *testing.T) {
		for _, reply := range []string{`{}`, `{"ProductCopy": []}`} {
			fake := &fakeStructurer{reply: []byte(reply)}
			res, err := NewClient(fake, time.Second, nil).Structure(context.Background(), "text", "")
			assert.ErrorIs(t, err, common.ErrSchemaViolation, reply)
			assert.True(t, common.IsRetryable(err), reply)
			assert.Empty(t, res.Canonical, reply)
		}
	})

	t.Run("unknown top-level key", func(t *testing.T) {
		fake := &fakeStructurer{reply: []byte(`{"Produktkopie": []}`)}
		_, err := NewClient(fake, time.Second, nil).Structure(context.Background(), "text", "")
		assert.ErrorIs(t, err, common.ErrSchemaViolation)
	})
}

func TestDecode(t *testing.T) {
	t.Parallel()

	x, legacy, err := Decode([]byte(`{"BusinessCopy": [{"ProductName": "A"}, {"ProductName": "B"}]}`))
	require.NoError(t, err)
	assert.False(t, legacy)
	assert.Len(t, x.BusinessCopy, 2)

	_, _, err = Decode([]byte(`not json`))
	assert.ErrorIs(t, err, common.ErrSchemaViolation)
}
