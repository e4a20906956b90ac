package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoercesLegacySingleObject(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"BusinessCopy": {"ProductName": "Phone X", "Headlines": ["Work faster"]},
		"ProductCopy": [{"ProductName": "Phone X"}, {"ProductName": "Phone Y", "AdvertisingCopy": "Bright"}]
	}`)

	shapes, err := ParseShapes(raw)
	require.NoError(t, err)
	assert.True(t, shapes[BusinessCopy].IsLegacySingle())
	assert.False(t, shapes[ProductCopy].IsLegacySingle())

	x, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, x.BusinessCopy, 1)
	require.Len(t, x.ProductCopy, 2)
	assert.Empty(t, x.UpgraderCopy)
	assert.Equal(t, 3, x.EntryCount())

	// Missing fields default to empty values, not null.
	e := x.ProductCopy[0]
	assert.Equal(t, "Phone X", e.ProductName)
	assert.NotNil(t, e.Headlines)
	assert.NotNil(t, e.KeyFeatureBullets)
	assert.NotNil(t, e.LegalReferences)
	assert.Equal(t, "", e.AdvertisingCopy)
}

func TestParseRejectsBadShapes(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`[]`, `"text"`, `{"ProductCopy": "text"}`, `not json`} {
		_, err := Parse([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestParseIgnoresUnknownKeysAndNullSections(t *testing.T) {
	t.Parallel()

	x, err := Parse([]byte(`{"ProductCopy": null, "Notes": "x", "UpgraderCopy": [{"ProductName": "Tab"}]}`))
	require.NoError(t, err)
	assert.Empty(t, x.ProductCopy)
	require.Len(t, x.UpgraderCopy, 1)
}

func TestCanonicalKeyOrderAndStability(t *testing.T) {
	t.Parallel()

	x := StructuredExtraction{
		UpgraderCopy: []ProductEntry{{ProductName: "Tab"}},
		ProductCopy:  []ProductEntry{{ProductName: "Phone", Headlines: []string{"Fast{{sup:1}}"}, LegalReferences: []string{"{{sup:1}} Lab <test> & more"}}},
	}

	out, err := x.Canonical()
	require.NoError(t, err)
	want := `{"ProductCopy":[{"ProductName":"Phone","Headlines":["Fast{{sup:1}}"],"AdvertisingCopy":"","KeyFeatureBullets":[],"LegalReferences":["{{sup:1}} Lab <test> & more"]}],` +
		`"UpgraderCopy":[{"ProductName":"Tab","Headlines":[],"AdvertisingCopy":"","KeyFeatureBullets":[],"LegalReferences":[]}]}`
	assert.Equal(t, want, string(out))

	again, err := x.Normalize().Canonical()
	require.NoError(t, err)
	assert.Equal(t, out, again)

	parsed, err := Parse(out)
	require.NoError(t, err)
	round, err := parsed.Canonical()
	require.NoError(t, err)
	assert.Equal(t, out, round)
}

func TestEmptyExtraction(t *testing.T) {
	t.Parallel()

	x, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.True(t, x.IsEmpty())

	out, err := x.Canonical()
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(out))
}

func TestCrossReferenceIssuesArePrefixed(t *testing.T) {
	t.Parallel()

	x := StructuredExtraction{ProductCopy: []ProductEntry{{
		ProductName:     "Phone",
		AdvertisingCopy: "All day{{sup:1}}, fast{{sup:2}}",
		LegalReferences: []string{"{{sup:1}} Typical use."},
	}}}
	issues := x.CrossReferenceIssues()
	require.Len(t, issues, 1)
	assert.Equal(t, "ProductCopy/Phone: footnote {{sup:2}} has no matching legal reference", issues[0])
}

func TestMapStringsKeepsShape(t *testing.T) {
	t.Parallel()

	x := StructuredExtraction{BusinessCopy: []ProductEntry{{ProductName: "a", Headlines: []string{"b"}}}}
	up := x.MapStrings(func(s string) string { return s + "!" })
	assert.Equal(t, "a!", up.BusinessCopy[0].ProductName)
	assert.Equal(t, []string{"b!"}, up.BusinessCopy[0].Headlines)
	assert.Nil(t, up.BusinessCopy[0].KeyFeatureBullets)
	assert.Nil(t, up.ProductCopy)
}

func TestIsSection(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSection("ProductCopy"))
	assert.False(t, IsSection("productcopy"))
	assert.False(t, IsSection("Produktkopie"))
}
