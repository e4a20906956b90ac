package export

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/entity"
)

type memCatalog struct {
	products []entity.ProductWithVariants
	err      error
}

func (m *memCatalog) ListProducts(context.Context) ([]entity.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]entity.Product, len(m.products))
	for i, p := range m.products {
		out[i] = p.Product
	}
	return out, nil
}

func (m *memCatalog) GetProduct(_ context.Context, id uuid.UUID) (*entity.ProductWithVariants, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, common.ErrNotFound
}

func sampleCatalog() *memCatalog {
	doc := uuid.New()
	phone := entity.Product{ID: uuid.New(), Name: "Phone X"}
	return &memCatalog{products: []entity.ProductWithVariants{{
		Product: phone,
		Variants: []entity.ProductVariant{
			{ProductName: "Phone X", DocumentID: doc, Section: "ProductCopy", Locale: "en", VersionNumber: 2,
				Headlines: []string{"Fast{{sup:1}}", "Bright"}, AdvertisingCopy: "Up to 10{{sup:6}} colours",
				LegalReferences: []string{"{{sup:1}} Lab tested."}},
			{ProductName: "Phone X", DocumentID: doc, Section: "ProductCopy", Locale: "de", VersionNumber: 2,
				Headlines: []string{"Schnell"}},
		},
	}}}
}

func cell(t *testing.T, data []byte, axis string) string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Catalog", axis)
	require.NoError(t, err)
	return v
}

func TestExportCatalogXLSX(t *testing.T) {
	svc := NewService(sampleCatalog(), nil)

	data, rows, err := svc.ExportCatalogXLSX(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.Equal(t, "Product", cell(t, data, "A1"))
	assert.Equal(t, "Legal References", cell(t, data, "J1"))
	assert.Equal(t, "Fast{{sup:1}}\nBright", cell(t, data, "G2"))

	data, rows, err = svc.ExportCatalogXLSX(context.Background(), Options{RenderSuperscripts: true, Locale: "en"})
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
	assert.Equal(t, "Fast¹\nBright", cell(t, data, "G2"))
	assert.Equal(t, "Up to 10⁶ colours", cell(t, data, "H2"))
	assert.Equal(t, "¹ Lab tested.", cell(t, data, "J2"))
	assert.Empty(t, cell(t, data, "A3"))
}

func TestExportCatalogXLSX_ListError(t *testing.T) {
	svc := NewService(&memCatalog{err: errors.New("db down")}, nil)
	_, _, err := svc.ExportCatalogXLSX(context.Background(), Options{})
	assert.ErrorContains(t, err, "db down")
}
