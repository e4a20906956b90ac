package entity

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry, unique by exact name.
type Product struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// ProductVariant is one document's copy for a product in one section and locale.
type ProductVariant struct {
	ID                uuid.UUID
	ProductID         uuid.UUID
	ProductName       string
	DocumentID        uuid.UUID
	Section           string
	Locale            string
	VersionNumber     int
	Position          int
	Headlines         []string
	AdvertisingCopy   string
	KeyFeatureBullets []string
	LegalReferences   []string
}

// ProductWithVariants groups a product with every variant projected for it.
type ProductWithVariants struct {
	Product
	Variants []ProductVariant
}
