package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/copy-catalog/constants"
)

// Document is an ingested file and its current processing state.
type Document struct {
	ID                   uuid.UUID
	Filename             string
	FileKind             constants.FileKind
	ContentHash          string
	Language             string
	Locale               string
	RawText              string
	TranslatedText       *string
	StructuredData       []byte // canonical JSON; nil until first successful processing
	IsProcessed          bool
	ValidationConfidence *float64
	ValidationIssues     []string
	NeedsReview          bool
	OriginalFilePath     string // blob key; never leaves the service
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DocumentVersion is an immutable snapshot of a document's extraction.
type DocumentVersion struct {
	ID                   uuid.UUID
	DocumentID           uuid.UUID
	VersionNumber        int
	StructuredData       []byte
	ValidationConfidence *float64
	ValidationIssues     []string
	NeedsReview          bool
	ChangeDescription    *string
	CreatedAt            time.Time
}
