package ingest

import (
	"context"
	"time"

	"github.com/joseph-ayodele/copy-catalog/constants"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	DocumentID   string
	Deduplicated bool
	HashHex      string
	Kind         constants.FileKind
	CreatedAt    time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the service depends on.
type Ingestor interface {
	// IngestPath registers a single file from disk.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestBytes registers an uploaded file.
	IngestBytes(ctx context.Context, filename string, data []byte) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
