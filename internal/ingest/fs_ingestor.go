package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/copy-catalog/constants"
	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/repository"
	"github.com/joseph-ayodele/copy-catalog/internal/storage"
)

// FSIngestor stores originals in a blob store and registers documents,
// deduplicating by content hash.
type FSIngestor struct {
	docs   repository.DocumentRepository
	blobs  storage.FileStore
	logger *slog.Logger
}

func NewFSIngestor(docs repository.DocumentRepository, blobs storage.FileStore, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{docs: docs, blobs: blobs, logger: logger}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return IngestionResult{SourcePath: path}, fmt.Errorf("abs path: %w", err)
	}
	if _, err := checkKind(abs); err != nil {
		return IngestionResult{SourcePath: abs}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		i.logger.Error("ingest.read_failed", "path", abs, "error", err)
		return IngestionResult{SourcePath: abs}, fmt.Errorf("read: %w", err)
	}
	res, err := i.IngestBytes(ctx, filepath.Base(abs), data)
	res.SourcePath = abs
	return res, err
}

func (i *FSIngestor) IngestBytes(ctx context.Context, filename string, data []byte) (IngestionResult, error) {
	out := IngestionResult{SourcePath: filename}
	kind, err := checkKind(filename)
	if err != nil {
		return out, err
	}
	if len(data) == 0 {
		return out, common.UnsupportedInputError("%s is empty", filename)
	}

	sum := sha256.Sum256(data)
	hashHex := hex.EncodeToString(sum[:])
	key := hashHex + "." + constants.NormalizeExt(filepath.Ext(filename))

	// Blob first: a document row must never point at a missing original.
	if err := i.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		i.logger.Error("ingest.store_failed", "filename", filename, "error", err)
		return out, err
	}

	doc, dedup, err := i.docs.CreateOrGet(ctx, repository.NewDocument{
		Filename:         filename,
		FileKind:         kind,
		ContentHash:      hashHex,
		OriginalFilePath: key,
	})
	if err != nil {
		return out, err
	}

	i.logger.Info("ingest.ok", "document_id", doc.ID, "filename", filename, "kind", kind, "deduplicated", dedup)
	return IngestionResult{
		SourcePath:   filename,
		DocumentID:   doc.ID.String(),
		Deduplicated: dedup,
		HashHex:      hashHex,
		Kind:         kind,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

// IngestDirectory walks root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

// checkKind maps a filename to a processable kind. Pages files get an
// actionable rejection instead of a silent skip.
func checkKind(name string) (constants.FileKind, error) {
	kind := constants.MapExtToKind(filepath.Ext(name))
	switch kind {
	case "":
		return "", common.UnsupportedInputError("unsupported or missing extension %q; upload PDF, DOCX or XLSX", filepath.Ext(name))
	case constants.PAGES:
		return "", common.UnsupportedInputError("%s is a Pages document; convert to PDF or DOCX and upload again", filepath.Base(name))
	}
	return kind, nil
}
