package server

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/copy-catalog/internal/catalog"
	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/consensus"
	"github.com/joseph-ayodele/copy-catalog/internal/entity"
	"github.com/joseph-ayodele/copy-catalog/internal/ingest"
	"github.com/joseph-ayodele/copy-catalog/internal/pipeline"
)

func stringField(in *structpb.Struct, key string) string {
	v, ok := in.GetFields()[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

// boolField returns def when key is absent or not a bool.
func boolField(in *structpb.Struct, key string, def bool) bool {
	v, ok := in.GetFields()[key]
	if !ok {
		return def
	}
	if _, isBool := v.GetKind().(*structpb.Value_BoolValue); !isBool {
		return def
	}
	return v.GetBoolValue()
}

func uuidField(in *structpb.Struct, key string) (uuid.UUID, error) {
	raw := stringField(in, key)
	v := common.NewValidator().Field(key, raw, common.Required)
	if !v.HasErrors() {
		v.Field(key, raw, common.UUID)
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func strs(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func optFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func optString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// decodeJSON turns stored JSON into struct-compatible values. Struct fields
// are unordered, so callers also get the canonical text.
func decodeJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return string(b)
	}
	return v
}

// documentMap never includes the stored file location.
func documentMap(d *entity.Document, includeRawText bool) map[string]any {
	m := map[string]any{
		"id":                    d.ID.String(),
		"filename":              d.Filename,
		"file_kind":             string(d.FileKind),
		"content_hash":          d.ContentHash,
		"language":              d.Language,
		"locale":                d.Locale,
		"is_processed":          d.IsProcessed,
		"needs_review":          d.NeedsReview,
		"validation_confidence": optFloat(d.ValidationConfidence),
		"validation_issues":     strs(d.ValidationIssues),
		"translated_text":       optString(d.TranslatedText),
		"structured_data":       decodeJSON(d.StructuredData),
		"structured_data_json":  string(d.StructuredData),
		"created_at":            ts(d.CreatedAt),
		"updated_at":            ts(d.UpdatedAt),
	}
	if includeRawText {
		m["raw_text"] = d.RawText
	}
	return m
}

func versionMap(v *entity.DocumentVersion) map[string]any {
	return map[string]any{
		"id":                    v.ID.String(),
		"document_id":           v.DocumentID.String(),
		"version_number":        v.VersionNumber,
		"structured_data":       decodeJSON(v.StructuredData),
		"structured_data_json":  string(v.StructuredData),
		"validation_confidence": optFloat(v.ValidationConfidence),
		"validation_issues":     strs(v.ValidationIssues),
		"needs_review":          v.NeedsReview,
		"change_description":    optString(v.ChangeDescription),
		"created_at":            ts(v.CreatedAt),
	}
}

func jobMap(j *entity.ProcessingJob) map[string]any {
	m := map[string]any{
		"id":            j.ID.String(),
		"document_id":   j.DocumentID.String(),
		"status":        j.Status,
		"stage":         optString(j.Stage),
		"error_message": optString(j.ErrorMessage),
		"started_at":    ts(j.StartedAt),
		"finished_at":   nil,
	}
	if j.FinishedAt != nil {
		m["finished_at"] = ts(*j.FinishedAt)
	}
	return m
}

func productMap(p entity.Product) map[string]any {
	return map[string]any{
		"id":         p.ID.String(),
		"name":       p.Name,
		"created_at": ts(p.CreatedAt),
	}
}

func variantMap(v entity.ProductVariant) map[string]any {
	return map[string]any{
		"id":                  v.ID.String(),
		"product_id":          v.ProductID.String(),
		"product_name":        v.ProductName,
		"document_id":         v.DocumentID.String(),
		"section":             v.Section,
		"locale":              v.Locale,
		"version_number":      v.VersionNumber,
		"position":            v.Position,
		"headlines":           strs(v.Headlines),
		"advertising_copy":    v.AdvertisingCopy,
		"key_feature_bullets": strs(v.KeyFeatureBullets),
		"legal_references":    strs(v.LegalReferences),
	}
}

func verdictMap(v consensus.Verdict) map[string]any {
	c := v.Criteria
	return map[string]any{
		"confidence":   v.Confidence,
		"passed":       v.Passed,
		"needs_review": v.NeedsReview(),
		"issues":       strs(v.Issues),
		"reasoning":    v.Reasoning,
		"judges":       v.Judges,
		"criteria": map[string]any{
			"fieldNamesEnglish":        c.FieldNamesEnglish,
			"contentLanguagePreserved": c.ContentLanguagePreserved,
			"superscriptsTokenized":    c.SuperscriptsTokenized,
			"complete":                 c.Complete,
			"legalReferencesMatched":   c.LegalReferencesMatched,
		},
	}
}

func projectionMap(p catalog.ProjectionResult) map[string]any {
	return map[string]any{
		"version_number":   p.VersionNumber,
		"skipped":          p.Skipped,
		"variants":         p.Variants,
		"removed":          p.Removed,
		"products_created": p.ProductsCreated,
	}
}

func outcomeMap(o pipeline.Outcome) map[string]any {
	m := map[string]any{
		"document_id": o.DocumentID.String(),
		"job_id":      o.JobID.String(),
		"discarded":   o.Discarded,
		"language":    o.Language.Name,
		"locale":      o.Language.Locale,
	}
	if o.Discarded {
		return m
	}
	m["verdict"] = verdictMap(o.Verdict)
	m["projection"] = projectionMap(o.Projection)
	if o.Version != nil {
		m["version"] = versionMap(o.Version)
	}
	return m
}

func ingestMap(r ingest.IngestionResult) map[string]any {
	return map[string]any{
		"document_id":      r.DocumentID,
		"deduplicated":     r.Deduplicated,
		"content_hash_hex": r.HashHex,
		"file_kind":        string(r.Kind),
		"created_at":       ts(r.CreatedAt),
		"source_path":      r.SourcePath,
		"error":            r.Err,
	}
}
