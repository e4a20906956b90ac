package constants

import "strings"

// FileKind is the canonical document kind stored on documents.file_kind.
type FileKind string

const (
	DOCX  FileKind = "DOCX"
	PDF   FileKind = "PDF"
	XLSX  FileKind = "XLSX"
	PAGES FileKind = "PAGES"
)

// AllowedExtensions holds the extensions picked up by ingestion. "pages" is
// listed so it can be rejected with an actionable message instead of being skipped.
var AllowedExtensions = map[string]struct{}{
	"docx":  {},
	"pdf":   {},
	"xlsx":  {},
	"pages": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToKind maps a file extension to its FileKind, or "" when unknown.
func MapExtToKind(ext string) FileKind {
	switch NormalizeExt(ext) {
	case "docx":
		return DOCX
	case "pdf":
		return PDF
	case "xlsx":
		return XLSX
	case "pages":
		return PAGES
	default:
		return ""
	}
}
