// Package extraction holds the structured product-copy document produced from raw text,
// its boundary parsing and its canonical serialized form.
package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/copy-catalog/internal/superscript"
)

// Section names one of the copy categories. Names are always English.
type Section string

const (
	ProductCopy  Section = "ProductCopy"
	BusinessCopy Section = "BusinessCopy"
	UpgraderCopy Section = "UpgraderCopy"
)

// Sections lists every section in storage order.
var Sections = []Section{ProductCopy, BusinessCopy, UpgraderCopy}

// IsSection reports whether key is one of the expected section names.
func IsSection(key string) bool {
	for _, s := range Sections {
		if string(s) == key {
			return true
		}
	}
	return false
}

// ProductEntry is one product's copy. Field order here is the serialized order.
type ProductEntry struct {
	ProductName       string   `json:"ProductName"`
	Headlines         []string `json:"Headlines"`
	AdvertisingCopy   string   `json:"AdvertisingCopy"`
	KeyFeatureBullets []string `json:"KeyFeatureBullets"`
	LegalReferences   []string `json:"LegalReferences"`
}

// Content returns the fields that may carry footnote tokens.
func (e ProductEntry) Content() []string {
	out := make([]string, 0, len(e.Headlines)+len(e.KeyFeatureBullets)+1)
	out = append(out, e.Headlines...)
	out = append(out, e.AdvertisingCopy)
	out = append(out, e.KeyFeatureBullets...)
	return out
}

func (e ProductEntry) normalized() ProductEntry {
	return ProductEntry{
		ProductName:       e.ProductName,
		Headlines:         nonNil(e.Headlines),
		AdvertisingCopy:   e.AdvertisingCopy,
		KeyFeatureBullets: nonNil(e.KeyFeatureBullets),
		LegalReferences:   nonNil(e.LegalReferences),
	}
}

func (e ProductEntry) mapStrings(fn func(string) string) ProductEntry {
	return ProductEntry{
		ProductName:       fn(e.ProductName),
		Headlines:         mapAll(e.Headlines, fn),
		AdvertisingCopy:   fn(e.AdvertisingCopy),
		KeyFeatureBullets: mapAll(e.KeyFeatureBullets, fn),
		LegalReferences:   mapAll(e.LegalReferences, fn),
	}
}

// StructuredExtraction maps each section to its ordered entries. Struct field
// order fixes the key order ProductCopy, BusinessCopy, UpgraderCopy; empty
// sections are omitted when serialized.
type StructuredExtraction struct {
	ProductCopy  []ProductEntry `json:"ProductCopy,omitempty"`
	BusinessCopy []ProductEntry `json:"BusinessCopy,omitempty"`
	UpgraderCopy []ProductEntry `json:"UpgraderCopy,omitempty"`
}

// Entries returns the entries of one section.
func (x StructuredExtraction) Entries(s Section) []ProductEntry {
	switch s {
	case ProductCopy:
		return x.ProductCopy
	case BusinessCopy:
		return x.BusinessCopy
	case UpgraderCopy:
		return x.UpgraderCopy
	}
	return nil
}

func (x *StructuredExtraction) set(s Section, entries []ProductEntry) {
	switch s {
	case ProductCopy:
		x.ProductCopy = entries
	case BusinessCopy:
		x.BusinessCopy = entries
	case UpgraderCopy:
		x.UpgraderCopy = entries
	}
}

// IsEmpty reports whether no section has entries.
func (x StructuredExtraction) IsEmpty() bool {
	return len(x.ProductCopy) == 0 && len(x.BusinessCopy) == 0 && len(x.UpgraderCopy) == 0
}

// EntryCount is the total number of entries across sections.
func (x StructuredExtraction) EntryCount() int {
	return len(x.ProductCopy) + len(x.BusinessCopy) + len(x.UpgraderCopy)
}

// Normalize fills defaults in every entry and drops empty sections.
// Normalize(Normalize(x)) equals Normalize(x).
func (x StructuredExtraction) Normalize() StructuredExtraction {
	var out StructuredExtraction
	for _, s := range Sections {
		entries := x.Entries(s)
		if len(entries) == 0 {
			continue
		}
		norm := make([]ProductEntry, len(entries))
		for i, e := range entries {
			norm[i] = e.normalized()
		}
		out.set(s, norm)
	}
	return out
}

// MapStrings applies fn to every string value, leaving the shape alone.
func (x StructuredExtraction) MapStrings(fn func(string) string) StructuredExtraction {
	var out StructuredExtraction
	for _, s := range Sections {
		entries := x.Entries(s)
		if entries == nil {
			continue
		}
		mapped := make([]ProductEntry, len(entries))
		for i, e := range entries {
			mapped[i] = e.mapStrings(fn)
		}
		out.set(s, mapped)
	}
	return out
}

// CrossReferenceIssues reports footnote tokens without exactly one matching legal reference.
func (x StructuredExtraction) CrossReferenceIssues() []string {
	var issues []string
	for _, s := range Sections {
		for _, e := range x.Entries(s) {
			for _, issue := range superscript.CrossReferenceIssues(e.Content(), e.LegalReferences) {
				issues = append(issues, fmt.Sprintf("%s/%s: %s", s, e.ProductName, issue))
			}
		}
	}
	return issues
}

// Canonical serializes the normalized extraction. The output is stable
// byte-for-byte for equal extractions.
func (x StructuredExtraction) Canonical() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(x.Normalize()); err != nil {
		return nil, fmt.Errorf("encode extraction: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func mapAll(in []string, fn func(string) string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fn(s)
	}
	return out
}
