package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SectionShape is a section as it arrives at the boundary: either the legacy
// single-object shape or a list of entries.
type SectionShape struct {
	Single *ProductEntry
	List   []ProductEntry
}

// IsLegacySingle reports whether the section used the single-object shape.
func (s SectionShape) IsLegacySingle() bool {
	return s.Single != nil
}

// Entries coerces either shape into a list.
func (s SectionShape) Entries() []ProductEntry {
	if s.Single != nil {
		return []ProductEntry{*s.Single}
	}
	return s.List
}

func (s *SectionShape) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("empty section")
	}
	switch b[0] {
	case '{':
		var e ProductEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return fmt.Errorf("decode single entry: %w", err)
		}
		*s = SectionShape{Single: &e}
	case '[':
		var list []ProductEntry
		if err := json.Unmarshal(b, &list); err != nil {
			return fmt.Errorf("decode entry list: %w", err)
		}
		*s = SectionShape{List: list}
	case 'n':
		*s = SectionShape{}
	default:
		return fmt.Errorf("section must be an object or an array")
	}
	return nil
}

// ParseShapes decodes the three sections of a payload as boundary shapes.
// Keys other than the three sections are ignored; null sections are absent.
func ParseShapes(data []byte) (map[Section]SectionShape, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}
	if top == nil {
		return nil, fmt.Errorf("decode extraction: payload is not an object")
	}

	out := make(map[Section]SectionShape, len(Sections))
	for _, s := range Sections {
		raw, ok := top[string(s)]
		if !ok {
			continue
		}
		var shape SectionShape
		if err := json.Unmarshal(raw, &shape); err != nil {
			return nil, fmt.Errorf("section %s: %w", s, err)
		}
		out[s] = shape
	}
	return out, nil
}

// FromShapes coerces every shape to a list and normalizes the result.
func FromShapes(shapes map[Section]SectionShape) StructuredExtraction {
	var out StructuredExtraction
	for _, s := range Sections {
		if shape, ok := shapes[s]; ok {
			out.set(s, shape.Entries())
		}
	}
	return out.Normalize()
}

// Parse decodes a reply or stored payload into a normalized extraction.
func Parse(data []byte) (StructuredExtraction, error) {
	shapes, err := ParseShapes(data)
	if err != nil {
		return StructuredExtraction{}, err
	}
	return FromShapes(shapes), nil
}
