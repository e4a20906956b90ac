package llm

// BuildExtractionJSONSchema returns the JSON-Schema (draft 2020-12 subset) a
// structuring reply must satisfy. Each section may be a single entry (legacy
// shape) or a list of entries.
func BuildExtractionJSONSchema() map[string]any {
	entry := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"ProductName":       map[string]any{"type": "string"},
			"Headlines":         stringListProp(),
			"AdvertisingCopy":   map[string]any{"type": "string"},
			"KeyFeatureBullets": stringListProp(),
			"LegalReferences":   stringListProp(),
		},
		"required": []string{"ProductName"},
	}
	section := map[string]any{
		"oneOf": []any{
			entry,
			map[string]any{"type": "array", "items": entry},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"ProductCopy":  section,
			"BusinessCopy": section,
			"UpgraderCopy": section,
		},
	}
}

// BuildJudgeJSONSchema returns the schema of a judge reply.
func BuildJudgeJSONSchema() map[string]any {
	boolProp := map[string]any{"type": "boolean"}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"criteria": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"fieldNamesEnglish":        boolProp,
					"contentLanguagePreserved": boolProp,
					"superscriptsTokenized":    boolProp,
					"complete":                 boolProp,
					"legalReferencesMatched":   boolProp,
				},
				"required": []string{
					"fieldNamesEnglish", "contentLanguagePreserved", "superscriptsTokenized",
					"complete", "legalReferencesMatched",
				},
			},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"reasoning":  map[string]any{"type": "string"},
			"issues":     stringListProp(),
		},
		"required": []string{"criteria", "confidence"},
	}
}

func stringListProp() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}
