package llm

import "context"

// StructureRequest is the input to a structuring capability. Text must already
// have footnote superscripts encoded as {{sup:N}} tokens.
type StructureRequest struct {
	Text         string
	FilenameHint string
}

// Structurer turns raw document text into a JSON product-copy document.
// Implementations return the model's JSON content verbatim; validation and
// normalization happen in the caller.
type Structurer interface {
	StructureText(ctx context.Context, req StructureRequest) ([]byte, error)
}

// JudgeRequest carries what a judge evaluates.
type JudgeRequest struct {
	SourceText string
	Extraction []byte // canonical JSON
}

// Criteria are the five checks every judge scores.
type Criteria struct {
	FieldNamesEnglish        bool `json:"fieldNamesEnglish"`
	ContentLanguagePreserved bool `json:"contentLanguagePreserved"`
	SuperscriptsTokenized    bool `json:"superscriptsTokenized"`
	Complete                 bool `json:"complete"`
	LegalReferencesMatched   bool `json:"legalReferencesMatched"`
}

// AllCriteria returns criteria with every check passing.
func AllCriteria() Criteria {
	return Criteria{true, true, true, true, true}
}

// All reports whether every criterion holds.
func (c Criteria) All() bool {
	return c.FieldNamesEnglish && c.ContentLanguagePreserved && c.SuperscriptsTokenized &&
		c.Complete && c.LegalReferencesMatched
}

// And combines two score sets; a criterion holds only if it holds in both.
func (c Criteria) And(o Criteria) Criteria {
	return Criteria{
		FieldNamesEnglish:        c.FieldNamesEnglish && o.FieldNamesEnglish,
		ContentLanguagePreserved: c.ContentLanguagePreserved && o.ContentLanguagePreserved,
		SuperscriptsTokenized:    c.SuperscriptsTokenized && o.SuperscriptsTokenized,
		Complete:                 c.Complete && o.Complete,
		LegalReferencesMatched:   c.LegalReferencesMatched && o.LegalReferencesMatched,
	}
}

// Failed names the criteria that do not hold.
func (c Criteria) Failed() []string {
	var out []string
	if !c.FieldNamesEnglish {
		out = append(out, "fieldNamesEnglish")
	}
	if !c.ContentLanguagePreserved {
		out = append(out, "contentLanguagePreserved")
	}
	if !c.SuperscriptsTokenized {
		out = append(out, "superscriptsTokenized")
	}
	if !c.Complete {
		out = append(out, "complete")
	}
	if !c.LegalReferencesMatched {
		out = append(out, "legalReferencesMatched")
	}
	return out
}

// JudgeVerdict is one judge's assessment.
type JudgeVerdict struct {
	Criteria   Criteria `json:"criteria"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Issues     []string `json:"issues"`
}

// Judge scores an extraction against its source text.
type Judge interface {
	Name() string
	Judge(ctx context.Context, req JudgeRequest) (JudgeVerdict, error)
}

// LanguageDetector names the dominant language of a text, as an ISO 639-1
// code or an English language name.
type LanguageDetector interface {
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// Translator renders text in the target language.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}
