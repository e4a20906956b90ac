package llm

import (
	"encoding/json"
	"strings"
)

// MaxPromptChars caps the source text sent to any capability.
const MaxPromptChars = 60000

// BuildStructuringSystemPrompt states the contract the structuring capability must honor.
func BuildStructuringSystemPrompt() string {
	parts := []string{
		"You extract marketing product copy from documents. Return ONLY JSON that matches the provided JSON Schema.",
		"Top-level keys are copy sections: ProductCopy (general copy), BusinessCopy (business-targeted copy), UpgraderCopy (copy for customers upgrading). Include only sections that appear in the document.",
		"Each section is an array with one object per product: ProductName, Headlines, AdvertisingCopy, KeyFeatureBullets, LegalReferences.",
		"Field names MUST be exactly these English names. Field VALUES MUST stay in the document's original language; never translate them.",
		"Scan the ENTIRE document for every product in every section. If a table of contents or overview lists N products in a section, return N separate entries, never one merged entry.",
		"Footnote markers appear as tokens like {{sup:1}}. Copy every token exactly where it appears in headlines, copy and bullets.",
		"Each footnote text goes in LegalReferences of the product that references it, and MUST begin with the same token, e.g. \"{{sup:1}} Offer valid in the US only.\".",
		"Omit trademark symbols. Keep unit and scientific superscripts (cm², 10⁶) as they are.",
		"Use empty arrays or empty strings for missing fields; never output null.",
	}
	return strings.Join(parts, " ")
}

// BuildStructuringUserPrompt packages the encoded source text.
func BuildStructuringUserPrompt(req StructureRequest) string {
	var b strings.Builder
	if f := strings.TrimSpace(req.FilenameHint); f != "" {
		b.WriteString("Filename: ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("\nDocument text:\n")
	b.WriteString(Truncate(req.Text, MaxPromptChars))
	return b.String()
}

// BuildJudgeSystemPrompt describes the five criteria every judge scores.
func BuildJudgeSystemPrompt() string {
	parts := []string{
		"You audit a structured extraction of marketing copy against its source document. Return ONLY JSON matching the provided JSON Schema.",
		"Score five boolean criteria:",
		"fieldNamesEnglish: every field name is English (ProductCopy, BusinessCopy, UpgraderCopy, ProductName, Headlines, AdvertisingCopy, KeyFeatureBullets, LegalReferences).",
		"contentLanguagePreserved: every value is in the source language and was not translated.",
		"superscriptsTokenized: footnote markers appear as {{sup:N}} tokens and trademark symbols are gone; unit superscripts are untouched.",
		"complete: every product in every section of the source was captured as its own entry.",
		"legalReferencesMatched: every {{sup:N}} used in the copy has exactly one LegalReferences entry starting with the same token.",
		"Also give confidence between 0 and 1 that the extraction is correct, short reasoning, and a list of concrete issues (empty if none).",
	}
	return strings.Join(parts, " ")
}

// BuildJudgeUserPrompt packages the source text and the extraction under review.
func BuildJudgeUserPrompt(req JudgeRequest) string {
	var b strings.Builder
	b.WriteString("Source document:\n")
	b.WriteString(Truncate(req.SourceText, MaxPromptChars/2))
	b.WriteString("\n\nExtraction:\n")
	b.Write(req.Extraction)
	return b.String()
}

// BuildLanguagePrompt asks for the dominant language of a text sample.
func BuildLanguagePrompt(text string) string {
	return "Identify the dominant language of the following text. Reply with only its ISO 639-1 code (for example: en, de, fr).\n\n" +
		Truncate(text, 2000)
}

// BuildTranslationPrompt asks for a faithful translation that keeps footnote tokens.
func BuildTranslationPrompt(text, target string) string {
	return "Translate the following text into " + target + ". Keep every {{sup:N}} token exactly where it is. Reply with the translation only.\n\n" +
		Truncate(text, MaxPromptChars)
}

// Truncate cuts s to at most n bytes on a rune boundary.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n…(truncated)"
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// MustJSON renders v as indented JSON for embedding in prompts.
func MustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
