package openai

import (
	"context"

	"github.com/joseph-ayodele/copy-catalog/internal/llm"
)

// DetectLanguage implements llm.LanguageDetector.
func (c *Client) DetectLanguage(ctx context.Context, text string) (string, error) {
	return c.chat(ctx, []message{{Role: "user", Content: llm.BuildLanguagePrompt(text)}}, false)
}

// Translate implements llm.Translator.
func (c *Client) Translate(ctx context.Context, text, target string) (string, error) {
	return c.chat(ctx, []message{{Role: "user", Content: llm.BuildTranslationPrompt(text, target)}}, false)
}
