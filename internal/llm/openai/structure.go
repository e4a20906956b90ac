package openai

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/copy-catalog/internal/llm"
)

// StructureText implements llm.Structurer. The returned bytes are the model's
// JSON content with any code fences removed; schema checks are the caller's job.
func (c *Client) StructureText(ctx context.Context, req llm.StructureRequest) ([]byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.structure.start",
		"req_id", rid,
		"text_len", len(req.Text),
		"filename", req.FilenameHint,
	)

	messages := []message{
		{Role: "system", Content: llm.BuildStructuringSystemPrompt()},
		{Role: "system", Content: "JSON Schema:\n" + llm.MustJSON(llm.BuildExtractionJSONSchema())},
		{Role: "user", Content: llm.BuildStructuringUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
	}
	content, err := c.chat(ctx, messages, true)
	if err != nil {
		c.logger.Error("llm.structure.failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	c.logger.Info("llm.structure.ok",
		"req_id", rid,
		"bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.CleanJSONReply(content), nil
}
