package openai

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/copy-catalog/internal/llm"
)

// Name identifies this judge in combined reasoning.
func (c *Client) Name() string {
	return "openai/" + c.cfg.Model
}

// Judge implements llm.Judge.
func (c *Client) Judge(ctx context.Context, req llm.JudgeRequest) (llm.JudgeVerdict, error) {
	rid := uuid.New().String()
	start := time.Now()

	messages := []message{
		{Role: "system", Content: llm.BuildJudgeSystemPrompt()},
		{Role: "system", Content: "JSON Schema:\n" + llm.MustJSON(llm.BuildJudgeJSONSchema())},
		{Role: "user", Content: llm.BuildJudgeUserPrompt(req)},
	}
	content, err := c.chat(ctx, messages, true)
	if err != nil {
		c.logger.Warn("llm.judge.failed", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.JudgeVerdict{}, err
	}

	v, err := llm.ParseJudgeReply(content)
	if err != nil {
		c.logger.Warn("llm.judge.invalid_reply", "req_id", rid, "error", err, "content", llm.Truncate(content, 1024))
		return llm.JudgeVerdict{}, err
	}
	c.logger.Info("llm.judge.ok",
		"req_id", rid,
		"confidence", v.Confidence,
		"failed_criteria", v.Criteria.Failed(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return v, nil
}
