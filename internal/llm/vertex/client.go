// Package vertex provides a Gemini-backed judge and language detector on Vertex AI.
package vertex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/llm"
)

// Config for the Vertex client.
type Config struct {
	Project string
	Region  string
	Model   string // default "gemini-1.5-pro"
}

// Client holds the pre-configured generative models used by this package.
type Client struct {
	cfg        Config
	judge      *genai.GenerativeModel
	detector   *genai.GenerativeModel
	baseClient *genai.Client
	logger     *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Project == "" || cfg.Region == "" {
		return nil, fmt.Errorf("vertex: project and region cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	if logger == nil {
		logger = slog.Default()
	}

	baseClient, err := genai.NewClient(ctx, cfg.Project, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	judge := baseClient.GenerativeModel(cfg.Model)
	judge.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(llm.BuildJudgeSystemPrompt())},
	}
	judge.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	detector := baseClient.GenerativeModel(cfg.Model)
	detector.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}

	return &Client{
		cfg:        cfg,
		judge:      judge,
		detector:   detector,
		baseClient: baseClient,
		logger:     logger.With("provider", "vertex", "model", cfg.Model),
	}, nil
}

func (c *Client) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// Name identifies this judge in combined reasoning.
func (c *Client) Name() string {
	return "vertex/" + c.cfg.Model
}

// Judge implements llm.Judge.
func (c *Client) Judge(ctx context.Context, req llm.JudgeRequest) (llm.JudgeVerdict, error) {
	rid := uuid.New().String()
	start := time.Now()

	prompt := llm.BuildJudgeUserPrompt(req) + "\n\nJSON Schema:\n" + llm.MustJSON(llm.BuildJudgeJSONSchema())
	resp, err := c.judge.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		c.logger.Warn("llm.judge.failed", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.JudgeVerdict{}, fmt.Errorf("%w: vertex generate: %v", common.ErrCapabilityUnavailable, err)
	}

	content, err := responseText(resp)
	if err != nil {
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

// DetectLanguage implements llm.LanguageDetector.
func (c *Client) DetectLanguage(ctx context.Context, text string) (string, error) {
	resp, err := c.detector.GenerateContent(ctx, genai.Text(llm.BuildLanguagePrompt(text)))
	if err != nil {
		return "", fmt.Errorf("%w: vertex generate: %v", common.ErrCapabilityUnavailable, err)
	}
	return responseText(resp)
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: vertex returned no candidates", common.ErrSchemaViolation)
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: vertex candidate has no text", common.ErrSchemaViolation)
	}
	return strings.TrimSpace(b.String()), nil
}
