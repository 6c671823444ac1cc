// Package vertex implements llm.Completer on Gemini models served by Vertex AI.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"

	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/metrics"
)

const provider = "vertex"

type Config struct {
	Project     string
	Region      string // default us-central1
	Model       string // default gemini-1.5-pro
	Temperature float32
	Timeout     time.Duration
}

type Client struct {
	cfg    Config
	client *genai.Client
	log    *slog.Logger
}

// NewClient dials Vertex AI with application default credentials.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Project == "" {
		return nil, errors.New("vertex: project cannot be empty")
	}
	if cfg.Region == "" {
		cfg.Region = "us-central1"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, cfg.Project, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{cfg: cfg, client: client, log: logger}, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Model reports the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Complete implements llm.Completer. The model is asked for JSON output.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	log := common.LoggerFor(ctx, c.log)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(c.cfg.Temperature),
	}

	log.Info("llm.vertex.start", "model", c.cfg.Model, "system_len", len(system), "user_len", len(user))

	resp, err := model.GenerateContent(ctx, genai.Text(user))
	elapsed := time.Since(start)
	metrics.LLMRequestDuration.WithLabelValues(provider, c.cfg.Model).Observe(elapsed.Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(provider, c.cfg.Model, "error").Inc()
		log.Error("llm.vertex.error", "error", err, "elapsed_ms", elapsed.Milliseconds())
		return "", fmt.Errorf("vertex generate: %w", err)
	}

	content := responseText(resp)
	if content == "" {
		metrics.LLMRequestsTotal.WithLabelValues(provider, c.cfg.Model, "error").Inc()
		log.Error("llm.vertex.empty", "elapsed_ms", elapsed.Milliseconds())
		return "", errors.New("vertex: empty response")
	}

	metrics.LLMRequestsTotal.WithLabelValues(provider, c.cfg.Model, "success").Inc()
	if u := resp.UsageMetadata; u != nil {
		metrics.LLMTokensTotal.WithLabelValues(provider, c.cfg.Model, "prompt").Add(float64(u.PromptTokenCount))
		metrics.LLMTokensTotal.WithLabelValues(provider, c.cfg.Model, "completion").Add(float64(u.CandidatesTokenCount))
	}
	log.Info("llm.vertex.ok", "content_len", len(content), "elapsed_ms", elapsed.Milliseconds())
	return content, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(sb.String())
}
