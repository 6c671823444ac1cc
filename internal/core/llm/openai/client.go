package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/metrics"
)

const provider = "openai"

// Complete implements llm.Completer with a single JSON-mode chat completion.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	log := common.LoggerFor(ctx, c.log)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	log.Info("llm.openai.start",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"system_len", len(system),
		"user_len", len(user),
	)

	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
	})
	elapsed := time.Since(start)
	metrics.LLMRequestDuration.WithLabelValues(provider, c.cfg.Model).Observe(elapsed.Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(provider, c.cfg.Model, "error").Inc()
		err = parseAPIError(err)
		log.Error("llm.openai.http_error", "error", err, "elapsed_ms", elapsed.Milliseconds())
		return "", err
	}
	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(provider, c.cfg.Model, "error").Inc()
		log.Error("llm.openai.no_choices", "elapsed_ms", elapsed.Milliseconds())
		return "", errors.New("no choices in openai response")
	}

	metrics.LLMRequestsTotal.WithLabelValues(provider, c.cfg.Model, "success").Inc()
	metrics.LLMTokensTotal.WithLabelValues(provider, c.cfg.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(provider, c.cfg.Model, "completion").Add(float64(resp.Usage.CompletionTokens))

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	log.Info("llm.openai.ok",
		"content_len", len(content),
		"finish_reason", resp.Choices[0].FinishReason,
		"total_tokens", resp.Usage.TotalTokens,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return content, nil
}

// parseAPIError turns a go-openai error into a readable message.
func parseAPIError(err error) error {
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("openai status %d: %s", reqErr.HTTPStatusCode, detail)
		}
		return fmt.Errorf("openai status %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	return fmt.Errorf("openai request: %w", err)
}

// extractDetail reads the "detail" field some compatible gateways return.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		return parsed.Detail
	}
	return ""
}
