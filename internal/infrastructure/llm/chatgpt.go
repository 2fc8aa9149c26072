package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"SupplyRadar/internal/config"
	"SupplyRadar/internal/ports"
)

// ChatGPTNarrator implements ports.Narrator backed by OpenAI-compatible APIs.
type ChatGPTNarrator struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.Narrator = (*ChatGPTNarrator)(nil)

// NewChatGPTNarrator builds a narrator from configuration.
func NewChatGPTNarrator(cfg config.ChatGPTConfig) *ChatGPTNarrator {
	return &ChatGPTNarrator{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Narrate asks the chat model for rationale text in JSON mode.
func (c *ChatGPTNarrator) Narrate(ctx context.Context, req ports.NarrativeRequest) (ports.Narrative, error) {
	if c == nil {
		return ports.Narrative{}, fmt.Errorf("chatgpt narrator is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return ports.Narrative{}, fmt.Errorf("chatgpt narrator misconfigured")
	}

	userPrompt, err := buildUserPrompt(req)
	if err != nil {
		return ports.Narrative{}, err
	}

	body, err := json.Marshal(map[string]any{
		"model":           c.model,
		"temperature":     0.1,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt)},
			{"role": "user", "content": userPrompt},
		},
	})
	if err != nil {
		return ports.Narrative{}, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.Narrative{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ports.Narrative{}, fmt.Errorf("send narrative request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return ports.Narrative{}, fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.Narrative{}, fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return ports.Narrative{}, fmt.Errorf("chatgpt returned no choices")
	}

	return ParseNarrative(decoded.Choices[0].Message.Content, req.Assessments)
}
