package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"SupplyRadar/internal/config"
	"SupplyRadar/internal/ports"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiNarrator implements ports.Narrator for Google Gemini.
type GeminiNarrator struct {
	client       *genai.Client
	model        string
	systemPrompt string
}

var _ ports.Narrator = (*GeminiNarrator)(nil)

// NewGeminiNarrator creates a Gemini client; Close releases it.
func NewGeminiNarrator(ctx context.Context, cfg config.GeminiConfig) (*GeminiNarrator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiNarrator{client: client, model: model, systemPrompt: cfg.SystemPrompt}, nil
}

// Narrate generates JSON rationale text with a low temperature.
func (g *GeminiNarrator) Narrate(ctx context.Context, req ports.NarrativeRequest) (ports.Narrative, error) {
	userPrompt, err := buildUserPrompt(req)
	if err != nil {
		return ports.Narrative{}, err
	}

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(safePrompt(g.systemPrompt))}}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return ports.Narrative{}, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return ports.Narrative{}, err
	}
	return ParseNarrative(text, req.Assessments)
}

// Close releases resources held by the client.
func (g *GeminiNarrator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}
