package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	// JSONMode asks the model for an application/json response.
	JSONMode bool
}

// GeminiBackend is a Backend backed by the Gemini API.
type GeminiBackend struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiBackend creates a Gemini client. It returns (nil, nil) when no API
// key is configured so callers can treat the model as absent.
func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)
	if cfg.JSONMode {
		model.ResponseMIMEType = "application/json"
	}

	return &GeminiBackend{client: client, model: model}, nil
}

// Generate sends the prompt and inline images and concatenates the text parts
// of the first candidate.
func (g *GeminiBackend) Generate(ctx context.Context, prompt string, images []Image) (string, error) {
	parts := make([]genai.Part, 0, len(images)+1)
	parts = append(parts, genai.Text(prompt))
	for _, img := range images {
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("model returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("model returned no text")
	}
	return sb.String(), nil
}

// Close releases the underlying client.
func (g *GeminiBackend) Close() error {
	return g.client.Close()
}
