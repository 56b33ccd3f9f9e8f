package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fitai/fitness-tracker/internal/domain"

	"google.golang.org/genai"
)

// DefaultCompletionTimeout bounds a single model call.
const DefaultCompletionTimeout = 30 * time.Second

// GeminiModel implements Model using Google's Gemini API.
type GeminiModel struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiModel creates a new Gemini-backed model client.
func NewGeminiModel(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = DefaultCompletionTimeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiModel{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// Complete sends the full history and returns the single text completion.
// System messages are folded into the system instruction; user and assistant
// turns map to user and model roles.
func (m *GeminiModel) Complete(ctx context.Context, history []domain.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var system []string
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case domain.RoleSystem:
			system = append(system, msg.Content)
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	var config *genai.GenerateContentConfig
	if len(system) > 0 {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser),
		}
	}

	result, err := m.client.Models.GenerateContent(ctx, m.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty completion")
	}
	return text, nil
}
