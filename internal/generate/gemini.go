package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/conorfennell/knoldeck/internal/domain"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// TextGenerator answers a single prompt with text.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// GeminiClient is a TextGenerator backed by the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient connects to Gemini with an API key.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, generationError("ai", errors.New("no API key configured"))
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, generationError("ai", fmt.Errorf("failed to create client: %w", err))
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// GenerateText implements TextGenerator.
func (c *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.GenerativeModel(c.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("empty response")
	}
	return sb.String(), nil
}

// AI asks a language model for Count cards about Topic.
type AI struct {
	Model TextGenerator
	Topic string
	Count int
}

// DeckName implements Source.
func (a *AI) DeckName() string {
	return "✨ " + strings.TrimSpace(a.Topic)
}

// Generate implements Source.
func (a *AI) Generate(ctx context.Context) ([]domain.Pair, error) {
	topic := strings.TrimSpace(a.Topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic must not be empty", domain.ErrValidation)
	}
	count := a.Count
	if count <= 0 {
		count = 7
	}

	prompt := fmt.Sprintf(`Create %d flashcards about %q. Return strictly a JSON array of objects. Each object must have "front" and "back" keys. No markdown.`, count, topic)
	raw, err := a.Model.GenerateText(ctx, prompt)
	if err != nil {
		return nil, generationError("ai", err)
	}
	pairs, err := ExtractPairs(raw)
	if err != nil {
		return nil, generationError("ai", err)
	}
	return pairs, nil
}

// ExtractPairs pulls the JSON array between the first '[' and the last ']'
// out of free model output, which is often wrapped in prose or code fences.
func ExtractPairs(raw string) ([]domain.Pair, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end < start {
		return nil, errors.New("response does not contain a JSON array")
	}

	var pairs []domain.Pair
	if err := json.Unmarshal([]byte(raw[start:end+1]), &pairs); err != nil {
		return nil, fmt.Errorf("response is not a list of cards: %w", err)
	}
	return pairs, nil
}
