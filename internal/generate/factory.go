package generate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"path/filepath"

	"github.com/conorfennell/knoldeck/internal/domain"
)

// Triggers accepted by Factory.New.
const (
	TriggerAI       = "ai"
	TriggerTrivia   = "trivia"
	TriggerGeo      = "geo"
	TriggerMarkdown = "markdown"
	TriggerGit      = "git"
)

// Params are the per-request options of a generation. Zero values fall back
// to the Factory's configured defaults.
type Params struct {
	Topic    string `json:"topic,omitempty"`
	Category string `json:"category,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Count    int    `json:"count,omitempty"`
	Path     string `json:"path,omitempty"`
	Name     string `json:"name,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Factory builds Sources from configuration and request parameters.
type Factory struct {
	Client       *http.Client
	GeminiAPIKey string
	GeminiModel  string
	GeminiCount  int
	TriviaURL    string
	TriviaAmount int
	GeoURL       string
	GeoCount     int
	GitCacheDir  string
	// MarkdownRoot, when set, confines markdown imports to paths below it;
	// relative paths are resolved against it.
	MarkdownRoot string
	Progress     io.Writer
	Logger       *slog.Logger
	Rand         *rand.Rand
}

// New returns the Source for trigger.
func (f *Factory) New(trigger string, p Params) (Source, error) {
	switch trigger {
	case TriggerAI:
		return &AI{
			Model: &lazyGemini{apiKey: f.GeminiAPIKey, model: f.GeminiModel},
			Topic: p.Topic,
			Count: orDefault(p.Count, f.GeminiCount),
		}, nil
	case TriggerTrivia:
		return &Trivia{Client: f.Client, BaseURL: f.TriviaURL, Category: p.Category, Amount: orDefault(p.Count, f.TriviaAmount)}, nil
	case TriggerGeo:
		kind := p.Kind
		if kind == "" {
			kind = GeoCapitals
		}
		return &Geography{Client: f.Client, BaseURL: f.GeoURL, Kind: kind, Count: orDefault(p.Count, f.GeoCount), Rand: f.Rand}, nil
	case TriggerMarkdown:
		if p.Path == "" {
			return nil, fmt.Errorf("%w: path must not be empty", domain.ErrValidation)
		}
		path, err := f.markdownPath(p.Path)
		if err != nil {
			return nil, err
		}
		return &Markdown{Path: path, Name: p.Name}, nil
	case TriggerGit:
		if p.URL == "" {
			return nil, fmt.Errorf("%w: url must not be empty", domain.ErrValidation)
		}
		return &Git{URL: p.URL, CacheDir: f.GitCacheDir, Progress: f.Progress, Logger: f.Logger}, nil
	default:
		return nil, fmt.Errorf("%w: unknown generator %q", domain.ErrValidation, trigger)
	}
}

func (f *Factory) markdownPath(path string) (string, error) {
	if f.MarkdownRoot == "" {
		return path, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.MarkdownRoot, path)
	}
	if err := within(f.MarkdownRoot, path); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return path, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// lazyGemini opens a Gemini client for each prompt so that a missing key
// only fails the AI generation itself.
type lazyGemini struct {
	apiKey string
	model  string
}

func (l *lazyGemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	client, err := NewGeminiClient(ctx, l.apiKey, l.model)
	if err != nil {
		return "", err
	}
	defer client.Close()
	return client.GenerateText(ctx, prompt)
}
