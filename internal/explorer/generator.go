package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/psidex/graphmind/internal/lib"
	"github.com/psidex/graphmind/internal/store"
)

// ErrNoJSON is returned when a model answer holds no JSON object.
var ErrNoJSON = errors.New("no JSON object in model response")

// Generator produces the connections of an idea.
type Generator interface {
	Connections(ctx context.Context, idea string) (store.Connections, error)
}

type LLMConfig struct {
	// BaseURL of an OpenAI compatible API. Empty means OpenAI itself.
	BaseURL string `yaml:"baseUrl" json:"baseUrl"`
	APIKey  string `yaml:"apiKey" json:"-"`
	Model   string `yaml:"model" json:"model"`

	// At most MaxRequests requests are started in any Period.
	MaxRequests int          `yaml:"maxRequests" json:"maxRequests"`
	Period      lib.Duration `yaml:"period" json:"period"`
}

// GeminiBaseURL is Gemini's OpenAI compatible endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:     GeminiBaseURL,
		Model:       "gemini-2.0-flash",
		MaxRequests: 10,
		Period:      lib.DurationFrom(60 * time.Second),
	}
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLMGenerator asks a chat model for the connections of an idea.
type LLMGenerator struct {
	client  chatCompleter
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ Generator = (*LLMGenerator)(nil)

func NewLLMGenerator(cfg LLMConfig, logger *slog.Logger) (*LLMGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm api key not set")
	}
	if cfg.MaxRequests <= 0 || cfg.Period.Duration <= 0 {
		return nil, fmt.Errorf("invalid llm rate limit %d per %s", cfg.MaxRequests, cfg.Period)
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	logger.Info("initializing llm generator", "model", cfg.Model, "baseUrl", oc.BaseURL)
	return &LLMGenerator{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		// A full bucket refilling one token every Period/MaxRequests allows bursts of
		// MaxRequests and never more than that per Period on average.
		limiter: rate.NewLimiter(rate.Every(cfg.Period.Duration/time.Duration(cfg.MaxRequests)), cfg.MaxRequests),
		logger:  logger,
	}, nil
}

const promptTemplate = `Explain the connections and sub-topics related to %s, and return them as JSON:

{
    "Connection 1": ["Sub-topic 1.1", "Sub-topic 1.2"],
    "Connection 2": ["Sub-topic 2.1", "Sub-topic 2.2"]
}

Include a date where it is relevant.
Do not add any other text, only return valid JSON.`

func (g *LLMGenerator) Connections(ctx context.Context, idea string) (store.Connections, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	g.logger.Debug("asking for connections", "idea", idea)
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf("Current context: {\"idea\": %q}", idea)},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(promptTemplate, idea)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connections of %q: %w", idea, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("connections of %q: model returned no choices", idea)
	}

	conns, err := parseConnections(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("connections of %q: %w", idea, err)
	}
	return conns, nil
}

var fencedJSON = regexp.MustCompile("```(?:json)?\\s*\\n([\\s\\S]*?)\\n\\s*```")

// parseConnections reads the JSON object out of a model answer, either from a fenced
// code block or the answer as a whole.
func parseConnections(answer string) (store.Connections, error) {
	candidates := []string{}
	if m := fencedJSON.FindStringSubmatch(answer); m != nil {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, strings.TrimSpace(answer))

	for _, c := range candidates {
		var conns store.Connections
		if err := json.Unmarshal([]byte(c), &conns); err == nil && conns != nil {
			return conns, nil
		}
	}
	return nil, ErrNoJSON
}
