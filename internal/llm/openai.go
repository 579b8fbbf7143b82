// internal/llm/openai.go
// Chat-completion client used as the external re-ranking model

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/obimo/obimo-backend/internal/common/logger"
)

const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"

	breakerName = "llm-ranker"

	systemPrompt = "You are a ranking assistant for a travel companion app. Reply with a single JSON object and nothing else."
)

var (
	ErrModelUnavailable = errors.New("ranking model unavailable")
	ErrEmptyCompletion  = errors.New("model returned no choices")
)

type Config struct {
	Provider        string
	APIKey          string
	BaseURL         string
	Model           string
	BreakerFailures int
	BreakerCooldown time.Duration
}

// OpenAIModel talks to any OpenAI-compatible chat endpoint (OpenAI, Groq).
// Calls go through a circuit breaker so an unhealthy provider fails fast.
type OpenAIModel struct {
	client *openai.Client
	model  string
	cb     *gobreaker.CircuitBreaker[string]
	logger *logger.Logger
}

func NewOpenAIModel(cfg Config, log *logger.Logger) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key for provider %q", ErrModelUnavailable, cfg.Provider)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
	case ProviderGroq:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: groq requires a base URL", ErrModelUnavailable)
		}
		clientConfig.BaseURL = cfg.BaseURL
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrModelUnavailable, cfg.Provider)
	}

	failures := cfg.BreakerFailures
	if failures < 1 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	m := &OpenAIModel{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: log,
	}

	breakerState.WithLabelValues(breakerName).Set(0)
	m.cb = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		// Callers abandoning a request say nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			breakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return m, nil
}

// Complete sends prompt as a single user turn and returns the reply text
func (m *OpenAIModel) Complete(ctx context.Context, prompt string) (string, error) {
	started := time.Now()

	text, err := m.cb.Execute(func() (string, error) {
		resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: m.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: 0.2,
			MaxTokens:   500,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyCompletion
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})

	requestDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			requestsTotal.WithLabelValues("rejected").Inc()
			return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
		requestsTotal.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("chat completion: %w", err)
	}

	requestsTotal.WithLabelValues("success").Inc()
	return text, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
