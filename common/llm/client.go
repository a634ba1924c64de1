package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
)

// ErrMalformedOutput marks a response the model produced that does not decode
// into the requested schema. A fresh sample usually parses, so callers treat
// it as retryable.
var ErrMalformedOutput = errors.New("malformed structured output")

var nameInvalidChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Client produces schema-constrained completions.
type Client interface {
	Chat(ctx context.Context, req Request, result any) (*Response, error)
	Model() string
}

type Request struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       any
	MaxTokens    int
	Temperature  *float64 // nil = model default, explicit 0 = deterministic
}

type Response struct {
	PromptTokens     int
	CompletionTokens int
}

// Config holds LLM client configuration.
type Config struct {
	Provider string // "openai" or "anthropic"
	APIKey   string // Required: API key for the provider
	BaseURL  string // Optional: custom API endpoint
	Model    string // Model name (e.g., "claude-sonnet-4-5-20250514", "gpt-4o-mini")
}

// NewClient creates a Client for the provider in cfg.Provider.
// Defaults to Anthropic if no provider is specified.
func NewClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderAnthropic
	}

	switch provider {
	case ProviderAnthropic:
		return newAnthropicClient(cfg)
	case ProviderOpenAI:
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

func Temp(t float64) *float64 {
	return &t
}

// SanitizeSchemaName converts a schema name to the form both providers accept
// for schema and tool names (^[a-zA-Z0-9_-]{1,64}$). Invalid characters are
// replaced with underscores, and the result is truncated to 64 characters.
func SanitizeSchemaName(name string) string {
	sanitized := nameInvalidChars.ReplaceAllString(name, "_")
	if len(sanitized) > 64 {
		sanitized = sanitized[:64]
	}
	return sanitized
}

func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.DebugContext(ctx, "llm error not retryable: context cancelled or deadline exceeded")
		return false
	}

	if errors.Is(err, ErrMalformedOutput) {
		slog.WarnContext(ctx, "llm returned malformed output, will retry", "error", err)
		return true
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		switch {
		case openaiErr.StatusCode == 429:
			slog.WarnContext(ctx, "llm rate limited, will retry",
				"status_code", openaiErr.StatusCode)
			return true
		case openaiErr.StatusCode >= 500:
			slog.WarnContext(ctx, "llm server error, will retry",
				"status_code", openaiErr.StatusCode)
			return true
		default:
			slog.ErrorContext(ctx, "llm client error, not retryable",
				"status_code", openaiErr.StatusCode,
				"error_type", openaiErr.Type,
				"error_code", openaiErr.Code)
			return false
		}
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		switch {
		// 529 is Anthropic's overloaded status
		case anthropicErr.StatusCode == 429 || anthropicErr.StatusCode == 529:
			slog.WarnContext(ctx, "llm rate limited, will retry",
				"status_code", anthropicErr.StatusCode)
			return true
		case anthropicErr.StatusCode >= 500:
			slog.WarnContext(ctx, "llm server error, will retry",
				"status_code", anthropicErr.StatusCode)
			return true
		default:
			slog.ErrorContext(ctx, "llm client error, not retryable",
				"status_code", anthropicErr.StatusCode)
			return false
		}
	}

	// Network errors (no API response) are generally retryable
	slog.WarnContext(ctx, "llm network error, will retry", "error", err)
	return true
}
