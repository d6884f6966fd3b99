package llm

import (
	"context"
	"fmt"
	"time"

	"moodrisk/internal/gemini"
	"moodrisk/internal/models"
	"moodrisk/internal/openaicompat"

	"go.uber.org/zap"
)

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOpenAI     ProviderType = "openai" // any chat-completions compatible endpoint, base_url required
)

// ProviderConfig holds configuration for a single provider instance
type ProviderConfig struct {
	Type       ProviderType  `yaml:"type"`
	APIKey     string        `yaml:"api_key"`
	ModelName  string        `yaml:"model_name"`
	BaseURL    string        `yaml:"base_url"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout"`
	// Rate limiting per provider
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Provider is anything that can turn a journal entry into an AI analysis
type Provider interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AIAnalysis, error)
	Close() error
	GetModelInfo() map[string]interface{}
}

// NewProvider builds the client for one provider config
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:     cfg.APIKey,
			ModelName:  cfg.ModelName,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}, logger)
	case ProviderGroq:
		return openaicompat.NewClient(compatConfig(cfg, openaicompat.GroqBaseURL, "llama-3.3-70b-versatile"), logger)
	case ProviderOpenRouter:
		return openaicompat.NewClient(compatConfig(cfg, openaicompat.OpenRouterBaseURL, "meta-llama/llama-3.3-70b-instruct:free"), logger)
	case ProviderOpenAI:
		return openaicompat.NewClient(compatConfig(cfg, "", ""), logger)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

func compatConfig(cfg ProviderConfig, baseURL, model string) openaicompat.Config {
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if cfg.ModelName != "" {
		model = cfg.ModelName
	}
	return openaicompat.Config{
		Name:       string(cfg.Type),
		BaseURL:    baseURL,
		APIKey:     cfg.APIKey,
		ModelName:  model,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Timeout:    cfg.Timeout,
	}
}
