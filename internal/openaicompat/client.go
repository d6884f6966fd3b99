// Package openaicompat talks to chat-completions APIs that follow the OpenAI wire format,
// such as Groq and OpenRouter.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"moodrisk/internal/gemini"
	"moodrisk/internal/models"

	"go.uber.org/zap"
)

// Well-known endpoints
const (
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Client represents a chat-completions API client
type Client struct {
	name       string
	apiKey     string
	baseURL    string
	modelName  string
	httpClient *http.Client
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

// Config holds configuration for one endpoint
type Config struct {
	Name       string // provider label used in logs and results
	BaseURL    string
	APIKey     string
	ModelName  string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewClient creates a new chat-completions client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Name == "" {
		cfg.Name = "openai-compatible"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Name)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s base URL is required", cfg.Name)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%s model name is required", cfg.Name)
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger.Info("Chat completions client initialized",
		zap.String("provider", cfg.Name),
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		name:       cfg.Name,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		modelName:  cfg.ModelName,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Close is a no-op, the HTTP client holds no resources worth releasing
func (c *Client) Close() error {
	return nil
}

// Analyze asks the model for a structured analysis of one entry
func (c *Client) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AIAnalysis, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: gemini.SystemInstruction},
			{Role: "user", Content: gemini.BuildPrompt(req)},
		},
		Temperature:    0.3,
		MaxTokens:      1024,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying chat completions request",
				zap.String("provider", c.name),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%s request cancelled: %w", c.name, ctx.Err())
			}
		}

		content, err := c.complete(ctx, body)
		if err != nil {
			lastErr = err
			c.logger.Error("Chat completions request failed",
				zap.String("provider", c.name),
				zap.Error(err),
				zap.Int("attempt", attempt+1))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		analysis, err := gemini.ParseAnalysis(content)
		if err != nil {
			lastErr = fmt.Errorf("failed to parse %s response: %w", c.name, err)
			c.logger.Error("Failed to parse JSON response",
				zap.String("provider", c.name),
				zap.Error(err),
				zap.Int("response_length", len(content)),
				zap.Int("attempt", attempt+1))
			continue
		}

		analysis.Provider = c.name
		analysis.ModelVersion = c.modelName

		c.logger.Debug("Analysis received",
			zap.String("provider", c.name),
			zap.Int("risk_score", analysis.Score()),
			zap.Int("attempt", attempt+1))

		return analysis, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

// complete performs one round-trip and returns the first choice's content
func (c *Client) complete(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", c.name, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s API returned status %d: %s", c.name, resp.StatusCode, truncate(data, 512))
	}

	var chat chatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if chat.Error != nil {
		return "", fmt.Errorf("%s API error: %s", c.name, chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("empty response from %s", c.name)
	}

	return chat.Choices[0].Message.Content, nil
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    c.name,
		"model":       c.modelName,
		"max_retries": c.maxRetries,
		"retry_delay": c.retryDelay.String(),
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
