package llm

import (
	"context"
	"fmt"
	"math"
	"time"

	"moodrisk/internal/models"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// defaultRequestsPerMinute is conservative enough for free tiers
const defaultRequestsPerMinute = 8

// RateLimitedProvider wraps a provider with a token bucket
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewRateLimitedProvider wraps a provider with rate limiting
func NewRateLimitedProvider(provider Provider, requestsPerMinute int, logger *zap.Logger) *RateLimitedProvider {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
		logger:   logger,
	}
}

// Analyze waits for a token, then delegates
func (p *RateLimitedProvider) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AIAnalysis, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	return p.provider.Analyze(ctx, req)
}

func (p *RateLimitedProvider) Close() error {
	return p.provider.Close()
}

func (p *RateLimitedProvider) GetModelInfo() map[string]interface{} {
	info := p.provider.GetModelInfo()
	info["rate_limit_per_minute"] = int(math.Round(float64(p.limiter.Limit()) * 60))
	return info
}
