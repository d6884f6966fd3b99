package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"moodrisk/internal/models"

	"go.uber.org/zap"
)

// ErrAllProvidersFailed is returned when no provider produced an analysis
var ErrAllProvidersFailed = errors.New("all providers failed")

// MultiProviderConfig holds configuration for multiple providers
type MultiProviderConfig struct {
	Providers   []ProviderConfig
	MaxFailures int // consecutive failures before switching provider
	// RoundRobin advances to the next provider after every success, spreading load
	// across free-tier quotas. Otherwise a provider is kept until it fails.
	RoundRobin bool
}

// rotation is the mutable provider selection state of one client
type rotation struct {
	mu           sync.Mutex
	current      int
	failureCount []int
	size         int
	maxFailures  int
	roundRobin   bool
}

func (r *rotation) start() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// success resets the provider's failures and, in round-robin mode, moves past it
func (r *rotation) success(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failureCount[index] = 0
	if r.roundRobin && r.current == index {
		r.current = (index + 1) % r.size
	}
}

// failure records a failure and reports whether the client switched away from index
func (r *rotation) failure(index int, force bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failureCount[index]++
	if r.current != index {
		return false
	}
	if force || r.failureCount[index] >= r.maxFailures {
		r.current = (index + 1) % r.size
		return true
	}
	return false
}

func (r *rotation) snapshot() (int, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make([]int, len(r.failureCount))
	copy(counts, r.failureCount)
	return r.current, counts
}

// MultiProviderClient tries providers in turn until one answers
type MultiProviderClient struct {
	providers []Provider
	state     *rotation
	logger    *zap.Logger
}

// NewMultiProviderClient creates the providers described by cfg. Providers that fail to
// initialize are logged and skipped.
func NewMultiProviderClient(cfg MultiProviderConfig, logger *zap.Logger) (*MultiProviderClient, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	providers := make([]Provider, 0, len(cfg.Providers))
	for i, providerCfg := range cfg.Providers {
		provider, err := NewProvider(providerCfg, logger)
		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", string(providerCfg.Type)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		providers = append(providers, NewRateLimitedProvider(provider, providerCfg.RequestsPerMinute, logger))

		logger.Info("Provider initialized",
			zap.String("type", string(providerCfg.Type)),
			zap.String("model", providerCfg.ModelName),
			zap.Int("index", i))
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers could be initialized")
	}

	return NewMultiProviderClientWith(providers, cfg.MaxFailures, cfg.RoundRobin, logger), nil
}

// NewMultiProviderClientWith rotates over already constructed providers
func NewMultiProviderClientWith(providers []Provider, maxFailures int, roundRobin bool, logger *zap.Logger) *MultiProviderClient {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	return &MultiProviderClient{
		providers: providers,
		state: &rotation{
			failureCount: make([]int, len(providers)),
			size:         len(providers),
			maxFailures:  maxFailures,
			roundRobin:   roundRobin,
		},
		logger: logger,
	}
}

// Analyze tries the current provider first and falls back to the others in order
func (c *MultiProviderClient) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AIAnalysis, error) {
	start := c.state.start()

	var errs []error
	for attempt := 0; attempt < len(c.providers); attempt++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		index := (start + attempt) % len(c.providers)
		c.logger.Debug("Attempting analysis",
			zap.Int("provider_index", index),
			zap.Int("attempt", attempt+1))

		result, err := c.providers[index].Analyze(ctx, req)
		if err == nil {
			c.state.success(index)
			return result, nil
		}

		c.logger.Error("Provider failed",
			zap.Int("provider_index", index),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("provider %d: %w", index, err))

		if c.state.failure(index, isRateLimitError(err)) {
			c.logger.Info("Switching provider",
				zap.Int("from_index", index),
				zap.Int("total_providers", len(c.providers)))
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

// isRateLimitError checks if error is a rate limit error
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit")
}

// Close closes all providers
func (c *MultiProviderClient) Close() error {
	var errs []error
	for i, provider := range c.providers {
		if err := provider.Close(); err != nil {
			c.logger.Error("Failed to close provider",
				zap.Int("index", i),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetModelInfo returns information about the current provider
func (c *MultiProviderClient) GetModelInfo() map[string]interface{} {
	current, counts := c.state.snapshot()
	info := c.providers[current].GetModelInfo()
	info["is_current"] = true
	info["provider_index"] = current
	info["total_providers"] = len(c.providers)
	info["failure_count"] = counts[current]
	return info
}

// GetProvidersInfo returns information about all providers
func (c *MultiProviderClient) GetProvidersInfo() []map[string]interface{} {
	current, counts := c.state.snapshot()

	info := make([]map[string]interface{}, len(c.providers))
	for i, provider := range c.providers {
		providerInfo := provider.GetModelInfo()
		providerInfo["is_current"] = i == current
		providerInfo["failure_count"] = counts[i]
		info[i] = providerInfo
	}
	return info
}
