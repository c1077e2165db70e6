package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/asyncquery/query"
)

// CacheCheckerConfig configures CacheChecker.
type CacheCheckerConfig struct {
	// Name is returned by Name. Default: "cache"
	Name string

	// WarningRatio is the share of error entries that reports degraded.
	// Value should be between 0 and 1. Default: 0.25
	WarningRatio float64

	// CriticalRatio is the share of error entries that reports unhealthy.
	// Value should be between 0 and 1. Default: 0.5
	CriticalRatio float64

	// MinEntries is the entry count below which ratios are not judged.
	// Default: 1
	MinEntries int
}

// CacheChecker reports on the entries held by a query.Client. A cache full
// of error entries usually means the backends behind its fetchers are down.
type CacheChecker struct {
	client *query.Client
	config CacheCheckerConfig
}

// NewCacheChecker creates a checker over client.
func NewCacheChecker(client *query.Client, config CacheCheckerConfig) *CacheChecker {
	if config.Name == "" {
		config.Name = "cache"
	}
	if config.WarningRatio <= 0 || config.WarningRatio > 1 {
		config.WarningRatio = 0.25
	}
	if config.CriticalRatio <= 0 || config.CriticalRatio > 1 {
		config.CriticalRatio = 0.5
	}
	if config.CriticalRatio < config.WarningRatio {
		config.CriticalRatio = config.WarningRatio
	}
	if config.MinEntries <= 0 {
		config.MinEntries = 1
	}
	return &CacheChecker{client: client, config: config}
}

// Name returns the configured checker name.
func (c *CacheChecker) Name() string {
	return c.config.Name
}

// Check inspects the cache's error ratio.
func (c *CacheChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	stats := c.client.Stats()
	details := map[string]any{
		"entries": stats.Entries,
		"idle":    stats.Idle,
		"loading": stats.Loading,
		"success": stats.Success,
		"error":   stats.Error,
	}

	if stats.Entries < c.config.MinEntries {
		return Healthy(fmt.Sprintf("%d entries cached", stats.Entries)).WithDetails(details)
	}

	ratio := float64(stats.Error) / float64(stats.Entries)
	details["error_percent"] = ratio * 100

	switch {
	case ratio >= c.config.CriticalRatio:
		return Unhealthy(fmt.Sprintf("%d of %d entries failed", stats.Error, stats.Entries), ErrErrorRatio).
			WithDetails(details)
	case ratio >= c.config.WarningRatio:
		return Degraded(fmt.Sprintf("%d of %d entries failed", stats.Error, stats.Entries)).
			WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("%d entries cached", stats.Entries)).WithDetails(details)
	}
}
