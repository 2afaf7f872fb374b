package vision

import (
	"context"
	"encoding/json"
	"time"

	"sjsage522/consoledealworker/logger"
	"sjsage522/consoledealworker/services/cache"
)

// Cached remembers definite judgments per image reference so the same photo
// is not sent to the paid service twice. Indeterminate judgments are never
// cached.
type Cached struct {
	inner Classifier
	cache cache.CacheService
	ttl   time.Duration
}

// NewCached wraps inner with a judgment cache
func NewCached(inner Classifier, c cache.CacheService, ttl time.Duration) *Cached {
	return &Cached{inner: inner, cache: c, ttl: ttl}
}

// Classify serves a cached judgment or asks the inner classifier
func (c *Cached) Classify(ctx context.Context, imageRef string) (Judgment, error) {
	key := "judgment:" + imageRef
	if data, err := c.cache.Get(key); err == nil {
		var j Judgment
		if err := json.Unmarshal(data, &j); err == nil {
			return j, nil
		}
	}

	j, err := c.inner.Classify(ctx, imageRef)
	if err != nil || j.Verdict == VerdictIndeterminate {
		return j, err
	}

	if data, mErr := json.Marshal(j); mErr == nil {
		if sErr := c.cache.Set(key, data, c.ttl); sErr != nil {
			logger.ForCache().Debug().Err(sErr).Msg("Failed to cache image judgment")
		}
	}
	return j, nil
}
