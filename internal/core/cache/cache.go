package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/logger"
)

// Cache kinds.
const (
	KindSummary     = "summary"
	KindQuiz        = "quiz"
	KindTranslation = "translation"
)

// ContentCache memoizes generated content in the api_cache table.
type ContentCache struct {
	store core.CacheStore
	now   func() time.Time
	log   *logger.Logger
}

func NewContentCache(store core.CacheStore, log *logger.Logger) *ContentCache {
	return &ContentCache{
		store: store,
		now:   time.Now,
		log:   log.With("service", "ContentCache"),
	}
}

// Key derives a stable cache key from the kind, the lecture and its options.
// Options are serialized sorted by name so map order never changes the key.
func Key(kind, lectureID string, opts map[string]string) string {
	names := make([]string, 0, len(opts))
	for k := range opts {
		names = append(names, k)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, k := range names {
		pairs = append(pairs, k+"="+opts[k])
	}

	sum := sha256.Sum256([]byte(kind + "|" + lectureID + "|" + strings.Join(pairs, "&")))
	return hex.EncodeToString(sum[:])
}

// SummaryKey is the cache key of a lecture summary.
func SummaryKey(lectureID, lang, style string) string {
	return Key(KindSummary, lectureID, map[string]string{"lang": lang, "style": style})
}

// QuizKey is the cache key of a lecture quiz.
func QuizKey(lectureID, lang, difficulty string, n int) string {
	return Key(KindQuiz, lectureID, map[string]string{"lang": lang, "difficulty": difficulty, "n": strconv.Itoa(n)})
}

// TranslationKey is the cache key of a translated summary. The source
// summary's id is part of the key, so a regenerated summary never serves a
// translation of its predecessor.
func TranslationKey(lectureID, lang, style, summaryID, targetLang string) string {
	return Key(KindTranslation, lectureID, map[string]string{
		"lang": lang, "style": style, "summary": summaryID, "target": targetLang,
	})
}

// GetOrCompute returns the cached value for key when present and unexpired,
// otherwise it runs fn, stores the result for ttl and returns it. Errors from
// fn are returned as-is and nothing is cached. Store failures are logged and
// degrade to computing without the cache.
func GetOrCompute[T any](ctx context.Context, c *ContentCache, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	entry, err := c.store.GetCacheEntry(ctx, key, c.now())
	if err != nil {
		c.log.Warn("cache lookup failed", "key", key, "error", err)
	} else if entry != nil {
		var v T
		if err := json.Unmarshal(entry.Value, &v); err == nil {
			c.log.Debug("cache hit", "key", key)
			return v, nil
		}
		c.log.Warn("discarding undecodable cache entry", "key", key)
	}

	v, err := fn(ctx)
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return v, fmt.Errorf("encoding cache value: %w", err)
	}
	if err := c.store.UpsertCacheEntry(ctx, key, raw, c.now().Add(ttl)); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err)
	}
	return v, nil
}

// Invalidate drops the entry for key.
func (c *ContentCache) Invalidate(ctx context.Context, key string) error {
	return c.store.DeleteCacheEntry(ctx, key)
}

// Sweep deletes every expired entry and returns how many were removed.
func (c *ContentCache) Sweep(ctx context.Context) (int64, error) {
	n, err := c.store.DeleteExpiredCacheEntries(ctx, c.now())
	if err != nil {
		return 0, fmt.Errorf("sweeping cache: %w", err)
	}
	return n, nil
}

// Run sweeps on every tick until ctx is cancelled.
func (c *ContentCache) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := c.Sweep(ctx)
			if err != nil {
				c.log.Error("cache sweep failed", "error", err)
				continue
			}
			if n > 0 {
				c.log.Info("expired cache entries removed", "count", n)
			}
		}
	}
}
