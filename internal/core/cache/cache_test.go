package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/models"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string]models.CacheEntry
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]models.CacheEntry{}}
}

func (m *memStore) GetCacheEntry(_ context.Context, key string, now time.Time) (*models.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !e.ExpiresAt.After(now) {
		return nil, nil
	}
	return &e, nil
}

func (m *memStore) UpsertCacheEntry(_ context.Context, key string, value json.RawMessage, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = models.CacheEntry{Key: key, Value: value, ExpiresAt: expiresAt}
	return nil
}

func (m *memStore) DeleteCacheEntry(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memStore) DeleteExpiredCacheEntries(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, e := range m.entries {
		if !e.ExpiresAt.After(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(store *memStore) (*ContentCache, *clock) {
	clk := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewContentCache(store, logger.Nop())
	c.now = clk.now
	return c, clk
}

func TestKeyIsStableAndOrderIndependent(t *testing.T) {
	a := Key(KindSummary, "lec-1", map[string]string{"lang": "en", "style": "concise"})
	b := Key(KindSummary, "lec-1", map[string]string{"style": "concise", "lang": "en"})
	if a != b {
		t.Fatalf("keys differ for same options: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}

	others := []string{
		Key(KindQuiz, "lec-1", map[string]string{"lang": "en", "style": "concise"}),
		Key(KindSummary, "lec-2", map[string]string{"lang": "en", "style": "concise"}),
		Key(KindSummary, "lec-1", map[string]string{"lang": "fr", "style": "concise"}),
		Key(KindSummary, "lec-1", nil),
	}
	for i, o := range others {
		if o == a {
			t.Errorf("variant %d collides with base key", i)
		}
	}
}

func TestGetOrComputeMemoizes(t *testing.T) {
	c, _ := newTestCache(newMemStore())
	ctx := context.Background()
	key := Key(KindSummary, "lec", nil)

	calls := 0
	fn := func(context.Context) (string, error) {
		calls++
		return "summary text", nil
	}

	for i := 0; i < 3; i++ {
		v, err := GetOrCompute(ctx, c, key, time.Hour, fn)
		if err != nil || v != "summary text" {
			t.Fatalf("GetOrCompute() = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestGetOrComputeExpiry(t *testing.T) {
	c, clk := newTestCache(newMemStore())
	ctx := context.Background()
	key := Key(KindQuiz, "lec", nil)

	calls := 0
	fn := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	if v, _ := GetOrCompute(ctx, c, key, time.Minute, fn); v != 1 {
		t.Fatalf("first value = %d, want 1", v)
	}
	clk.t = clk.t.Add(30 * time.Second)
	if v, _ := GetOrCompute(ctx, c, key, time.Minute, fn); v != 1 {
		t.Fatalf("value before expiry = %d, want 1", v)
	}
	clk.t = clk.t.Add(time.Minute)
	if v, _ := GetOrCompute(ctx, c, key, time.Minute, fn); v != 2 {
		t.Fatalf("value after expiry = %d, want 2", v)
	}
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	store := newMemStore()
	c, _ := newTestCache(store)
	ctx := context.Background()
	key := Key(KindTranslation, "lec", map[string]string{"lang": "de"})
	boom := errors.New("boom")

	_, err := GetOrCompute(ctx, c, key, time.Hour, func(context.Context) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(store.entries) != 0 {
		t.Fatalf("error result was cached: %+v", store.entries)
	}

	v, err := GetOrCompute(ctx, c, key, time.Hour, func(context.Context) (string, error) {
		return "hallo", nil
	})
	if err != nil || v != "hallo" {
		t.Fatalf("retry after error = %q, %v", v, err)
	}
}

func TestGetOrComputeStructValues(t *testing.T) {
	c, _ := newTestCache(newMemStore())
	ctx := context.Background()
	key := Key(KindQuiz, "lec", nil)
	doc := models.QuizDocument{Questions: []models.QuizQuestion{
		{ID: 1, Question: "q?", Options: []string{"a", "b", "c", "d"}, CorrectAnswerIndex: 2},
	}}

	_, _ = GetOrCompute(ctx, c, key, time.Hour, func(context.Context) (models.QuizDocument, error) { return doc, nil })
	got, err := GetOrCompute(ctx, c, key, time.Hour, func(context.Context) (models.QuizDocument, error) {
		t.Fatal("fn called on cache hit")
		return models.QuizDocument{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Questions) != 1 || got.Questions[0].CorrectAnswerIndex != 2 {
		t.Errorf("decoded quiz = %+v", got)
	}
}

func TestInvalidateAndSweep(t *testing.T) {
	store := newMemStore()
	c, clk := newTestCache(store)
	ctx := context.Background()

	keep := Key(KindSummary, "a", nil)
	drop := Key(KindSummary, "b", nil)
	gone := Key(KindSummary, "c", nil)

	_, _ = GetOrCompute(ctx, c, keep, 2*time.Hour, func(context.Context) (string, error) { return "x", nil })
	_, _ = GetOrCompute(ctx, c, drop, time.Minute, func(context.Context) (string, error) { return "y", nil })
	_, _ = GetOrCompute(ctx, c, gone, 2*time.Hour, func(context.Context) (string, error) { return "z", nil })

	if err := c.Invalidate(ctx, gone); err != nil {
		t.Fatal(err)
	}
	clk.t = clk.t.Add(time.Hour)

	n, err := c.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("swept %d entries, want 1", n)
	}
	if _, ok := store.entries[keep]; !ok || len(store.entries) != 1 {
		t.Errorf("remaining entries = %v", store.entries)
	}
}

func TestTypedKeys(t *testing.T) {
	if SummaryKey("lec-1", "en", "concise") == SummaryKey("lec-1", "en", "detailed") {
		t.Error("summary keys must differ by style")
	}
	if QuizKey("lec-1", "en", "medium", 10) == QuizKey("lec-1", "en", "medium", 5) {
		t.Error("quiz keys must differ by question count")
	}
	if got, want := QuizKey("lec-1", "en", "hard", 3),
		Key(KindQuiz, "lec-1", map[string]string{"n": "3", "difficulty": "hard", "lang": "en"}); got != want {
		t.Errorf("QuizKey = %s, want %s", got, want)
	}
	if TranslationKey("lec-1", "en", "concise", "sum-1", "fr") == SummaryKey("lec-1", "en", "concise") {
		t.Error("translation key collides with summary key")
	}
	if TranslationKey("lec-1", "en", "concise", "sum-1", "fr") == TranslationKey("lec-1", "en", "concise", "sum-2", "fr") {
		t.Error("translation keys must differ by source summary")
	}
}
