// Package coretest holds in-memory implementations of the core store
// interfaces shared by package tests.
package coretest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/models"
)

// Store is an in-memory core.UserStore, core.LectureStore and core.CacheStore
// for tests. It keeps the semantics the Postgres client documents: ids are
// assigned on insert, missing rows read as nil and Replace* is per language.
type Store struct {
	mu        sync.Mutex
	seq       int
	lectures  map[string]models.Lecture
	chunks    map[string][]models.TranscriptChunk
	summaries []models.Summary
	quizzes   []models.Quiz
	cache     map[string]models.CacheEntry
	users     map[string]models.User
}

var (
	_ core.UserStore    = (*Store)(nil)
	_ core.LectureStore = (*Store)(nil)
	_ core.CacheStore   = (*Store)(nil)
)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		lectures: map[string]models.Lecture{},
		chunks:   map[string][]models.TranscriptChunk{},
		cache:    map[string]models.CacheEntry{},
		users:    map[string]models.User{},
	}
}

func (m *Store) id(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *Store) CreateLecture(_ context.Context, l *models.Lecture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = m.id("lecture")
	}
	if _, dup := m.lectures[l.ID]; dup {
		return errors.New("duplicate lecture id")
	}
	m.lectures[l.ID] = *l
	return nil
}

func (m *Store) GetLectureByID(_ context.Context, id string) (*models.Lecture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lectures[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *Store) ListLecturesByUploader(_ context.Context, uploaderID string) ([]models.Lecture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Lecture
	for _, l := range m.lectures {
		if l.UploaderID == uploaderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Store) update(id string, fn func(*models.Lecture)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lectures[id]
	if !ok {
		return errors.New("lecture not found")
	}
	fn(&l)
	m.lectures[id] = l
	return nil
}

func (m *Store) UpdateLectureStatus(_ context.Context, id, status string) error {
	return m.update(id, func(l *models.Lecture) { l.ProcessingStatus = status })
}

func (m *Store) UpdateLectureAudio(_ context.Context, id, audioPath string, duration int) error {
	return m.update(id, func(l *models.Lecture) {
		l.AudioPath = audioPath
		l.DurationSeconds = duration
	})
}

func (m *Store) UpdateLectureSlides(_ context.Context, id string, content json.RawMessage) error {
	return m.update(id, func(l *models.Lecture) { l.SlideContent = content })
}

func (m *Store) DeleteLecture(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lectures, id)
	delete(m.chunks, id)
	return nil
}

func (m *Store) InsertTranscriptChunk(_ context.Context, ch *models.TranscriptChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch.StartTS >= ch.EndTS {
		return errors.New("start_ts must be before end_ts")
	}
	ch.ID = m.id("chunk")
	m.chunks[ch.LectureID] = append(m.chunks[ch.LectureID], *ch)
	return nil
}

func (m *Store) ReplaceTranscriptChunks(_ context.Context, lectureID string, chunks []models.TranscriptChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]models.TranscriptChunk, len(chunks))
	for i := range chunks {
		chunks[i].LectureID = lectureID
		chunks[i].ID = m.id("chunk")
		stored[i] = chunks[i]
	}
	m.chunks[lectureID] = stored
	return nil
}

func (m *Store) GetChunksByLecture(_ context.Context, lectureID string) ([]models.TranscriptChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TranscriptChunk(nil), m.chunks[lectureID]...), nil
}

func (m *Store) UpdateChunkEmbeddings(_ context.Context, chunks []models.TranscriptChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, upd := range chunks {
		for lec, list := range m.chunks {
			for i := range list {
				if list[i].ID == upd.ID {
					m.chunks[lec][i].Embedding = upd.Embedding
				}
			}
		}
	}
	return nil
}

func (m *Store) SearchTranscriptChunks(_ context.Context, lectureID string, _ []float32, limit int) ([]models.TranscriptChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.chunks[lectureID]
	if len(list) > limit {
		list = list[:limit]
	}
	return append([]models.TranscriptChunk(nil), list...), nil
}

func (m *Store) InsertSummary(_ context.Context, s *models.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id("summary")
	m.summaries = append(m.summaries, *s)
	return nil
}

func (m *Store) ReplaceSummary(_ context.Context, s *models.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.summaries[:0]
	for _, old := range m.summaries {
		if old.LectureID != s.LectureID || old.Lang != s.Lang {
			kept = append(kept, old)
		}
	}
	s.ID = m.id("summary")
	m.summaries = append(kept, *s)
	return nil
}

func (m *Store) GetLatestSummary(_ context.Context, lectureID, lang, style string) (*models.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.summaries) - 1; i >= 0; i-- {
		s := m.summaries[i]
		if s.LectureID == lectureID && s.Lang == lang && s.Style == style {
			return &s, nil
		}
	}
	return nil, nil
}

func (m *Store) InsertQuiz(_ context.Context, q *models.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = m.id("quiz")
	m.quizzes = append(m.quizzes, *q)
	return nil
}

func (m *Store) ReplaceQuiz(_ context.Context, q *models.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.quizzes[:0]
	for _, old := range m.quizzes {
		if old.LectureID != q.LectureID || old.Lang != q.Lang {
			kept = append(kept, old)
		}
	}
	q.ID = m.id("quiz")
	m.quizzes = append(kept, *q)
	return nil
}

func (m *Store) GetLatestQuiz(_ context.Context, lectureID, lang, difficulty string) (*models.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.quizzes) - 1; i >= 0; i-- {
		q := m.quizzes[i]
		if q.LectureID == lectureID && q.Lang == lang && q.Difficulty == difficulty {
			return &q, nil
		}
	}
	return nil, nil
}

func (m *Store) GetCacheEntry(_ context.Context, key string, now time.Time) (*models.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[key]
	if !ok || !e.ExpiresAt.After(now) {
		return nil, nil
	}
	return &e, nil
}

func (m *Store) UpsertCacheEntry(_ context.Context, key string, value json.RawMessage, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = models.CacheEntry{Key: key, Value: value, ExpiresAt: expiresAt}
	return nil
}

func (m *Store) DeleteCacheEntry(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

func (m *Store) DeleteExpiredCacheEntries(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, e := range m.cache {
		if !e.ExpiresAt.After(now) {
			delete(m.cache, k)
			n++
		}
	}
	return n, nil
}

// Status returns the stored processing status of a lecture.
func (m *Store) Status(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lectures[id].ProcessingStatus
}

// ChunkCount returns how many chunks a lecture has.
func (m *Store) ChunkCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks[id])
}

func (m *Store) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.users[u.Email]; dup {
		return errors.New("duplicate email")
	}
	if u.ID == "" {
		u.ID = m.id("user")
	}
	m.users[u.Email] = *u
	return nil
}

func (m *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// Summaries returns a copy of every stored summary in insert order.
func (m *Store) Summaries() []models.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Summary(nil), m.summaries...)
}

// Quizzes returns a copy of every stored quiz in insert order.
func (m *Store) Quizzes() []models.Quiz {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Quiz(nil), m.quizzes...)
}
