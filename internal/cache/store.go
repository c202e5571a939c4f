// Package cache keeps the newest posts of every configured source so that
// searches can still answer when the upstream refuses live requests.
package cache

import (
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/storage"
)

// DefaultTTL bounds how old an entry may be and still answer a search.
const DefaultTTL = 24 * time.Hour

// Entry is the cached listing of one source. UpdatedAt is in milliseconds.
type Entry struct {
	Posts     []domain.Post `json:"posts"`
	UpdatedAt int64         `json:"updatedAt"`
}

type Options struct {
	// Path of the JSON snapshot. Empty keeps the cache in memory only.
	Path   string
	TTL    time.Duration
	Now    func() time.Time
	Logger *slog.Logger
}

// Store maps source keys to entries and mirrors them to one snapshot file.
type Store struct {
	path   string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]Entry

	writeMu sync.Mutex
}

func New(opts Options) *Store {
	s := &Store{
		path:    opts.Path,
		ttl:     opts.TTL,
		now:     opts.Now,
		logger:  opts.Logger,
		entries: make(map[string]Entry),
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// TTL is the freshness window used by Fresh.
func (s *Store) TTL() time.Duration { return s.ttl }

// Load replaces the in-memory entries with the snapshot. A missing or
// unreadable snapshot leaves the cache empty; the error is logged and
// returned.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	var snap map[string]Entry
	err := storage.ReadJSON(s.path, &snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry, len(snap))
	if err != nil {
		if errors.Is(err, storage.ErrNoSnapshot) {
			s.logger.Info("no cache snapshot yet", "path", s.path)
		} else {
			s.logger.Warn("cache snapshot unreadable, starting empty", "path", s.path, "err", err)
		}
		return err
	}
	for k, e := range snap {
		s.entries[k] = e
	}
	s.logger.Info("cache loaded", "path", s.path, "sources", len(s.entries))
	return nil
}

// Save writes every entry to the snapshot atomically.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	snap := maps.Clone(s.entries)
	s.mu.RUnlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return storage.WriteJSONAtomic(s.path, snap)
}

// Put replaces the whole entry of source.
func (s *Store) Put(source string, posts []domain.Post) {
	e := Entry{Posts: slices.Clone(posts), UpdatedAt: s.now().UnixMilli()}
	s.mu.Lock()
	s.entries[source] = e
	s.mu.Unlock()
}

func (s *Store) Get(source string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[source]
	return e, ok
}

// Fresh returns the entry of source only if it is younger than the TTL.
func (s *Store) Fresh(source string) (Entry, bool) {
	e, ok := s.Get(source)
	if !ok || s.age(e) > s.ttl {
		return Entry{}, false
	}
	return e, true
}

func (s *Store) age(e Entry) time.Duration {
	return s.now().Sub(time.UnixMilli(e.UpdatedAt))
}

// FindPost looks a post up by id in every entry.
func (s *Store) FindPost(id string) (domain.Post, bool) {
	if id == "" {
		return domain.Post{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range slices.Sorted(maps.Keys(s.entries)) {
		for _, p := range s.entries[k].Posts {
			if p.ID == id {
				return p, true
			}
		}
	}
	return domain.Post{}, false
}

// Counts returns the number of cached posts per source.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.entries))
	for k, e := range s.entries {
		out[k] = len(e.Posts)
	}
	return out
}

// SourceStatus describes one cached source for operators.
type SourceStatus struct {
	Source    string `json:"source"`
	Cached    bool   `json:"cached"`
	Posts     int    `json:"posts"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
	AgeMs     int64  `json:"ageMs,omitempty"`
	Fresh     bool   `json:"fresh"`
}

// Status reports every source in sources, in order.
func (s *Store) Status(sources []string) []SourceStatus {
	out := make([]SourceStatus, 0, len(sources))
	for _, src := range sources {
		st := SourceStatus{Source: src}
		if e, ok := s.Get(src); ok {
			age := s.age(e)
			st.Cached = true
			st.Posts = len(e.Posts)
			st.UpdatedAt = e.UpdatedAt
			st.AgeMs = age.Milliseconds()
			st.Fresh = age <= s.ttl
		}
		out = append(out, st)
	}
	return out
}
