package feedback

import (
	"sort"

	"github.com/qepting91/linkfinder/internal/storage"
)

// entry is one key/value pair of a persisted map.
type entry[V any] struct {
	Key   string `json:"key"`
	Value V      `json:"value"`
}

type snapshot struct {
	UserInteractions  []entry[[]Interaction] `json:"userInteractions"`
	QueryPatterns     []entry[Pattern]       `json:"queryPatterns"`
	ClickThroughRates []entry[CTR]           `json:"clickThroughRates"`
	QualityFeedback   []entry[Quality]       `json:"qualityFeedback"`
	LastUpdated       int64                  `json:"lastUpdated"`
}

func entries[V any, P any](m map[string]P, copyFn func(P) V) []entry[V] {
	out := make([]entry[V], 0, len(m))
	for k, v := range m {
		out = append(out, entry[V]{Key: k, Value: copyFn(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// snapshotLocked deep-copies the maps; the caller holds s.mu.
func (s *Store) snapshotLocked() *snapshot {
	return &snapshot{
		UserInteractions: entries(s.interactions, func(v []Interaction) []Interaction {
			return append([]Interaction(nil), v...)
		}),
		QueryPatterns: entries(s.patterns, func(p *Pattern) Pattern {
			c := *p
			c.Keywords = append([]string(nil), p.Keywords...)
			return c
		}),
		ClickThroughRates: entries(s.ctr, func(c *CTR) CTR { return *c }),
		QualityFeedback: entries(s.quality, func(q *Quality) Quality {
			c := *q
			c.Ratings = append([]float64(nil), q.Ratings...)
			return c
		}),
		LastUpdated: s.now().UnixMilli(),
	}
}

func (s *Store) write(snap *snapshot) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return storage.WriteJSONAtomic(s.path, snap)
}

// Save persists all four maps. It is a no-op for in-memory stores.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return s.write(snap)
}

// Load replaces the in-memory state with the snapshot at the store's path.
// On error the current state is kept.
func (s *Store) Load() error {
	var snap snapshot
	if err := storage.ReadJSON(s.path, &snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	for _, e := range snap.UserInteractions {
		s.interactions[e.Key] = e.Value
		s.total += len(e.Value)
	}
	for _, e := range snap.QueryPatterns {
		p := e.Value
		s.patterns[e.Key] = &p
	}
	for _, e := range snap.ClickThroughRates {
		c := e.Value
		s.ctr[e.Key] = &c
	}
	for _, e := range snap.QualityFeedback {
		q := e.Value
		s.quality[e.Key] = &q
	}
	return nil
}

// Close flushes the store.
func (s *Store) Close() error {
	return s.Save()
}
