package feedback_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/feedback"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newStore(t *testing.T, path string) (*feedback.Store, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return feedback.New(feedback.Options{Path: path, Now: c.Now}), c
}

func TestColdStartIsNeutral(t *testing.T) {
	s, _ := newStore(t, "")
	assert.Equal(t, 1.0, s.QueryBoost("vintage denim"))
	assert.Equal(t, 1.0, s.CTRBoost("vintage denim", "abc"))
	assert.Equal(t, 1.0, s.QualityBoost("FashionReps", "someone"))
}

func TestColdStartPatterns(t *testing.T) {
	s, _ := newStore(t, "")
	// jordan is seeded with boost 1.2 and success 0.7.
	assert.InDelta(t, 1.0+0.2*0.7, s.QueryBoost("jordan"), 1e-9)
	assert.Equal(t, 5, s.Stats().UniqueQueries)
}

func TestCTRBoost_MonotoneAndCapped(t *testing.T) {
	s, _ := newStore(t, "")
	prev := s.CTRBoost("jordan 4", "p1")
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordInteraction("sess", "jordan 4", "p1", feedback.ActionClick, nil))
		cur := s.CTRBoost("jordan 4", "p1")
		assert.GreaterOrEqual(t, cur, prev)
		assert.LessOrEqual(t, cur, 2.0)
		prev = cur
	}
	assert.InDelta(t, 1.5, prev, 1e-9)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.RecordInteraction("sess", "jordan 4", "p2", feedback.ActionBookmark, nil))
		require.NoError(t, s.RecordInteraction("sess", "jordan 4", "p2", feedback.ActionExtract, nil))
	}
	assert.LessOrEqual(t, s.CTRBoost("jordan 4", "p2"), 2.0)
}

func TestCTRBoost_ImpressionsDilute(t *testing.T) {
	s, _ := newStore(t, "")
	require.NoError(t, s.RecordInteraction("a", "dunk", "p1", feedback.ActionClick, nil))
	require.NoError(t, s.RecordInteraction("a", "dunk", "p1", feedback.ActionImpression, nil))
	assert.InDelta(t, 1.25, s.CTRBoost("  DUNK ", "p1"), 1e-9)
}

func TestPositiveActionsRaisePatterns(t *testing.T) {
	s, _ := newStore(t, "")
	require.NoError(t, s.RecordInteraction("a", "yeezy slide", "p1", feedback.ActionModalOpen, nil))
	before := s.QueryBoost("slide")
	assert.Equal(t, 1.0, before)

	for i := 0; i < 100; i++ {
		require.NoError(t, s.RecordInteraction("a", "slide", "p1", feedback.ActionClick, map[string]string{"subreddit": "FashionReps"}))
	}
	after := s.QueryBoost("slide")
	assert.Greater(t, after, before)
	assert.LessOrEqual(t, after, 2.0)

	top := s.TopTokens(1)
	require.Len(t, top, 1)
	assert.Equal(t, "slide", top[0].Query)
	assert.InDelta(t, 2.0, top[0].Boost, 1e-9)
	assert.InDelta(t, 1.0, top[0].SuccessRate, 1e-9)
}

func TestRecordInteraction_Validation(t *testing.T) {
	s, _ := newStore(t, "")
	err := s.RecordInteraction("", "q", "r", feedback.ActionClick, nil)
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestQualityFeedback(t *testing.T) {
	s, _ := newStore(t, "")

	var verr *domain.ValidationError
	assert.True(t, errors.As(s.RecordQualityFeedback("subreddit", "x", 6), &verr))
	assert.True(t, errors.As(s.RecordQualityFeedback("subreddit", "x", -1), &verr))

	require.NoError(t, s.RecordQualityFeedback("subreddit", "FashionReps", 5))
	assert.InDelta(t, 1.5, s.QualityBoost("FashionReps", "nobody"), 1e-9)

	require.NoError(t, s.RecordQualityFeedback("author", "seller1", 4))
	assert.InDelta(t, 1.2, s.QualityBoost("other", "seller1"), 1e-9)
}

func TestQualityFeedback_RecentRatingsWeighMore(t *testing.T) {
	s, _ := newStore(t, "")
	require.NoError(t, s.RecordQualityFeedback("author", "a", 0))
	require.NoError(t, s.RecordQualityFeedback("author", "a", 4))
	// (0*0.95 + 4*1) / 1.95
	assert.InDelta(t, 1+0.05*4/1.95, s.QualityBoost("", "a"), 1e-9)
}

func TestQualityFeedback_KeepsLastFifty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ml.json")
	s, _ := newStore(t, path)
	for i := 0; i < 60; i++ {
		require.NoError(t, s.RecordQualityFeedback("author", "a", 0))
	}
	for i := 0; i < 50; i++ {
		require.NoError(t, s.RecordQualityFeedback("author", "a", 5))
	}
	// Every zero has been pushed out of the window.
	assert.InDelta(t, 1.25, s.QualityBoost("", "a"), 1e-9)
}

func TestCleanupEvictsOldSessions(t *testing.T) {
	s, c := newStore(t, "")
	require.NoError(t, s.RecordInteraction("old", "jordan", "p1", feedback.ActionClick, nil))
	c.t = c.t.Add(20 * 24 * time.Hour)
	require.NoError(t, s.RecordInteraction("recent", "jordan", "p1", feedback.ActionClick, nil))
	c.t = c.t.Add(15 * 24 * time.Hour)

	removed := s.Cleanup()
	assert.Equal(t, 1, removed)
	st := s.Stats()
	assert.Equal(t, 1, st.TotalInteractions)
	// Aggregates survive.
	assert.Greater(t, s.CTRBoost("jordan", "p1"), 1.0)
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ml.json")
	s, _ := newStore(t, path)
	require.NoError(t, s.RecordInteraction("a", "jordan 4", "p1", feedback.ActionClick, nil))
	require.NoError(t, s.RecordQualityFeedback("subreddit", "FashionReps", 4))
	require.NoError(t, s.Close())

	loaded := feedback.Open(feedback.Options{Path: path})
	assert.Equal(t, s.Stats(), loaded.Stats())
	assert.Equal(t, s.CTRBoost("jordan 4", "p1"), loaded.CTRBoost("jordan 4", "p1"))
	assert.Equal(t, s.QualityBoost("FashionReps", ""), loaded.QualityBoost("FashionReps", ""))
}

func TestFlushEveryN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ml.json")
	s := feedback.New(feedback.Options{Path: path, FlushEvery: 3})

	for i := 0; i < 2; i++ {
		require.NoError(t, s.RecordInteraction("a", "dunk", "p1", feedback.ActionClick, nil))
	}
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.RecordInteraction("a", "dunk", "p1", feedback.ActionClick, nil))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_MalformedFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ml.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	s := feedback.Open(feedback.Options{Path: path})
	assert.Equal(t, 5, s.Stats().UniqueQueries)
}

func TestStatsHealth(t *testing.T) {
	s, _ := newStore(t, "")
	st := s.Stats()
	assert.Equal(t, "learning", st.SystemHealth.Status)
	assert.InDelta(t, 0.7, st.SystemHealth.AvgSuccessRate, 1e-9)
	assert.Len(t, st.TopQueries, 5)

	for i := 0; i < 101; i++ {
		require.NoError(t, s.RecordInteraction("a", "x", "r", feedback.ActionImpression, nil))
	}
	st = s.Stats()
	assert.Equal(t, "healthy", st.SystemHealth.Status)
	assert.InDelta(t, 0.101, st.SystemHealth.Confidence, 1e-9)
}
