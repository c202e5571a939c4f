package ingest_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/ingest"
)

func TestReadTargets(t *testing.T) {
	in := "\uFEFFsource,min_score\nr/FashionReps,10\nx!,5\nfashionreps,3\n1688Reps\nQualityReps,abc\n"
	got, err := ingest.ReadTargets(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []domain.Target{
		{Source: "FashionReps", MinScore: 10},
		{Source: "1688Reps"},
		{Source: "QualityReps"},
	}, got)
	assert.Equal(t, []string{"FashionReps", "1688Reps", "QualityReps"}, ingest.Names(got))
}

func TestLoadKeywords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.csv")
	require.NoError(t, os.WriteFile(path, []byte("term\n Stone Island \n\nCP Company,extra\n"), 0o644))

	got, err := ingest.LoadKeywords(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"stone island", "cp company"}, got)

	_, err = ingest.LoadKeywords(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
