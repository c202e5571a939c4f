package storage_test

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/storage"
)

func TestWriteReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snap.json")
	in := map[string]int{"a": 1, "b": 2}
	require.NoError(t, storage.WriteJSONAtomic(path, in))

	var out map[string]int
	require.NoError(t, storage.ReadJSON(path, &out))
	assert.Equal(t, in, out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not linger")
}

func TestReadJSON_Missing(t *testing.T) {
	var out map[string]int
	err := storage.ReadJSON(filepath.Join(t.TempDir(), "none.json"), &out)
	var cerr *domain.CacheIOError
	require.True(t, errors.As(err, &cerr))
	assert.ErrorIs(t, err, storage.ErrNoSnapshot)
}

func TestReadJSON_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var out map[string]int
	err := storage.ReadJSON(path, &out)
	var cerr *domain.CacheIOError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "decode", cerr.Op)
}

func TestWriterService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversions.ndjson")
	w := &storage.WriterService{FilePath: path}

	ch := make(chan domain.Conversion)
	var wg sync.WaitGroup
	wg.Add(1)
	go w.Start(&wg, ch)

	ch <- domain.Conversion{Origin: "search", PostID: "p1", Platform: "weidian", ItemID: "1"}
	ch <- domain.Conversion{Origin: "extract", PostID: "p2", Platform: "taobao", ItemID: "2"}
	close(ch)
	wg.Wait()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []domain.Conversion
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var c domain.Conversion
		require.NoError(t, json.Unmarshal(sc.Bytes(), &c))
		got = append(got, c)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "weidian", got[0].Platform)
	assert.Equal(t, "p2", got[1].PostID)
}
