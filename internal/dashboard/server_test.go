package dashboard_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qepting91/linkfinder/internal/cache"
	"github.com/qepting91/linkfinder/internal/dashboard"
	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/feedback"
)

func TestRender_ChartsCacheAndTokens(t *testing.T) {
	store := cache.New(cache.Options{})
	store.Put("FashionReps", []domain.Post{{ID: "a"}, {ID: "b"}})
	fb := feedback.New(feedback.Options{})
	require.NoError(t, fb.RecordInteraction("s1", "stussy hoodie", "a", feedback.ActionClick, nil))

	var buf bytes.Buffer
	require.NoError(t, dashboard.New(store, fb, nil).Render(&buf))

	html := buf.String()
	assert.Contains(t, html, "FashionReps")
	assert.Contains(t, html, "stussy")
	assert.Contains(t, html, "Cached Posts")
	assert.Contains(t, html, "Query Tokens")
}

func TestServeHTTP_EmptyStores(t *testing.T) {
	rec := httptest.NewRecorder()
	dashboard.New(nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "echarts")
}
