package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qepting91/linkfinder/internal/config"
	"github.com/qepting91/linkfinder/internal/domain"
	"github.com/qepting91/linkfinder/internal/feedback"
	"github.com/qepting91/linkfinder/internal/pipeline"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.pipeline.Status())
}

func (s *Server) handleSearch(c *gin.Context) {
	resp, err := s.pipeline.Search(c.Request.Context(), c.Query("q"), searchOptions(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// bestResponse is the search response without the full result list.
type bestResponse struct {
	RequestID string                `json:"request_id"`
	Query     string                `json:"query"`
	Sources   []string              `json:"subreddits"`
	BestLimit int                   `json:"best_limit"`
	Threshold float64               `json:"quality_threshold"`
	Best      []domain.RankedResult `json:"best"`
	Warning   string                `json:"warning,omitempty"`
	Source    string                `json:"source"`
}

func (s *Server) handleBest(c *gin.Context) {
	resp, err := s.pipeline.Search(c.Request.Context(), c.Query("q"), searchOptions(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bestResponse{
		RequestID: resp.RequestID,
		Query:     resp.Query,
		Sources:   resp.Sources,
		BestLimit: resp.BestLimit,
		Threshold: resp.Threshold,
		Best:      resp.Best,
		Warning:   resp.Warning,
		Source:    resp.Source,
	})
}

func (s *Server) handleExtract(c *gin.Context) {
	ref := pipeline.Ref{
		Permalink: c.Query("permalink"),
		ID:        c.Query("id"),
		URL:       c.Query("url"),
	}
	resp, err := s.pipeline.Extract(c.Request.Context(), ref, c.Query("q"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.feedback.Stats())
}

type interactionRequest struct {
	SessionID string         `json:"sessionId"`
	Query     string         `json:"query"`
	ResultID  string         `json:"resultId"`
	Action    string         `json:"action"`
	Metadata  map[string]any `json:"metadata"`
}

func (s *Server) handleInteraction(c *gin.Context) {
	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload", "details": err.Error()})
		return
	}
	var meta map[string]string
	if len(req.Metadata) > 0 {
		meta = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			meta[k] = fmt.Sprint(v)
		}
	}
	err := s.feedback.RecordInteraction(req.SessionID, req.Query, req.ResultID, feedback.Action(req.Action), meta)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type feedbackRequest struct {
	Type       string   `json:"type"`
	Identifier string   `json:"identifier"`
	Rating     *float64 `json:"rating"`
}

func (s *Server) handleFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload", "details": err.Error()})
		return
	}
	if req.Rating == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating is required"})
		return
	}
	if err := s.feedback.RecordQualityFeedback(req.Type, req.Identifier, *req.Rating); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// fail maps pipeline errors to status codes. Upstream failures are reported
// as 4xx so clients can tell them from faults in this service.
func (s *Server) fail(c *gin.Context, err error) {
	var ve *domain.ValidationError
	var ue *domain.UpstreamError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.Is(err, domain.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &ue) && ue.RateLimited():
		c.JSON(http.StatusTooManyRequests, gin.H{"error": pipeline.WarnRateLimited, "details": err.Error()})
	case errors.As(err, &ue):
		c.JSON(http.StatusFailedDependency, gin.H{"error": pipeline.WarnUnavailable, "details": err.Error()})
	default:
		s.logger.Error("request failed", "path", c.Request.URL.Path, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func searchOptions(c *gin.Context) pipeline.Options {
	o := pipeline.Options{
		Sources:   config.SplitList(c.Query("subreddits")),
		Sort:      c.Query("sort"),
		Time:      c.Query("t"),
		Limit:     intQuery(c, "limit"),
		Type:      c.Query("type"),
		MinScore:  intQuery(c, "min_score"),
		BestLimit: intQuery(c, "best_limit"),
	}
	if v := c.Query("quality_threshold"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) {
			o.Threshold = &f
		}
	}
	return o
}

// intQuery returns 0, which means "default", for missing or malformed values.
func intQuery(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}
