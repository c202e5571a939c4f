package storage

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/qepting91/linkfinder/internal/domain"
)

// WriterService appends conversions to an NDJSON log. It owns the file for
// its whole lifetime, so producers only ever touch the channel.
type WriterService struct {
	FilePath string
	Logger   *slog.Logger
}

func (w *WriterService) Start(wg *sync.WaitGroup, input <-chan domain.Conversion) {
	defer wg.Done()

	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.OpenFile(w.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.Error("conversion log unavailable", "path", w.FilePath, "err", err)
		for range input {
		}
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)

	for c := range input {
		// Write as NDJSON
		if err := enc.Encode(c); err != nil {
			logger.Warn("conversion log write failed", "err", err)
		}
	}
}
