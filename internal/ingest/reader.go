// Package ingest reads the operator-maintained CSV inputs: the sources to
// watch and extra vocabulary terms.
package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/qepting91/linkfinder/internal/domain"
)

// Regex for valid subreddit names
var sourceNameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,21}$`)

// LoadTargets reads "source,min_score" rows after a header line. Invalid
// names are skipped; a missing or malformed score means 0.
func LoadTargets(path string) ([]domain.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTargets(f)
}

func ReadTargets(in io.Reader) ([]domain.Target, error) {
	// Wrap in BOM stripper
	r := csv.NewReader(stripBOM(in))
	r.FieldsPerRecord = -1

	var targets []domain.Target
	seen := make(map[string]bool)
	line := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			slog.Warn("skipping malformed targets row", "line", line, "err", err)
			continue
		}
		if line == 1 || len(record) == 0 {
			continue // Skip header
		}

		// Validation (Fail-Soft)
		src := strings.TrimPrefix(strings.TrimSpace(record[0]), "r/")
		if !sourceNameRegex.MatchString(src) || seen[strings.ToLower(src)] {
			continue
		}
		seen[strings.ToLower(src)] = true

		score := 0
		if len(record) > 1 {
			score, _ = strconv.Atoi(strings.TrimSpace(record[1]))
		}
		targets = append(targets, domain.Target{Source: src, MinScore: max(0, score)})
	}
	return targets, nil
}

// LoadKeywords reads one lower-cased term per row after a header line.
func LoadKeywords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadKeywords(f)
}

func ReadKeywords(in io.Reader) ([]string, error) {
	r := csv.NewReader(stripBOM(in))
	r.FieldsPerRecord = -1
	var kws []string
	line := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			continue
		}
		if line > 1 && len(rec) > 0 {
			if kw := strings.ToLower(strings.TrimSpace(rec[0])); kw != "" {
				kws = append(kws, kw)
			}
		}
	}
	return kws, nil
}

// Names returns the source keys of targets in order.
func Names(targets []domain.Target) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.Source
	}
	return out
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	rdr, _, err := br.ReadRune()
	if err != nil {
		return br
	}
	if rdr != '\uFEFF' {
		br.UnreadRune()
	}
	return br
}
