// Package health checks which catalog files are reachable without downloading them.
package health

import (
	"context"
	"sort"

	"github.com/glorpus-work/datafetch/internal/logger"
	"github.com/glorpus-work/datafetch/pkg/catalog"
	"github.com/glorpus-work/datafetch/pkg/transfer"
)

// Prober is the metadata half of a transfer source.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (transfer.ProbeResult, error)
}

// Scanner probes every part of a catalog once.
type Scanner struct {
	prober Prober
}

// NewScanner creates a scanner using prober.
func NewScanner(prober Prober) *Scanner {
	return &Scanner{prober: prober}
}

// Check probes every part, optional or not, and maps its
// collection/session/part key to whether the probe succeeded.
// Nothing is retried.
func (s *Scanner) Check(ctx context.Context, cat *catalog.Catalog) map[string]bool {
	results := make(map[string]bool, cat.PartCount())
	for _, col := range cat.Collections {
		for _, sess := range col.Sessions {
			for _, p := range sess.Parts {
				key := catalog.FileKey(col.ID, sess.ID, p.ID)
				if ctx.Err() != nil {
					results[key] = false
					continue
				}
				_, err := s.prober.Probe(ctx, p.Download.URL)
				results[key] = err == nil
				if err != nil {
					logger.Debug("Probe failed", logger.Fields{"part": key, "error": err.Error()})
				}
			}
		}
	}
	return results
}

// Summary condenses Check results.
type Summary struct {
	Available   int
	Total       int
	Unavailable []string // sorted keys
}

// Healthy reports whether every file is available.
func (s Summary) Healthy() bool {
	return s.Available == s.Total
}

// Summarize counts the results of Check.
func Summarize(results map[string]bool) Summary {
	sum := Summary{Total: len(results), Unavailable: []string{}}
	for key, ok := range results {
		if ok {
			sum.Available++
			continue
		}
		sum.Unavailable = append(sum.Unavailable, key)
	}
	sort.Strings(sum.Unavailable)
	return sum
}
