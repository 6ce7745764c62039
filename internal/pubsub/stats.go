// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package pubsub

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cardinalhq/purchaseloader/internal/pipeline"
)

// StatsAggregator collects and periodically reports invocation statistics
// per source.
type StatsAggregator struct {
	mu       sync.Mutex
	stats    map[string]*sourceStats
	interval time.Duration
	logger   *slog.Logger
	done     chan struct{}
	wg       sync.WaitGroup
}

type sourceStats struct {
	completed   int64
	rejected    int64
	failed      int64
	rowsWritten int64
	rowsDropped int64
	rowsFailed  int64
}

func (s *sourceStats) empty() bool {
	return s.completed == 0 && s.rejected == 0 && s.failed == 0
}

// NewStatsAggregator creates a new stats aggregator with the specified reporting interval
func NewStatsAggregator(interval time.Duration, logger *slog.Logger) *StatsAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsAggregator{
		stats:    make(map[string]*sourceStats),
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins periodic reporting
func (sa *StatsAggregator) Start(ctx context.Context) {
	sa.wg.Add(1)
	go func() {
		defer sa.wg.Done()
		ticker := time.NewTicker(sa.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				sa.reportStats()
				return
			case <-sa.done:
				sa.reportStats()
				return
			case <-ticker.C:
				sa.reportStats()
			}
		}
	}()
}

// Stop stops the aggregator and reports final stats
func (sa *StatsAggregator) Stop() {
	close(sa.done)
	sa.wg.Wait()
}

// Record accounts for one pipeline invocation.
func (sa *StatsAggregator) Record(source string, report *pipeline.Report, err error) {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	s := sa.stats[source]
	if s == nil {
		s = &sourceStats{}
		sa.stats[source] = s
	}

	switch {
	case err != nil:
		s.failed++
	case report != nil && report.Rejected():
		s.rejected++
	default:
		s.completed++
	}
	if report != nil {
		s.rowsWritten += int64(report.Written())
		s.rowsDropped += int64(report.Dropped())
		s.rowsFailed += int64(report.Failed())
	}
}

// reportStats reports and resets statistics
func (sa *StatsAggregator) reportStats() {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	sources := make([]string, 0, len(sa.stats))
	for source, s := range sa.stats {
		if !s.empty() {
			sources = append(sources, source)
		}
	}
	if len(sources) == 0 {
		return
	}
	sort.Strings(sources)

	var total sourceStats
	details := make([]any, 0, len(sources))
	for _, source := range sources {
		s := sa.stats[source]
		total.completed += s.completed
		total.rejected += s.rejected
		total.failed += s.failed
		total.rowsWritten += s.rowsWritten
		details = append(details, slog.Group(source,
			slog.Int64("completed", s.completed),
			slog.Int64("rejected", s.rejected),
			slog.Int64("failed", s.failed),
			slog.Int64("rows_written", s.rowsWritten),
			slog.Int64("rows_dropped", s.rowsDropped),
			slog.Int64("rows_failed", s.rowsFailed),
		))
	}

	attrs := []any{
		slog.Int64("total_completed", total.completed),
		slog.Int64("total_rejected", total.rejected),
		slog.Int64("total_failed", total.failed),
		slog.Int64("total_rows_written", total.rowsWritten),
	}
	attrs = append(attrs, details...)
	sa.logger.Info("Invocation stats", attrs...)

	sa.stats = make(map[string]*sourceStats)
}
