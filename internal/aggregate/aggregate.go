// Package aggregate reduces a capture into per-metric report entries,
// either as cross-sample summary statistics or as a time-bucketed pivot.
package aggregate

import (
	"sort"
	"time"

	"github.com/sqldiag/sqldiag/internal/capture"
	"github.com/sqldiag/sqldiag/internal/record"
)

// SummaryStats are cross-sample statistics for one metric key.
// Fields are nil when no sample in the group carried a usable value.
type SummaryStats struct {
	SampleCount int
	Min         *float64
	Max         *float64
	Avg         *float64
	Latest      *float64
}

// BucketValue is one time-bucket average for a metric. Start is the
// truncated bucket time; Label is its short clock rendering. Ordering
// follows Start, since short clock labels alone wrap at midnight.
type BucketValue struct {
	Label   string
	Start   time.Time
	Average float64
}

// Metric is one aggregated report entry. Exactly one of Stats or
// Buckets is populated, depending on the aggregation mode.
type Metric struct {
	Key         string
	DisplayName string
	Category    string

	Stats   *SummaryStats
	Buckets []BucketValue
}

// Result is the output of one aggregation pass. Skipped counts metric
// groups excluded for having no usable statistics.
type Result struct {
	Metrics []Metric
	Skipped int
}

// group accumulates samples for one metric key. The display name and
// category are fixed by the first sample observed for the key.
type group struct {
	key         string
	displayName string
	category    string
	samples     []record.MetricSample
}

// groupByKey partitions samples by metric key, preserving first-seen
// key order. The upstream emission order typically clusters keys by
// diagnostic category, which the report keeps intact.
func groupByKey(samples []record.MetricSample) []*group {
	byKey := make(map[string]*group)

	var ordered []*group

	for i := range samples {
		s := &samples[i]

		g, ok := byKey[s.MetricKey]
		if !ok {
			g = &group{
				key:         s.MetricKey,
				displayName: s.DisplayName,
				category:    s.Category,
			}
			byKey[s.MetricKey] = g
			ordered = append(ordered, g)
		}

		g.samples = append(g.samples, *s)
	}

	return ordered
}

// Summarize reduces a capture to one summary entry per metric key.
func Summarize(store *capture.Store) Result {
	var res Result

	for _, g := range groupByKey(store.Samples) {
		stats := summarize(g.samples)
		if stats.Min == nil && stats.Max == nil &&
			stats.Avg == nil && stats.Latest == nil {
			res.Skipped++

			continue
		}

		res.Metrics = append(res.Metrics, Metric{
			Key:         g.key,
			DisplayName: g.displayName,
			Category:    g.category,
			Stats:       stats,
		})
	}

	return res
}

func summarize(samples []record.MetricSample) *SummaryStats {
	stats := &SummaryStats{SampleCount: len(samples)}

	var (
		avgSum float64
		avgN   int
		newest *record.MetricSample
	)

	for i := range samples {
		s := &samples[i]

		// Min/max come from the per-sample minimum/maximum fields,
		// falling back to the average when a sample carries neither.
		minCand := s.Minimum
		maxCand := s.Maximum

		if minCand == nil && maxCand == nil {
			minCand = s.Average
			maxCand = s.Average
		}

		if minCand != nil && (stats.Min == nil || *minCand < *stats.Min) {
			stats.Min = ptr(*minCand)
		}

		if maxCand != nil && (stats.Max == nil || *maxCand > *stats.Max) {
			stats.Max = ptr(*maxCand)
		}

		if s.Average != nil {
			avgSum += *s.Average
			avgN++
		}

		if newest == nil || s.Timestamp.After(newest.Timestamp) {
			newest = s
		}
	}

	if avgN > 0 {
		stats.Avg = ptr(avgSum / float64(avgN))
	}

	if newest != nil {
		switch {
		case newest.Average != nil:
			stats.Latest = ptr(*newest.Average)
		case newest.Total != nil:
			stats.Latest = ptr(*newest.Total)
		}
	}

	return stats
}

// Pivot reduces a capture to one time-bucketed entry per metric key.
// Bucket labels are sample timestamps truncated to the granularity and
// formatted as short clock times; periods with no sample are omitted,
// not zero-filled.
func Pivot(store *capture.Store, granularity time.Duration) Result {
	if granularity <= 0 {
		granularity = time.Minute
	}

	var res Result

	for _, g := range groupByKey(store.Samples) {
		buckets := pivot(g.samples, granularity)
		if len(buckets) == 0 {
			res.Skipped++

			continue
		}

		res.Metrics = append(res.Metrics, Metric{
			Key:         g.key,
			DisplayName: g.displayName,
			Category:    g.category,
			Buckets:     buckets,
		})
	}

	return res
}

func pivot(
	samples []record.MetricSample,
	granularity time.Duration,
) []BucketValue {
	// Samples may arrive out of order across partitions; order by time
	// before bucketing. Work on a copy, captures are immutable.
	ordered := make([]record.MetricSample, len(samples))
	copy(ordered, samples)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	type acc struct {
		sum float64
		n   int
	}

	// Buckets are keyed by the truncated time, not the clock label:
	// captures spanning midnight repeat labels without repeating times.
	byStart := make(map[time.Time]*acc)

	var starts []time.Time

	for i := range ordered {
		s := &ordered[i]
		if s.Average == nil {
			continue
		}

		start := s.Timestamp.UTC().Truncate(granularity)

		a, ok := byStart[start]
		if !ok {
			a = &acc{}
			byStart[start] = a
			starts = append(starts, start)
		}

		a.sum += *s.Average
		a.n++
	}

	buckets := make([]BucketValue, 0, len(starts))

	for _, start := range starts {
		a := byStart[start]
		buckets = append(buckets, BucketValue{
			Label:   start.Format("15:04"),
			Start:   start,
			Average: a.sum / float64(a.n),
		})
	}

	return buckets
}

func ptr(v float64) *float64 { return &v }
