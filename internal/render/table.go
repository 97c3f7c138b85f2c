// Package render turns aggregated metrics into aligned, fixed-width
// text tables. The renderer performs no I/O of its own; callers decide
// where the composed text goes.
package render

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sqldiag/sqldiag/internal/aggregate"
	"github.com/sqldiag/sqldiag/internal/capture"
	"github.com/sqldiag/sqldiag/internal/record"
)

// Options parametrizes table layout and numeric abbreviation. The
// magnitude thresholds are configurable rather than fixed constants.
type Options struct {
	// LabelWidth caps the metric label column; longer display names are
	// truncated with an ellipsis. The metric key itself is never cut.
	LabelWidth int `yaml:"label_width"`
	// Decimals is the maximum digits kept after the decimal point.
	Decimals int `yaml:"decimals"`
	// Kilo, Mega and Giga are the abbreviation thresholds for the
	// K/M/G magnitude suffixes.
	Kilo float64 `yaml:"kilo"`
	Mega float64 `yaml:"mega"`
	Giga float64 `yaml:"giga"`
}

// DefaultOptions returns the standard layout parameters.
func DefaultOptions() Options {
	return Options{
		LabelWidth: 40,
		Decimals:   3,
		Kilo:       1_000,
		Mega:       1_000_000,
		Giga:       1_000_000_000,
	}
}

// Header is the report header block.
type Header struct {
	Source       string
	ResourcePath string
	From         time.Time
	To           time.Time
	BucketCount  int
}

// mixedResources is the placeholder shown when samples span more than
// one monitored resource.
const mixedResources = "(multiple resources)"

// HeaderFor derives the header block fields from a capture: the source
// label, the resource path when uniform across all samples, and the
// sample time range.
func HeaderFor(store *capture.Store) Header {
	hdr := Header{Source: store.Label}

	for i := range store.Samples {
		s := &store.Samples[i]

		short := record.ShortResourcePath(s.ResourcePath)

		switch {
		case hdr.ResourcePath == "":
			hdr.ResourcePath = short
		case hdr.ResourcePath != short:
			hdr.ResourcePath = mixedResources
		}

		if hdr.From.IsZero() || s.Timestamp.Before(hdr.From) {
			hdr.From = s.Timestamp
		}

		if hdr.To.IsZero() || s.Timestamp.After(hdr.To) {
			hdr.To = s.Timestamp
		}
	}

	return hdr
}

const rule = "════════════════════════════════════════════════════════════════════════════════"

func (h Header) write(b *strings.Builder, bucketed bool) {
	b.WriteString(rule + "\n")
	fmt.Fprintf(b, "  Source:   %s\n", h.Source)

	if h.ResourcePath != "" {
		fmt.Fprintf(b, "  Resource: %s\n", h.ResourcePath)
	}

	if bucketed {
		fmt.Fprintf(b, "  Buckets:  %d\n", h.BucketCount)
	} else if !h.From.IsZero() {
		fmt.Fprintf(b, "  Samples:  %s to %s\n",
			h.From.UTC().Format("2006-01-02 15:04"),
			h.To.UTC().Format("2006-01-02 15:04"),
		)
	}

	b.WriteString(rule + "\n\n")
}

// Summary renders one row per metric with cross-sample statistics.
func Summary(res aggregate.Result, hdr Header, opts Options) string {
	columns := []string{"Metric", "Count", "Min", "Max", "Avg", "Latest"}

	rows := make([][]string, 0, len(res.Metrics))

	for _, m := range res.Metrics {
		rows = append(rows, []string{
			metricLabel(m, opts.LabelWidth),
			strconv.Itoa(m.Stats.SampleCount),
			formatValue(m.Stats.Min, opts),
			formatValue(m.Stats.Max, opts),
			formatValue(m.Stats.Avg, opts),
			formatValue(m.Stats.Latest, opts),
		})
	}

	var b strings.Builder

	hdr.write(&b, false)
	writeTable(&b, columns, rows)

	return b.String()
}

// Buckets renders one row per metric with one column per time bucket.
func Buckets(res aggregate.Result, hdr Header, opts Options) string {
	columns := bucketColumns(res)

	hdr.BucketCount = len(columns)

	headers := make([]string, 0, len(columns)+1)
	headers = append(headers, "Metric")

	for _, c := range columns {
		headers = append(headers, "Avg @"+c.Format("15:04"))
	}

	rows := make([][]string, 0, len(res.Metrics))

	for _, m := range res.Metrics {
		byStart := make(map[time.Time]float64, len(m.Buckets))
		for _, bv := range m.Buckets {
			byStart[bv.Start] = bv.Average
		}

		row := make([]string, 0, len(columns)+1)
		row = append(row, metricLabel(m, opts.LabelWidth))

		for _, c := range columns {
			if v, ok := byStart[c]; ok {
				row = append(row, formatValue(&v, opts))
			} else {
				row = append(row, absentValue)
			}
		}

		rows = append(rows, row)
	}

	var b strings.Builder

	hdr.write(&b, true)
	writeTable(&b, headers, rows)

	return b.String()
}

// bucketColumns merges every metric's bucket start times into one
// chronological column sequence. Sorting on the start time rather than
// the clock label keeps captures that span midnight in order.
func bucketColumns(res aggregate.Result) []time.Time {
	seen := make(map[time.Time]bool)

	var starts []time.Time

	for _, m := range res.Metrics {
		for _, bv := range m.Buckets {
			if !seen[bv.Start] {
				seen[bv.Start] = true
				starts = append(starts, bv.Start)
			}
		}
	}

	sort.Slice(starts, func(i, j int) bool {
		return starts[i].Before(starts[j])
	})

	return starts
}

// writeTable emits an aligned table. Widths are measured across the
// header and every cell before any row is emitted, so columns are
// stable without a resize pass. The first column is left-aligned,
// value columns right-aligned.
func writeTable(b *strings.Builder, columns []string, rows [][]string) {
	widths := make([]int, len(columns))

	for i, c := range columns {
		widths[i] = len([]rune(c))
	}

	for _, row := range rows {
		for i, cell := range row {
			if w := len([]rune(cell)); w > widths[i] {
				widths[i] = w
			}
		}
	}

	writeRow(b, columns, widths)

	total := 0
	for _, w := range widths {
		total += w + 2
	}

	b.WriteString("  " + strings.Repeat("─", total-2) + "\n")

	for _, row := range rows {
		writeRow(b, row, widths)
	}

	b.WriteString("\n")
}

// writeRow pads by rune count, not bytes; cells may carry multi-byte
// runes (the ellipsis and absent-value markers).
func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, cell := range cells {
		fill := widths[i] - len([]rune(cell))
		if fill < 0 {
			fill = 0
		}

		if i == 0 {
			b.WriteString("  " + cell + strings.Repeat(" ", fill))
		} else {
			b.WriteString("  " + strings.Repeat(" ", fill) + cell)
		}
	}

	b.WriteString("\n")
}

// metricLabel is "Display Name (key)", ellipsis-truncated at the label
// width. The key is never truncated: when the full label does not fit,
// the display name is shortened instead.
func metricLabel(m aggregate.Metric, width int) string {
	label := fmt.Sprintf("%s (%s)", m.DisplayName, m.Key)

	runes := []rune(label)
	if width <= 0 || len(runes) <= width {
		return label
	}

	suffix := fmt.Sprintf(" (%s)", m.Key)

	keep := width - len([]rune(suffix)) - 1
	if keep < 1 {
		return label
	}

	name := []rune(m.DisplayName)
	if keep > len(name) {
		keep = len(name)
	}

	return string(name[:keep]) + "…" + suffix
}

// absentValue marks a statistic with no data.
const absentValue = "—"

// formatValue renders one numeric statistic: absent values as a dash,
// magnitudes above the configured thresholds abbreviated with a K/M/G
// suffix, and everything truncated to at most Decimals digits after
// the decimal point.
func formatValue(v *float64, opts Options) string {
	if v == nil {
		return absentValue
	}

	val := *v
	abs := math.Abs(val)

	switch {
	case opts.Giga > 0 && abs >= opts.Giga:
		return trim(val/opts.Giga, opts.Decimals) + "G"
	case opts.Mega > 0 && abs >= opts.Mega:
		return trim(val/opts.Mega, opts.Decimals) + "M"
	case opts.Kilo > 0 && abs >= opts.Kilo:
		return trim(val/opts.Kilo, opts.Decimals) + "K"
	default:
		return trim(val, opts.Decimals)
	}
}

// trim truncates to at most d digits after the decimal point and drops
// trailing zeros. Truncation happens on the formatted string with one
// guard digit; scaling-and-truncating the float itself turns 0.6 into
// 0.599.
func trim(v float64, d int) string {
	if d < 0 {
		d = 0
	}

	s := strconv.FormatFloat(v, 'f', d+1, 64)
	s = s[:len(s)-1]
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")

	if s == "" || s == "-" || s == "-0" {
		return "0"
	}

	return s
}
