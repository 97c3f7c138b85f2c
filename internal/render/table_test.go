package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldiag/sqldiag/internal/aggregate"
	"github.com/sqldiag/sqldiag/internal/capture"
	"github.com/sqldiag/sqldiag/internal/record"
)

func ptrTo(v float64) *float64 { return &v }

var t0 = time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)

func storeOf(samples ...record.MetricSample) *capture.Store {
	return capture.New("events.json", samples)
}

func avgSample(key, resource string, ts time.Time, avg float64) record.MetricSample {
	return record.MetricSample{
		ResourcePath: resource,
		MetricKey:    key,
		DisplayName:  record.DisplayNameFor(key),
		Timestamp:    ts,
		Average:      ptrTo(avg),
	}
}

func TestFormatValue(t *testing.T) {
	opts := DefaultOptions()

	cases := []struct {
		name string
		in   *float64
		want string
	}{
		{"absent", nil, "—"},
		{"integer", ptrTo(2), "2"},
		{"fraction", ptrTo(0.6), "0.6"},
		{"truncated", ptrTo(12.34567), "12.345"},
		{"kilo", ptrTo(1500), "1.5K"},
		{"mega", ptrTo(2_500_000), "2.5M"},
		{"giga", ptrTo(3_000_000_000), "3G"},
		{"negative_kilo", ptrTo(-1500), "-1.5K"},
		{"zero", ptrTo(0), "0"},
		{"just_below_kilo", ptrTo(999.9994), "999.999"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, formatValue(tc.in, opts))
		})
	}
}

func TestFormatValue_CustomThresholds(t *testing.T) {
	opts := DefaultOptions()
	opts.Kilo = 1024
	opts.Mega = 1024 * 1024
	opts.Giga = 1024 * 1024 * 1024

	assert.Equal(t, "1000", formatValue(ptrTo(1000), opts))
	assert.Equal(t, "1K", formatValue(ptrTo(1024), opts))
}

func TestMetricLabel_Truncation(t *testing.T) {
	m := aggregate.Metric{
		Key:         "xtp_storage_percent",
		DisplayName: "In-Memory OLTP Storage Percentage",
	}

	full := metricLabel(m, 80)
	assert.Equal(t, "In-Memory OLTP Storage Percentage (xtp_storage_percent)", full)

	short := metricLabel(m, 40)
	assert.LessOrEqual(t, len([]rune(short)), 40)
	assert.Contains(t, short, "…")
	// The key survives truncation intact.
	assert.Contains(t, short, "(xtp_storage_percent)")
}

func TestHeaderFor_UniformResource(t *testing.T) {
	res := "/SUBSCRIPTIONS/X/PROVIDERS/MICROSOFT.SQL/SERVERS/SRV1/DATABASES/DB1"

	hdr := HeaderFor(storeOf(
		avgSample("cpu_percent", res, t0, 1),
		avgSample("dtu_used", res, t0.Add(time.Minute), 2),
	))

	assert.Equal(t, "events.json", hdr.Source)
	assert.Equal(t, "SRV1/DB1", hdr.ResourcePath)
	assert.Equal(t, t0, hdr.From)
	assert.Equal(t, t0.Add(time.Minute), hdr.To)
}

func TestHeaderFor_MixedResources(t *testing.T) {
	hdr := HeaderFor(storeOf(
		avgSample("cpu_percent", "/SERVERS/A/DATABASES/X", t0, 1),
		avgSample("cpu_percent", "/SERVERS/B/DATABASES/Y", t0, 2),
	))

	assert.Equal(t, "(multiple resources)", hdr.ResourcePath)
}

func TestSummary_Layout(t *testing.T) {
	store := storeOf(
		avgSample("cpu_percent", "/SERVERS/S/DATABASES/D", t0, 0.6),
		avgSample("cpu_percent", "/SERVERS/S/DATABASES/D", t0.Add(time.Minute), 2),
		avgSample("dtu_used", "/SERVERS/S/DATABASES/D", t0, 1500),
	)

	res := aggregate.Summarize(store)
	text := Summary(res, HeaderFor(store), DefaultOptions())

	assert.Contains(t, text, "Source:   events.json")
	assert.Contains(t, text, "Resource: S/D")
	assert.Contains(t, text, "Samples:  2026-08-27 10:00 to 2026-08-27 10:01")
	assert.Contains(t, text, "Metric")
	assert.Contains(t, text, "Latest")
	assert.Contains(t, text, "CPU Percentage (cpu_percent)")
	assert.Contains(t, text, "DTU Used (dtu_used)")
	assert.Contains(t, text, "1.5K")
}

func TestSummary_ColumnsAligned(t *testing.T) {
	store := storeOf(
		avgSample("cpu_percent", "/SERVERS/S/DATABASES/D", t0, 1),
		avgSample("dtu_used", "/SERVERS/S/DATABASES/D", t0, 123456789),
	)

	res := aggregate.Summarize(store)
	text := Summary(res, HeaderFor(store), DefaultOptions())

	var rows []string

	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "(cpu_percent)") ||
			strings.Contains(line, "(dtu_used)") {
			rows = append(rows, line)
		}
	}

	require.Len(t, rows, 2)
	// Two-pass width computation gives every row the same rendered width.
	assert.Equal(t, len([]rune(rows[0])), len([]rune(rows[1])))
}

func TestBuckets_Layout(t *testing.T) {
	store := storeOf(
		avgSample("cpu_percent", "/SERVERS/S/DATABASES/D", t0, 1),
		avgSample("cpu_percent", "/SERVERS/S/DATABASES/D", t0.Add(time.Minute), 2),
		avgSample("dtu_used", "/SERVERS/S/DATABASES/D", t0, 3),
	)

	res := aggregate.Pivot(store, time.Minute)
	text := Buckets(res, HeaderFor(store), DefaultOptions())

	assert.Contains(t, text, "Buckets:  2")
	assert.Contains(t, text, "Avg @10:00")
	assert.Contains(t, text, "Avg @10:01")
	// dtu_used has no 10:01 sample; its cell is the absent marker,
	// not a zero fill.
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "(dtu_used)") {
			assert.Contains(t, line, "—")
		}
	}
}

func TestBuckets_ColumnsChronologicalAcrossMidnight(t *testing.T) {
	late := time.Date(2026, 8, 27, 23, 59, 0, 0, time.UTC)
	early := time.Date(2026, 8, 28, 0, 1, 0, 0, time.UTC)

	store := storeOf(
		avgSample("cpu_percent", "/SERVERS/S/DATABASES/D", late, 1),
		avgSample("cpu_percent", "/SERVERS/S/DATABASES/D", early, 2),
	)

	res := aggregate.Pivot(store, time.Minute)
	text := Buckets(res, HeaderFor(store), DefaultOptions())

	// The pre-midnight column comes first even though its clock label
	// sorts after the post-midnight one.
	assert.Less(t,
		strings.Index(text, "Avg @23:59"),
		strings.Index(text, "Avg @00:01"),
	)
	assert.GreaterOrEqual(t, strings.Index(text, "Avg @23:59"), 0)
}

func TestRenderer_NoTrailingOutput(t *testing.T) {
	store := storeOf()
	res := aggregate.Summarize(store)

	text := Summary(res, HeaderFor(store), DefaultOptions())
	assert.True(t, strings.HasSuffix(text, "\n"))
}
