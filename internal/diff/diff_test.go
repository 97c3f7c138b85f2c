package diff

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/sqldiag/sqldiag/internal/capture"
	"github.com/sqldiag/sqldiag/internal/record"
)

func ptrTo(v float64) *float64 { return &v }

var t0 = time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)

func storeOf(label string, keys ...string) *capture.Store {
	samples := make([]record.MetricSample, 0, len(keys))

	for i, key := range keys {
		samples = append(samples, record.MetricSample{
			ResourcePath: "/SERVERS/S/DATABASES/D",
			MetricKey:    key,
			DisplayName:  record.DisplayNameFor(key),
			Timestamp:    t0.Add(time.Duration(i) * time.Minute),
			Average:      ptrTo(1),
		})
	}

	return capture.New(label, samples)
}

func keysOf(entries []Entry) []string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}

	return keys
}

func TestCompare_Scenario(t *testing.T) {
	before := storeOf("basic.json", "cpu_percent", "dtu_used")
	after := storeOf("advanced.json",
		"cpu_percent", "dtu_used", "deadlock", "connection_failed")

	r := Compare(before, after)

	assert.Equal(t, 2, r.TotalBefore)
	assert.Equal(t, 4, r.TotalAfter)
	assert.Equal(t, []string{"cpu_percent", "dtu_used"}, keysOf(r.Common))
	assert.Equal(t, []string{"connection_failed", "deadlock"}, keysOf(r.Added))
	assert.Empty(t, r.Removed)
}

func TestCompare_EmptyBefore(t *testing.T) {
	r := Compare(storeOf("a.json"), storeOf("b.json", "cpu_percent"))

	assert.Zero(t, r.TotalBefore)
	assert.Empty(t, r.Common)
	assert.Empty(t, r.Removed)
	assert.Equal(t, []string{"cpu_percent"}, keysOf(r.Added))
}

func TestCompare_EmptyAfter(t *testing.T) {
	r := Compare(storeOf("a.json", "cpu_percent"), storeOf("b.json"))

	assert.Empty(t, r.Added)
	assert.Equal(t, []string{"cpu_percent"}, keysOf(r.Removed))
}

func TestCompare_DuplicateSamplesCountOnce(t *testing.T) {
	before := storeOf("a.json", "cpu_percent", "cpu_percent", "cpu_percent")

	r := Compare(before, storeOf("b.json", "cpu_percent"))
	assert.Equal(t, 1, r.TotalBefore)
	assert.Equal(t, []string{"cpu_percent"}, keysOf(r.Common))
}

func TestCompare_FirstDisplayNameWins(t *testing.T) {
	before := storeOf("a.json", "cpu_percent")

	after := storeOf("b.json", "cpu_percent", "cpu_percent")
	after.Samples[0].DisplayName = "CPU Percentage"
	after.Samples[1].DisplayName = "cpu percentage"

	r := Compare(before, after)
	require.Len(t, r.Common, 1)
	assert.Equal(t, "CPU Percentage", r.Common[0].DisplayName)
}

func TestRender_Layout(t *testing.T) {
	before := storeOf("basic.json", "cpu_percent", "storage")
	after := storeOf("advanced.json", "cpu_percent", "deadlock")

	text := Compare(before, after).Render()

	assert.Contains(t, text, "Metric Comparison: basic.json  →  advanced.json")
	assert.Contains(t, text, "Metrics in BOTH (1):")
	assert.Contains(t, text, "NEW metrics in advanced.json (1):")
	assert.Contains(t, text, "Metrics REMOVED (in basic.json but not advanced.json) (1):")
	assert.Contains(t, text, "basic.json: 2 metrics")
	assert.Contains(t, text, "advanced.json: 2 metrics")
	assert.Contains(t, text, "Added:   1")
	assert.Contains(t, text, "Removed: 1")
	assert.Contains(t, text, "Deadlocks")
}

func TestRender_NoAdditions(t *testing.T) {
	s := storeOf("a.json", "cpu_percent")

	text := Compare(s, storeOf("b.json", "cpu_percent")).Render()
	assert.Contains(t, text, "No new metrics in b.json.")
	assert.NotContains(t, text, "REMOVED")
}

// Symmetry: Compare(A, B).Added == Compare(B, A).Removed, and vice
// versa, for any pair of captures.
func TestCompare_SymmetryProperty(t *testing.T) {
	universe := []string{
		"cpu_percent", "dtu_used", "deadlock", "connection_failed",
		"storage", "sessions_count", "workers_percent",
	}

	gen := func(rt *rapid.T, label string) *capture.Store {
		n := rapid.IntRange(0, len(universe)).Draw(rt, label+"_n")

		keys := make([]string, 0, n)
		for i := 0; i < n; i++ {
			keys = append(keys,
				rapid.SampledFrom(universe).Draw(rt, fmt.Sprintf("%s_key_%d", label, i)))
		}

		return storeOf(label, keys...)
	}

	rapid.Check(t, func(rt *rapid.T) {
		a := gen(rt, "a")
		b := gen(rt, "b")

		forward := Compare(a, b)
		backward := Compare(b, a)

		if !assert.ObjectsAreEqual(keysOf(forward.Added), keysOf(backward.Removed)) {
			rt.Errorf("added %v != reverse removed %v",
				keysOf(forward.Added), keysOf(backward.Removed))
		}

		if !assert.ObjectsAreEqual(keysOf(forward.Removed), keysOf(backward.Added)) {
			rt.Errorf("removed %v != reverse added %v",
				keysOf(forward.Removed), keysOf(backward.Added))
		}

		if !assert.ObjectsAreEqual(keysOf(forward.Common), keysOf(backward.Common)) {
			rt.Errorf("common differs between directions")
		}
	})
}

// Idempotence: Compare(A, A) yields no additions, no removals, and a
// common set equal to A's full key set.
func TestCompare_IdempotenceProperty(t *testing.T) {
	universe := []string{
		"cpu_percent", "dtu_used", "deadlock", "storage", "availability",
	}

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 10).Draw(rt, "n")

		keys := make([]string, 0, n)
		for i := 0; i < n; i++ {
			keys = append(keys,
				rapid.SampledFrom(universe).Draw(rt, fmt.Sprintf("key_%d", i)))
		}

		a := storeOf("a", keys...)
		r := Compare(a, a)

		if len(r.Added) != 0 || len(r.Removed) != 0 {
			rt.Errorf("self-compare produced added=%d removed=%d",
				len(r.Added), len(r.Removed))
		}

		distinct := make(map[string]bool)
		for _, k := range keys {
			distinct[k] = true
		}

		if len(r.Common) != len(distinct) {
			rt.Errorf("common has %d keys, want %d", len(r.Common), len(distinct))
		}
	})
}
