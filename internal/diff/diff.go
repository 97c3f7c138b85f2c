// Package diff computes the metric-key set relationship between two
// captures, typically taken before and after a configuration change
// that adds or removes monitored metrics.
package diff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sqldiag/sqldiag/internal/capture"
)

// Entry is one metric key with its representative display name (the
// first occurrence in the owning capture).
type Entry struct {
	Key         string
	DisplayName string
}

// Report is the result of comparing two captures. Order of the inputs
// matters only for labeling, not for the math.
type Report struct {
	LabelA string
	LabelB string

	Common  []Entry
	Added   []Entry
	Removed []Entry

	TotalBefore int
	TotalAfter  int
}

// Compare classifies every distinct metric key of the two captures as
// common, added (present only in after) or removed (present only in
// before). Key equality is exact; there is no fuzzy matching.
func Compare(before, after *capture.Store) Report {
	keysA := keySet(before)
	keysB := keySet(after)

	r := Report{
		LabelA:      before.Label,
		LabelB:      after.Label,
		TotalBefore: len(keysA),
		TotalAfter:  len(keysB),
	}

	for key, name := range keysA {
		if _, ok := keysB[key]; ok {
			r.Common = append(r.Common, Entry{Key: key, DisplayName: name})
		} else {
			r.Removed = append(r.Removed, Entry{Key: key, DisplayName: name})
		}
	}

	for key, name := range keysB {
		if _, ok := keysA[key]; !ok {
			r.Added = append(r.Added, Entry{Key: key, DisplayName: name})
		}
	}

	// Unlike the single-capture report, which preserves emission order,
	// the comparison favors deterministic, scannable output.
	sortEntries(r.Common)
	sortEntries(r.Added)
	sortEntries(r.Removed)

	return r
}

// keySet collects the distinct metric keys of a capture with one
// representative display name per key. First occurrence wins.
func keySet(store *capture.Store) map[string]string {
	keys := make(map[string]string)

	for i := range store.Samples {
		s := &store.Samples[i]

		if _, ok := keys[s.MetricKey]; !ok {
			keys[s.MetricKey] = s.DisplayName
		}
	}

	return keys
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
}

const rule = "════════════════════════════════════════════════════════════════════════════════"

// Render composes the comparison report text.
func (r Report) Render() string {
	var b strings.Builder

	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "  Metric Comparison: %s  →  %s\n", r.LabelA, r.LabelB)
	b.WriteString(rule + "\n")

	fmt.Fprintf(&b, "\n  Metrics in BOTH (%d):\n", len(r.Common))
	writeEntries(&b, "•", r.Common)

	if len(r.Added) > 0 {
		fmt.Fprintf(&b, "\n  NEW metrics in %s (%d):\n", r.LabelB, len(r.Added))
		writeEntries(&b, "+", r.Added)
	} else {
		fmt.Fprintf(&b, "\n  No new metrics in %s.\n", r.LabelB)
	}

	if len(r.Removed) > 0 {
		fmt.Fprintf(&b, "\n  Metrics REMOVED (in %s but not %s) (%d):\n",
			r.LabelA, r.LabelB, len(r.Removed))
		writeEntries(&b, "-", r.Removed)
	}

	b.WriteString("\n  Summary\n  ───────\n")
	fmt.Fprintf(&b, "    %s: %d metrics\n", r.LabelA, r.TotalBefore)
	fmt.Fprintf(&b, "    %s: %d metrics\n", r.LabelB, r.TotalAfter)
	fmt.Fprintf(&b, "    Added:   %d\n", len(r.Added))
	fmt.Fprintf(&b, "    Removed: %d\n", len(r.Removed))

	return b.String()
}

func writeEntries(b *strings.Builder, marker string, entries []Entry) {
	for _, e := range entries {
		if e.DisplayName == "" || e.DisplayName == e.Key {
			fmt.Fprintf(b, "    %s %s\n", marker, e.Key)

			continue
		}

		fmt.Fprintf(b, "    %s %-45s %s\n", marker, e.Key, e.DisplayName)
	}
}
