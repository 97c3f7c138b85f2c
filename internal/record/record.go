package record

import (
	"fmt"
	"time"
)

// FailureReason classifies why a raw record was rejected.
type FailureReason string

const (
	// MissingKey means a required field was absent or empty.
	MissingKey FailureReason = "missing_key"
	// MissingStatistic means none of the statistic fields were present.
	MissingStatistic FailureReason = "missing_statistic"
	// TypeMismatch means a field was present with the wrong type.
	TypeMismatch FailureReason = "type_mismatch"
)

// ValidationError describes why one raw record failed validation.
// Records failing validation are skipped, never fatal.
type ValidationError struct {
	Reason FailureReason
	Field  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s (field %q)", e.Reason, e.Field)
}

// MetricSample is one exported diagnostic metric record.
//
// MetricKey uniquely identifies a metric's time series within a capture;
// DisplayName is metadata attached to the key, not part of the key.
// Statistic fields are pre-aggregated by the upstream source for the
// sample's time bucket. Absent statistics stay nil, never zero.
type MetricSample struct {
	ResourcePath string    `json:"resource_path"`
	MetricKey    string    `json:"metric_key"`
	DisplayName  string    `json:"display_name,omitempty"`
	Category     string    `json:"category,omitempty"`
	Timestamp    time.Time `json:"timestamp"`

	Count   *float64 `json:"count,omitempty"`
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`
	Average *float64 `json:"average,omitempty"`
	Total   *float64 `json:"total,omitempty"`
}

// HasStatistic reports whether at least one statistic field is present.
func (s *MetricSample) HasStatistic() bool {
	return s.Count != nil || s.Minimum != nil || s.Maximum != nil ||
		s.Average != nil || s.Total != nil
}

// statisticFields in wire order.
var statisticFields = []string{"count", "minimum", "maximum", "average", "total"}

// ParseSample validates and normalizes one decoded event body into a
// MetricSample. The input is a raw field-name to value mapping as produced
// by decoding one exported JSON record.
func ParseSample(raw map[string]any) (MetricSample, error) {
	var s MetricSample

	resource, err := stringField(raw, "resource_path", true)
	if err != nil {
		return s, err
	}

	key, err := stringField(raw, "metric_key", true)
	if err != nil {
		return s, err
	}

	display, err := stringField(raw, "display_name", false)
	if err != nil {
		return s, err
	}

	category, err := stringField(raw, "category", false)
	if err != nil {
		return s, err
	}

	ts, err := timeField(raw, "timestamp")
	if err != nil {
		return s, err
	}

	if display == "" {
		display = DisplayNameFor(key)
	}

	s = MetricSample{
		ResourcePath: resource,
		MetricKey:    key,
		DisplayName:  display,
		Category:     category,
		Timestamp:    ts,
	}

	stats := map[string]**float64{
		"count":   &s.Count,
		"minimum": &s.Minimum,
		"maximum": &s.Maximum,
		"average": &s.Average,
		"total":   &s.Total,
	}

	for _, name := range statisticFields {
		v, ok := raw[name]
		if !ok || v == nil {
			continue
		}

		f, ok := numeric(v)
		if !ok {
			return MetricSample{}, &ValidationError{
				Reason: TypeMismatch,
				Field:  name,
			}
		}

		*stats[name] = &f
	}

	if !s.HasStatistic() {
		return MetricSample{}, &ValidationError{
			Reason: MissingStatistic,
			Field:  "count|minimum|maximum|average|total",
		}
	}

	return s, nil
}

func stringField(
	raw map[string]any,
	name string,
	required bool,
) (string, error) {
	v, ok := raw[name]
	if !ok || v == nil {
		if required {
			return "", &ValidationError{Reason: MissingKey, Field: name}
		}

		return "", nil
	}

	str, ok := v.(string)
	if !ok {
		return "", &ValidationError{Reason: TypeMismatch, Field: name}
	}

	if required && str == "" {
		return "", &ValidationError{Reason: MissingKey, Field: name}
	}

	return str, nil
}

func timeField(raw map[string]any, name string) (time.Time, error) {
	v, ok := raw[name]
	if !ok || v == nil {
		return time.Time{}, &ValidationError{Reason: MissingKey, Field: name}
	}

	switch t := v.(type) {
	case string:
		ts, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, &ValidationError{
				Reason: TypeMismatch,
				Field:  name,
			}
		}

		return ts, nil
	case time.Time:
		return t, nil
	default:
		return time.Time{}, &ValidationError{Reason: TypeMismatch, Field: name}
	}
}

// numeric coerces decoded JSON numbers. encoding/json yields float64;
// integer types are accepted for hand-constructed inputs.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
