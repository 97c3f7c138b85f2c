// Package capture owns the persistence unit of the tool: a finite,
// immutable collection of metric samples loaded from a file or gathered
// from a live source, and the JSON capture-file format shared between
// tool invocations.
package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/sqldiag/sqldiag/internal/record"
)

// Sentinel errors callers branch on. Both are fatal to the invocation
// that hit them; the tool never reports from a partially-loaded file.
var (
	ErrNotFound = errors.New("capture file not found")
	ErrParse    = errors.New("not a JSON array of metric records")
)

// Store is one finite capture of metric samples. The label is used only
// for report headers. A Store is never mutated after construction.
type Store struct {
	Label   string
	Samples []record.MetricSample
}

// New creates a Store over an already-validated sample collection.
func New(label string, samples []record.MetricSample) *Store {
	return &Store{Label: label, Samples: samples}
}

// envelope is the upstream export body shape. Load accepts it for
// compatibility with raw exports; Save always writes the bare array.
type envelope struct {
	Records []record.MetricSample `json:"records"`
}

// Load reads a capture file. Paths ending in .gz are decompressed
// transparently. Returns ErrNotFound when the path does not exist and
// ErrParse when the content is not a JSON array of record objects.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}

		return nil, fmt.Errorf("reading capture file %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".gz") {
		data, err = gunzip(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, ErrParse)
		}
	}

	samples, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrParse)
	}

	return &Store{
		Label:   filepath.Base(path),
		Samples: samples,
	}, nil
}

func decode(data []byte) ([]record.MetricSample, error) {
	var samples []record.MetricSample
	if err := json.Unmarshal(data, &samples); err == nil {
		return samples, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Records != nil {
		return env.Records, nil
	}

	return nil, ErrParse
}

// Save writes the exact record set as a JSON array. The write is atomic
// with respect to partial files: content goes to a temp file in the
// destination directory which is renamed into place only after a
// successful flush, so a crash mid-write never leaves a truncated file
// that Load would accept. Paths ending in .gz are gzip-compressed.
func (s *Store) Save(path string) error {
	samples := s.Samples
	if samples == nil {
		samples = []record.MetricSample{}
	}

	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding capture: %w", err)
	}

	if strings.HasSuffix(path, ".gz") {
		data, err = gzipBytes(data)
		if err != nil {
			return fmt.Errorf("compressing capture: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("writing %s: %w", path, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("flushing %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("closing %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("renaming into %s: %w", path, err)
	}

	return nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// Adapter pulls a bounded window of raw event bodies from a live source.
// Individual malformed bodies are not the adapter's problem; it reports
// only transport-level delivery failures.
type Adapter interface {
	// Capture returns the raw JSON bodies received during the window,
	// plus the count of transport-level delivery failures. Window expiry
	// is success with whatever was collected so far.
	Capture(ctx context.Context, window time.Duration) (bodies [][]byte, failures int, err error)

	// Source describes the live source for report headers.
	Source() string
}

// FromIngestion gathers a bounded capture window from the adapter and
// validates every raw record through the record model. Invalid records
// and undecodable bodies are counted as skipped; transport-level
// delivery failures are reported separately and neither count
// escalates.
func FromIngestion(
	ctx context.Context,
	adapter Adapter,
	window time.Duration,
) (store *Store, skipped, failures int, err error) {
	bodies, failures, err := adapter.Capture(ctx, window)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("capturing from %s: %w", adapter.Source(), err)
	}

	var samples []record.MetricSample

	for _, body := range bodies {
		raws, ok := decodeBody(body)
		if !ok {
			skipped++

			continue
		}

		for _, raw := range raws {
			sample, err := record.ParseSample(raw)
			if err != nil {
				skipped++

				continue
			}

			samples = append(samples, sample)
		}
	}

	return &Store{
		Label:   adapter.Source(),
		Samples: samples,
	}, skipped, failures, nil
}

// decodeBody accepts either the upstream records envelope or a bare
// array of record objects.
func decodeBody(body []byte) ([]map[string]any, bool) {
	var env struct {
		Records []map[string]any `json:"records"`
	}

	if err := json.Unmarshal(body, &env); err == nil && env.Records != nil {
		return env.Records, true
	}

	var raws []map[string]any
	if err := json.Unmarshal(body, &raws); err == nil {
		return raws, true
	}

	return nil, false
}
