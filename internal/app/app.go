// Package app wires the capture, aggregation, rendering and comparison
// components into the three tool modes: live ingest, file report, and
// file comparison.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/sqldiag/sqldiag/internal/aggregate"
	"github.com/sqldiag/sqldiag/internal/capture"
	"github.com/sqldiag/sqldiag/internal/diff"
	"github.com/sqldiag/sqldiag/internal/ingest"
	"github.com/sqldiag/sqldiag/internal/render"
)

// App runs one tool invocation. Reports go to Out; diagnostics go to
// the logger.
type App struct {
	log logrus.FieldLogger
	cfg *Config
	out io.Writer
}

// New creates an App writing report text to out.
func New(log logrus.FieldLogger, cfg *Config, out io.Writer) *App {
	return &App{
		log: log.WithField("component", "app"),
		cfg: cfg,
		out: out,
	}
}

// RunFile renders a report over a previously saved capture file.
func (a *App) RunFile(path string, buckets bool) error {
	store, err := capture.Load(path)
	if err != nil {
		return err
	}

	a.log.WithFields(logrus.Fields{
		"path":    path,
		"samples": len(store.Samples),
	}).Info("Loaded capture")

	return a.report(store, buckets)
}

// RunCompare renders the metric-set comparison of two saved captures.
func (a *App) RunCompare(pathA, pathB string) error {
	before, err := capture.Load(pathA)
	if err != nil {
		return err
	}

	after, err := capture.Load(pathB)
	if err != nil {
		return err
	}

	report := diff.Compare(before, after)

	a.log.WithFields(logrus.Fields{
		"common":  len(report.Common),
		"added":   len(report.Added),
		"removed": len(report.Removed),
	}).Info("Compared captures")

	fmt.Fprintln(a.out, report.Render())

	return nil
}

// RunLive gathers one bounded capture window from the configured event
// source, optionally saves it, and renders the report.
func (a *App) RunLive(ctx context.Context, savePath string, buckets bool) error {
	if a.cfg.Ingest.URL == "" {
		return fmt.Errorf("live capture requires an event source URL")
	}

	if a.cfg.Ingest.Queue == "" {
		return fmt.Errorf("live capture requires an event source queue")
	}

	adapter := ingest.NewAMQPAdapter(a.log, a.cfg.Ingest)

	store, skipped, failures, err := capture.FromIngestion(ctx, adapter, a.cfg.Ingest.Window)
	if err != nil {
		return err
	}

	if skipped > 0 {
		a.log.WithField("skipped", skipped).
			Warn("Skipped invalid records during capture")
	}

	if failures > 0 {
		a.log.WithField("failures", failures).
			Warn("Transport-level delivery failures during capture")
	}

	a.log.WithField("samples", len(store.Samples)).Info("Capture complete")

	if savePath != "" {
		if err := store.Save(savePath); err != nil {
			return err
		}

		a.log.WithFields(logrus.Fields{
			"path":    savePath,
			"samples": len(store.Samples),
		}).Info("Saved capture")
	}

	return a.report(store, buckets)
}

func (a *App) report(store *capture.Store, buckets bool) error {
	hdr := render.HeaderFor(store)

	var (
		res  aggregate.Result
		text string
	)

	if buckets {
		res = aggregate.Pivot(store, a.cfg.BucketGranularity)
		text = render.Buckets(res, hdr, a.cfg.Render)
	} else {
		res = aggregate.Summarize(store)
		text = render.Summary(res, hdr, a.cfg.Render)
	}

	if res.Skipped > 0 {
		a.log.WithField("skipped", res.Skipped).
			Warn("Excluded metric groups with no usable statistics")
	}

	fmt.Fprint(a.out, text)

	return nil
}
