package graphics

import (
	"encoding/csv"
	"fmt"
	"os"
)

// InstanceCounts is the registry aggregate snapshot reported in the
// benchmark header.
type InstanceCounts struct {
	Total   int
	Static  int
	Dynamic int
}

// MetricSource resolves one named per-frame metric in milliseconds.
type MetricSource func(name string) float64

// FrameBenchmark collects per-frame metric samples after a warm-up period
// and persists them as a CSV table once the measurement window closes. It
// owns its buffers; the window sizes and output path are configuration, not
// compiled-in constants.
type FrameBenchmark struct {
	warmupFrames   int
	measuredFrames int
	path           string
	metrics        []string
	log            Logger

	frame   int
	rows    [][]float64
	counts  InstanceCounts
	written bool
}

func NewFrameBenchmark(warmupFrames, measuredFrames int, path string, metrics []string, log Logger) *FrameBenchmark {
	return &FrameBenchmark{
		warmupFrames:   warmupFrames,
		measuredFrames: measuredFrames,
		path:           path,
		metrics:        metrics,
		log:            log,
		rows:           make([][]float64, 0, measuredFrames),
	}
}

// DefaultMetrics is the standard benchmark column set for a render mode.
// The two geometry strategies report under distinct names; their numbers
// come from different pipelines and are not directly comparable.
func DefaultMetrics(mode RenderMode) []string {
	geometry := "Geometry"
	if mode == RenderModeGPUDriven {
		geometry = "GPU Driven Geometry"
	}
	return []string{
		"Frame Time",
		"CPU Render Frame",
		"Instance Update",
		"Culling",
		geometry,
		"Lighting",
		"GPU Sync",
		"GPU Frame Time",
	}
}

// RecordFrame feeds one frame's samples. Warm-up frames record nothing;
// each measured frame appends exactly one row; the first frame past the
// window persists the table exactly once.
func (b *FrameBenchmark) RecordFrame(source MetricSource, counts InstanceCounts) error {
	b.frame++
	if b.frame <= b.warmupFrames {
		return nil
	}
	if len(b.rows) < b.measuredFrames {
		row := make([]float64, len(b.metrics))
		for i, name := range b.metrics {
			row[i] = source(name)
		}
		b.rows = append(b.rows, row)
		b.counts = counts
		return nil
	}
	if !b.written {
		return b.write()
	}
	return nil
}

// Done reports whether the table has been persisted.
func (b *FrameBenchmark) Done() bool { return b.written }

func (b *FrameBenchmark) write() error {
	f, err := os.Create(b.path)
	if err != nil {
		return fmt.Errorf("benchmark: creating %s: %w", b.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := [][]string{
		{"total instances", fmt.Sprintf("%d", b.counts.Total)},
		{"static instances", fmt.Sprintf("%d", b.counts.Static)},
		{"dynamic instances", fmt.Sprintf("%d", b.counts.Dynamic)},
	}
	if err := w.WriteAll(header); err != nil {
		return fmt.Errorf("benchmark: writing header: %w", err)
	}
	if err := w.Write(b.metrics); err != nil {
		return fmt.Errorf("benchmark: writing columns: %w", err)
	}
	for _, row := range b.rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = fmt.Sprintf("%.4f", v)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("benchmark: writing row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("benchmark: flushing %s: %w", b.path, err)
	}
	b.written = true
	b.log.Infof("benchmark: wrote %d frames to %s", len(b.rows), b.path)
	return nil
}
