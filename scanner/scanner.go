// Package scanner drives the triage pipeline: enumerate candidate artifacts,
// extract metadata, hash content, evaluate heuristics, and aggregate the
// findings into a single AnalysisResult.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"pfguard/analyzer"
	"pfguard/config"
	"pfguard/hasher"
	"pfguard/logger"
	"pfguard/report"
)

// Run-fatal conditions. Per-file failures are absorbed as findings instead.
var (
	ErrDirectoryNotFound = errors.New("scan directory not found")
	ErrScanFailure       = errors.New("scan directory enumeration failed")
)

// Candidate is one enumerated artifact awaiting processing.
type Candidate struct {
	Path string
	Info os.FileInfo
}

// Candidates enumerates the scan root and returns the artifacts matching the
// configured extension whose last-modified time passes the age filter, in
// filesystem enumeration order. Ordering is not guaranteed sorted and callers
// must not rely on it for correctness.
func Candidates(cfg *config.Config) ([]Candidate, error) {
	info, err := os.Stat(cfg.ScanRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, cfg.ScanRoot)
		}
		return nil, fmt.Errorf("%w: %v", ErrScanFailure, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, cfg.ScanRoot)
	}

	entries, err := os.ReadDir(cfg.ScanRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScanFailure, err)
	}

	var cutoff time.Time
	if cfg.MaxFileAgeDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -cfg.MaxFileAgeDays)
	}

	var candidates []Candidate
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), cfg.Extension) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			// The file vanished between ReadDir and Info; keep it as a
			// candidate so the failure surfaces as a metadata finding.
			logger.Warnf("Failed to read entry %s: %v", entry.Name(), err)
			candidates = append(candidates, Candidate{Path: filepath.Join(cfg.ScanRoot, entry.Name())})
			continue
		}
		if !cutoff.IsZero() && fi.ModTime().Before(cutoff) {
			logger.Debugf("Skipping %s: older than %d days", entry.Name(), cfg.MaxFileAgeDays)
			continue
		}
		candidates = append(candidates, Candidate{
			Path: filepath.Join(cfg.ScanRoot, entry.Name()),
			Info: fi,
		})
	}
	return candidates, nil
}

// Run executes a full triage pass. The returned result is complete or the
// error is run-fatal; there is no partial result.
func Run(ctx context.Context, cfg *config.Config) (*report.AnalysisResult, error) {
	started := time.Now()

	candidates, err := Candidates(cfg)
	if err != nil {
		return nil, err
	}

	result := report.NewResult(cfg.ScanRoot, cfg.MinTimeToleranceSeconds, cfg.MaxTimeToleranceSeconds)
	result.TotalFiles = len(candidates)

	if len(candidates) == 0 {
		result.NoFilesFound = true
		result.Duration = time.Since(started)
		return result, nil
	}

	bar := newProgressBar(cfg, len(candidates))
	workers := workerCount(cfg)
	logger.Debugf("Processing %d candidates with %d workers", len(candidates), workers)

	var limiter *rate.Limiter
	if cfg.MaxIOPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxIOPerSecond), cfg.MaxIOPerSecond)
	}

	index := hasher.NewIndex()
	outcomes := make([]outcome, len(candidates))

	type task struct {
		pos  int
		cand Candidate
	}
	tasks := make(chan task, workers)

	progressCh := make(chan int, maxInt(workers*4, 64))
	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		for delta := range progressCh {
			_ = bar.Add(delta)
		}
	}()

	go func() {
		defer close(tasks)
		for i, cand := range candidates {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case tasks <- task{pos: i, cand: cand}:
			}
		}
	}()

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				select {
				case <-ctx.Done():
					return
				default:
				}
				outcomes[t.pos] = processFile(t.cand, cfg, index)
				progressCh <- 1
			}
		}()
	}

	wg.Wait()
	close(progressCh)
	progressWG.Wait()
	_ = bar.Finish()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Sequential fold in enumeration order so identical runs produce an
	// identical AnalysisResult regardless of worker interleaving.
	for i := range outcomes {
		result.Append(outcomes[i].findings...)
	}
	result.Append(analyzer.DuplicateFindings(index)...)

	result.Duration = time.Since(started)
	return result, nil
}

func newProgressBar(cfg *config.Config, total int) *progressbar.ProgressBar {
	if cfg.SkipCount {
		return progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Analyzing artifacts"),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetVisibility(progressVisible()),
			progressbar.OptionFullWidth(),
		)
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Analyzing artifacts"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetVisibility(progressVisible()),
		progressbar.OptionFullWidth(),
	)
}

// workerCount derives the pool size from the explicit concurrency flag or the
// nice level. The config itself is never mutated.
func workerCount(cfg *config.Config) int {
	if cfg.ConcurrencySet && cfg.ConcurrencyLevel > 0 {
		return cfg.ConcurrencyLevel
	}
	numCPU := runtime.NumCPU()
	switch cfg.NiceLevel {
	case "high":
		return numCPU
	case "low":
		return 1
	default:
		if numCPU/2 < 1 {
			return 1
		}
		return numCPU / 2
	}
}

func progressVisible() bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv("PFGUARD_DISABLE_PROGRESS")))
	return value != "1" && value != "true" && value != "yes" && value != "on"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
