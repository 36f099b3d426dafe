package scanner

import (
	"path/filepath"
	"time"

	"pfguard/analyzer"
	"pfguard/config"
	"pfguard/hasher"
	"pfguard/logger"
	"pfguard/metadata"
)

// outcome carries everything one file contributed to the run. Outcomes are
// written into a position-indexed slice, never shared between workers.
type outcome struct {
	findings []analyzer.Finding
}

// processFile runs the per-file pipeline: metadata extraction, heuristic
// checks, then content hashing. A metadata failure degrades the file to a
// single error finding; a hash failure keeps the heuristic findings and adds
// an error finding. Neither aborts the run.
func processFile(cand Candidate, cfg *config.Config, index *hasher.Index) outcome {
	started := time.Now()
	name := filepath.Base(cand.Path)

	rec, err := metadata.Extract(cand.Path, cand.Info)
	if err != nil {
		logger.Warnf("Failed to read metadata for %s: %v", cand.Path, err)
		return outcome{findings: []analyzer.Finding{analyzer.NewMetadataError(name, err)}}
	}

	min, max := cfg.ToleranceWindow()
	findings := analyzer.Evaluate(rec, min, max)

	// Hashing an empty file is meaningless; the empty-file finding already
	// covers it and the file never joins a digest group.
	if rec.Size > 0 {
		digest, err := hasher.Digest(cand.Path, hasher.Options{
			Algorithm:   cfg.HashAlgorithm,
			ReadMode:    cfg.ReadMode,
			MmapMinSize: cfg.MmapMinSize,
		})
		if err != nil {
			logger.Warnf("Failed to hash %s: %v", cand.Path, err)
			findings = append(findings, analyzer.NewHashError(rec.Name, err))
		} else {
			rec.Digest = digest
			index.Insert(digest, rec.Name)
		}
	}

	if cfg.SlowFileThreshold > 0 {
		if elapsed := time.Since(started); elapsed > cfg.SlowFileThreshold {
			logger.Warnf("Slow file: %s took %s", cand.Path, elapsed)
		}
	}

	return outcome{findings: findings}
}
