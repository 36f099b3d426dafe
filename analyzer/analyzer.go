// Package analyzer applies the tamper heuristics to extracted file records.
// Each check is independent and yields zero or one finding per file; one
// file's outcome never affects another's.
package analyzer

import (
	"fmt"
	"time"

	"pfguard/hasher"
	"pfguard/metadata"
)

// Evaluate runs the per-file checks against rec. An empty file is a conclusive
// signal: content is unrecoverable, so the remaining checks are skipped for it.
// min and max bound the inclusive modified/accessed mismatch window.
func Evaluate(rec *metadata.FileRecord, min, max time.Duration) []Finding {
	if rec.Size == 0 {
		return []Finding{{
			Kind:     KindEmptyFile,
			Severity: SeverityCritical,
			Subjects: []string{rec.Name},
			Detail:   "zero-byte artifact; execution history is unrecoverable",
		}}
	}

	var findings []Finding

	if rec.ReadOnly {
		findings = append(findings, Finding{
			Kind:     KindReadOnly,
			Severity: SeverityHigh,
			Subjects: []string{rec.Name},
			Detail:   "read-only attribute set on an OS-managed artifact",
		})
	}

	// Deltas outside the band, including very large ones, are deliberately
	// not flagged; the band targets a specific manipulation signature.
	delta := rec.TimeDelta()
	if delta >= min && delta <= max {
		findings = append(findings, Finding{
			Kind:     KindTimeMismatch,
			Severity: SeverityLow,
			Subjects: []string{rec.Name},
			Detail: fmt.Sprintf("modified=%s accessed=%s delta=%s",
				rec.Modified.Format(time.RFC3339),
				rec.Accessed.Format(time.RFC3339),
				formatDelta(delta)),
		})
	}

	return findings
}

// DuplicateFindings emits exactly one finding per digest group with two or
// more members. A file that only matches itself is never flagged.
func DuplicateFindings(ix *hasher.Index) []Finding {
	groups := ix.DuplicateGroups()
	findings := make([]Finding, 0, len(groups))
	for _, g := range groups {
		findings = append(findings, Finding{
			Kind:     KindDuplicateHash,
			Severity: SeverityMedium,
			Subjects: g.Files,
			Digest:   g.Digest,
			Detail:   fmt.Sprintf("%d files share content digest %s", len(g.Files), g.Digest),
		})
	}
	return findings
}

// NewMetadataError records a non-fatal stat failure for one file.
func NewMetadataError(name string, err error) Finding {
	return Finding{
		Kind:     KindMetadataError,
		Severity: SeverityMedium,
		Subjects: []string{name},
		Detail:   fmt.Sprintf("metadata read failed: %v", err),
	}
}

// NewHashError records a non-fatal digest failure for one file.
func NewHashError(name string, err error) Finding {
	return Finding{
		Kind:     KindHashError,
		Severity: SeverityMedium,
		Subjects: []string{name},
		Detail:   fmt.Sprintf("content hashing failed: %v", err),
	}
}

func formatDelta(d time.Duration) string {
	if d == d.Truncate(time.Second) {
		return fmt.Sprintf("%ds", int64(d/time.Second))
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
