package report

import (
	"time"

	"github.com/google/uuid"

	"pfguard/analyzer"
	"pfguard/systeminfo"
)

// AnalysisResult is the terminal aggregate of one run. It is handed as-is to
// the presentation and export layers and discarded afterwards; no state
// survives between invocations.
type AnalysisResult struct {
	RunID               string
	GeneratedAt         time.Time
	ScanRoot            string
	Host                *systeminfo.Info
	TotalFiles          int
	NoFilesFound        bool
	MinToleranceSeconds int
	MaxToleranceSeconds int
	Findings            []analyzer.Finding
	Duration            time.Duration
}

func NewResult(scanRoot string, minTolerance, maxTolerance int) *AnalysisResult {
	return &AnalysisResult{
		RunID:               uuid.NewString(),
		GeneratedAt:         time.Now().UTC(),
		ScanRoot:            scanRoot,
		MinToleranceSeconds: minTolerance,
		MaxToleranceSeconds: maxTolerance,
	}
}

func (r *AnalysisResult) Append(findings ...analyzer.Finding) {
	r.Findings = append(r.Findings, findings...)
}

// SuspiciousCount is the number of distinct files carrying at least one
// non-error finding. Error findings (hash/metadata failures) are tracked in
// Findings but never count toward suspicion.
func (r *AnalysisResult) SuspiciousCount() int {
	seen := make(map[string]struct{})
	for i := range r.Findings {
		f := &r.Findings[i]
		if !f.Suspicious() {
			continue
		}
		for _, name := range f.Subjects {
			seen[name] = struct{}{}
		}
	}
	return len(seen)
}

// ErrorCount is the number of per-file processing failures absorbed into the
// run.
func (r *AnalysisResult) ErrorCount() int {
	var n int
	for i := range r.Findings {
		if r.Findings[i].Kind.IsError() {
			n++
		}
	}
	return n
}

// OfKind returns the findings of one kind in report order.
func (r *AnalysisResult) OfKind(kind analyzer.Kind) []analyzer.Finding {
	var out []analyzer.Finding
	for i := range r.Findings {
		if r.Findings[i].Kind == kind {
			out = append(out, r.Findings[i])
		}
	}
	return out
}
