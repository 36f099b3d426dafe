package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"pfguard/analyzer"
	"pfguard/version"
)

// Render produces the plain-text report. Section order is fixed: header,
// Empty Files, Read-Only Files, Duplicate Hashes, Time Mismatches, then a
// closing No Suspicious Findings section when nothing suspicious was found.
// Empty sections are omitted; populated sections are separated by one blank
// line.
func Render(r *AnalysisResult) string {
	var sections []string

	sections = append(sections, renderHeader(r))

	if s := renderNameSection("Empty Files", r.OfKind(analyzer.KindEmptyFile)); s != "" {
		sections = append(sections, s)
	}
	if s := renderNameSection("Read-Only Files", r.OfKind(analyzer.KindReadOnly)); s != "" {
		sections = append(sections, s)
	}
	if s := renderDuplicateSection(r.OfKind(analyzer.KindDuplicateHash)); s != "" {
		sections = append(sections, s)
	}
	if s := renderMismatchSection(r.OfKind(analyzer.KindTimeMismatch)); s != "" {
		sections = append(sections, s)
	}
	if r.SuspiciousCount() == 0 {
		sections = append(sections, "No Suspicious Findings")
	}

	return strings.Join(sections, "\n\n") + "\n"
}

func renderHeader(r *AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "pfguard %s - Prefetch Triage Report\n", version.Version)
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Run ID: %s\n", r.RunID)
	if r.Host != nil {
		fmt.Fprintf(&b, "Host: %s (%s %s, %s)\n", r.Host.Hostname, r.Host.Platform, r.Host.PlatformVersion, r.Host.KernelArch)
	}
	fmt.Fprintf(&b, "Scan root: %s\n", r.ScanRoot)
	fmt.Fprintf(&b, "Total files scanned: %d\n", r.TotalFiles)
	fmt.Fprintf(&b, "Suspicious files: %d\n", r.SuspiciousCount())
	fmt.Fprintf(&b, "Tolerance window: [%ds, %ds]", r.MinToleranceSeconds, r.MaxToleranceSeconds)
	return b.String()
}

func renderNameSection(title string, findings []analyzer.Finding) string {
	if len(findings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(title)
	for i := range findings {
		for _, name := range findings[i].Subjects {
			fmt.Fprintf(&b, "\n  %s", name)
		}
	}
	return b.String()
}

func renderDuplicateSection(findings []analyzer.Finding) string {
	if len(findings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Duplicate Hashes")
	for i := range findings {
		fmt.Fprintf(&b, "\n  Hash: %s", findings[i].Digest)
		for _, name := range findings[i].Subjects {
			fmt.Fprintf(&b, "\n    %s", name)
		}
	}
	return b.String()
}

func renderMismatchSection(findings []analyzer.Finding) string {
	if len(findings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Time Mismatches")
	for i := range findings {
		fmt.Fprintf(&b, "\n  %s: %s", strings.Join(findings[i].Subjects, ", "), findings[i].Detail)
	}
	return b.String()
}

// Write renders the report and writes it to path.
func Write(r *AnalysisResult, path string) error {
	return os.WriteFile(path, []byte(Render(r)), 0600)
}
