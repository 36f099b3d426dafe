package analyzer

// Kind identifies one detection rule or per-file failure class.
type Kind string

const (
	KindEmptyFile     Kind = "empty_file"
	KindReadOnly      Kind = "read_only"
	KindDuplicateHash Kind = "duplicate_hash"
	KindTimeMismatch  Kind = "time_mismatch"
	KindHashError     Kind = "hash_error"
	KindMetadataError Kind = "metadata_error"
)

// IsError reports whether the kind records a per-file processing failure
// rather than a tampering signal. Error kinds never count toward suspicion.
func (k Kind) IsError() bool {
	return k == KindHashError || k == KindMetadataError
}

// Severity is ordered: higher values are more severe.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	case SeverityLow:
		return "low"
	default:
		return "info"
	}
}

// Finding is one detected condition on a file or file group. Findings are
// append-only and never deduplicated; a single file may carry several.
type Finding struct {
	Kind     Kind
	Severity Severity
	// Subjects holds the file name(s) the finding applies to. Single entry
	// except for duplicate-hash findings, which reference the whole group.
	Subjects []string
	// Digest is set for duplicate-hash findings only.
	Digest string
	Detail string
}

// Suspicious reports whether the finding counts a file as suspicious.
func (f *Finding) Suspicious() bool {
	return !f.Kind.IsError() && f.Severity > SeverityInfo
}
