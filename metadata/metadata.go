package metadata

import (
	"os"
	"path/filepath"
	"time"

	"github.com/djherbis/times"
)

// FileRecord holds the filesystem metadata of one artifact, read once at scan
// time. Records are never mutated after extraction.
type FileRecord struct {
	Name       string
	FullPath   string
	Size       int64
	Created    time.Time
	Modified   time.Time
	Accessed   time.Time
	HasCreated bool
	ReadOnly   bool
	Digest     string
}

// Extract builds a FileRecord for path. The caller supplies the os.FileInfo
// obtained during enumeration so the file is stat'ed at most twice even when
// it disappears mid-scan.
func Extract(path string, info os.FileInfo) (*FileRecord, error) {
	if info == nil {
		var err error
		info, err = os.Stat(path)
		if err != nil {
			return nil, err
		}
	}

	rec := &FileRecord{
		Name:     filepath.Base(path),
		FullPath: path,
		Size:     info.Size(),
		Modified: info.ModTime(),
		Accessed: info.ModTime(),
		ReadOnly: isReadOnly(path, info),
	}

	ts, err := times.Stat(path)
	if err != nil {
		return nil, err
	}
	rec.Accessed = ts.AccessTime()
	if ts.HasBirthTime() {
		rec.Created = ts.BirthTime()
		rec.HasCreated = true
	}

	return rec, nil
}

// TimeDelta is the absolute distance between the modified and accessed
// timestamps, the quantity the mismatch heuristic operates on.
func (r *FileRecord) TimeDelta() time.Duration {
	d := r.Modified.Sub(r.Accessed)
	if d < 0 {
		d = -d
	}
	return d
}
