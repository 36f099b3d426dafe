package scanner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"pfguard/analyzer"
	"pfguard/config"
	"pfguard/logger"
)

func init() {
	logger.Init("error")
}

func testConfig(root string) *config.Config {
	cfg := config.Defaults()
	cfg.ScanRoot = root
	cfg.CollectSystemInfo = false
	return cfg
}

func write(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCandidatesFiltersExtension(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "APP.EXE-11111111.pf", []byte("a"))
	write(t, dir, "UPPER.EXE-22222222.PF", []byte("b"))
	write(t, dir, "readme.txt", []byte("c"))
	if err := os.Mkdir(filepath.Join(dir, "sub.pf"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	candidates, err := Candidates(testConfig(dir))
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
}

func TestCandidatesAgeFilter(t *testing.T) {
	dir := t.TempDir()
	old := write(t, dir, "OLD.EXE-00000000.pf", []byte("old"))
	write(t, dir, "NEW.EXE-00000001.pf", []byte("new"))

	stale := time.Now().AddDate(0, 0, -400)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	cfg := testConfig(dir)
	cfg.MaxFileAgeDays = 365
	candidates, err := Candidates(cfg)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 1 || filepath.Base(candidates[0].Path) != "NEW.EXE-00000001.pf" {
		t.Fatalf("age filter failed: %+v", candidates)
	}

	cfg.MaxFileAgeDays = 0
	candidates, err = Candidates(cfg)
	if err != nil || len(candidates) != 2 {
		t.Fatalf("disabled age filter: %v, %d candidates", err, len(candidates))
	}
}

func TestCandidatesDirectoryNotFound(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing"))
	_, err := Candidates(cfg)
	if !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
	}
}

func TestCandidatesRootIsFile(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "not-a-dir.pf", []byte("x"))
	_, err := Candidates(testConfig(path))
	if !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
	}
}

func TestRunEmptyDirectory(t *testing.T) {
	t.Setenv("PFGUARD_DISABLE_PROGRESS", "1")
	result, err := Run(context.Background(), testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.NoFilesFound {
		t.Error("expected NoFilesFound")
	}
	if result.TotalFiles != 0 || len(result.Findings) != 0 || result.SuspiciousCount() != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestRunMissingDirectoryProducesNoResult(t *testing.T) {
	t.Setenv("PFGUARD_DISABLE_PROGRESS", "1")
	result, err := Run(context.Background(), testConfig(filepath.Join(t.TempDir(), "gone")))
	if !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
	}
	if result != nil {
		t.Error("no partial result on run-fatal failure")
	}
}

func TestRunTriageScenario(t *testing.T) {
	t.Setenv("PFGUARD_DISABLE_PROGRESS", "1")
	dir := t.TempDir()

	write(t, dir, "A.EXE-AAAAAAAA.pf", nil)
	payload := bytes.Repeat([]byte{0x5c}, 4096)
	write(t, dir, "B.EXE-BBBBBBBB.pf", payload)
	write(t, dir, "C.EXE-CCCCCCCC.pf", payload)
	d := write(t, dir, "D.EXE-DDDDDDDD.pf", bytes.Repeat([]byte{0x01}, 2048))
	if err := os.Chmod(d, 0444); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	result, err := Run(context.Background(), testConfig(dir))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TotalFiles != 4 {
		t.Errorf("total files: %d", result.TotalFiles)
	}

	empty := result.OfKind(analyzer.KindEmptyFile)
	if len(empty) != 1 || empty[0].Subjects[0] != "A.EXE-AAAAAAAA.pf" {
		t.Errorf("empty findings: %+v", empty)
	}
	readOnly := result.OfKind(analyzer.KindReadOnly)
	if len(readOnly) != 1 || readOnly[0].Subjects[0] != "D.EXE-DDDDDDDD.pf" {
		t.Errorf("read-only findings: %+v", readOnly)
	}
	dups := result.OfKind(analyzer.KindDuplicateHash)
	if len(dups) != 1 {
		t.Fatalf("expected one duplicate group, got %d", len(dups))
	}
	wantGroup := []string{"B.EXE-BBBBBBBB.pf", "C.EXE-CCCCCCCC.pf"}
	if diff := cmp.Diff(wantGroup, dups[0].Subjects); diff != "" {
		t.Errorf("duplicate group mismatch (-want +got):\n%s", diff)
	}
	if got := result.SuspiciousCount(); got != 4 {
		t.Errorf("suspicious count: %d, want 4 (A, B, C, D)", got)
	}
}

func TestRunTimeMismatch(t *testing.T) {
	t.Setenv("PFGUARD_DISABLE_PROGRESS", "1")
	dir := t.TempDir()
	path := write(t, dir, "E.EXE-EEEEEEEE.pf", []byte("payload"))

	accessed := time.Now().Add(-time.Hour).Truncate(time.Second)
	modified := accessed.Add(37 * time.Second)
	if err := os.Chtimes(path, accessed, modified); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result, err := Run(context.Background(), testConfig(dir))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	mismatches := result.OfKind(analyzer.KindTimeMismatch)
	if len(mismatches) != 1 {
		t.Fatalf("expected one time mismatch, got %d", len(mismatches))
	}
	if !strings.Contains(mismatches[0].Detail, "delta=37s") {
		t.Errorf("detail should carry the delta: %s", mismatches[0].Detail)
	}
}

func TestRunTimeMismatchOutsideBand(t *testing.T) {
	t.Setenv("PFGUARD_DISABLE_PROGRESS", "1")
	dir := t.TempDir()
	path := write(t, dir, "F.EXE-FFFFFFFF.pf", []byte("payload"))

	accessed := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(path, accessed, accessed.Add(46*time.Second)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result, err := Run(context.Background(), testConfig(dir))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := result.OfKind(analyzer.KindTimeMismatch); len(got) != 0 {
		t.Errorf("delta above the band must not be flagged: %+v", got)
	}
}

func TestRunDeterministic(t *testing.T) {
	t.Setenv("PFGUARD_DISABLE_PROGRESS", "1")
	dir := t.TempDir()
	payload := bytes.Repeat([]byte{0xab}, 1024)
	write(t, dir, "A.EXE-AAAAAAAA.pf", nil)
	write(t, dir, "B.EXE-BBBBBBBB.pf", payload)
	write(t, dir, "C.EXE-CCCCCCCC.pf", payload)

	cfg := testConfig(dir)
	first, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if diff := cmp.Diff(first.Findings, second.Findings); diff != "" {
		t.Errorf("findings differ across identical runs (-first +second):\n%s", diff)
	}
	if first.SuspiciousCount() != second.SuspiciousCount() {
		t.Errorf("suspicious counts differ: %d != %d", first.SuspiciousCount(), second.SuspiciousCount())
	}
}

func TestRunCancelled(t *testing.T) {
	t.Setenv("PFGUARD_DISABLE_PROGRESS", "1")
	dir := t.TempDir()
	for _, name := range []string{"A.pf", "B.pf", "C.pf"} {
		write(t, dir, name, []byte("x"))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, testConfig(dir)); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestWorkerCount(t *testing.T) {
	cfg := config.Defaults()
	cfg.NiceLevel = "low"
	if got := workerCount(cfg); got != 1 {
		t.Errorf("low: %d", got)
	}
	cfg.ConcurrencySet = true
	cfg.ConcurrencyLevel = 7
	if got := workerCount(cfg); got != 7 {
		t.Errorf("explicit: %d", got)
	}
}
