package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInitParsesLevel(t *testing.T) {
	Init("debug")
	if log == nil {
		t.Fatal("log not initialized")
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %s, want debug", log.GetLevel())
	}
}

func TestInitFallsBackToInfo(t *testing.T) {
	Init("chatty")
	if log.GetLevel() != logrus.InfoLevel {
		t.Errorf("unknown level must fall back to info, got %s", log.GetLevel())
	}
}

func TestHelpersWriteThrough(t *testing.T) {
	Init("debug")
	var buf bytes.Buffer
	log.SetOutput(&buf)
	// Avoid os.Exit on Fatal
	log.ExitFunc = func(int) {}

	Debug("enumeration started")
	Info("candidate accepted")
	Warn("slow file")
	Error("hash failed")
	Debugf("dispatched %d tasks", 4)
	Infof("processed %d artifacts", 3)
	Warnf("skipping %s", "NOTEPAD.EXE-D8414F97.pf")
	Errorf("stat failed: %s", "permission denied")
	Fatal("giving up")
	Fatalf("%s", "giving up")

	out := buf.String()
	for _, want := range []string{
		"candidate accepted",
		"processed 3 artifacts",
		"NOTEPAD.EXE-D8414F97.pf",
		"permission denied",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
