package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestCompactFormatterLine(t *testing.T) {
	entry := &logrus.Entry{
		Time:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "broker unreachable",
		Data:    logrus.Fields{"b": 2, "a": 1},
	}

	out, err := (&CompactFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	line := string(out)
	want := "2026/01/02 03:04:05.000000 [WAR] broker unreachable a=1 b=2\n"
	if line != want {
		t.Errorf("Formatted line mismatch:\n got %q\nwant %q", line, want)
	}
}

func TestLevelTag(t *testing.T) {
	cases := []struct {
		level logrus.Level
		tag   string
	}{
		{logrus.DebugLevel, "DEB"},
		{logrus.InfoLevel, "INF"},
		{logrus.WarnLevel, "WAR"},
		{logrus.ErrorLevel, "ERR"},
	}
	for _, c := range cases {
		if got := levelTag(c.level); got != c.tag {
			t.Errorf("levelTag(%v) = %q, expected %q", c.level, got, c.tag)
		}
	}
}

func TestNewLogrusLoggerWritesLogFile(t *testing.T) {
	logDir := t.TempDir()

	logger, err := NewLogrusLogger("debug", logDir)
	if err != nil {
		t.Fatalf("NewLogrusLogger failed: %v", err)
	}
	logger.Infof("listener started on %s:%d", "localhost", 1883)

	content, err := os.ReadFile(filepath.Join(logDir, logFileName))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(content), "[INF] listener started on localhost:1883") {
		t.Errorf("Log file missing expected line, got: %q", content)
	}
}

func TestNewLogrusLoggerBadLevelFallsBack(t *testing.T) {
	// An unknown level must not fail startup.
	if _, err := NewLogrusLogger("chatty", ""); err != nil {
		t.Errorf("Expected fallback to info level, got error: %v", err)
	}
}
