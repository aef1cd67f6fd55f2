package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// logFileName is the file created under the configured log directory.
const logFileName = "robobag.log"

// timestampLayout includes microseconds so message bursts stay ordered.
const timestampLayout = "2006/01/02 15:04:05.000000"

var _ Logger = (*logrusAdapter)(nil)

// logrusAdapter backs the Logger interface with a logrus entry.
type logrusAdapter struct {
	entry *logrus.Entry
}

// NewLogrusLogger builds a logger writing to stdout, and additionally to
// logDir/robobag.log when logDir is non-empty. An unknown logLevel falls
// back to info rather than failing startup.
func NewLogrusLogger(logLevel string, logDir string) (Logger, error) {
	l := logrus.New()
	l.SetFormatter(&CompactFormatter{TimestampFormat: timestampLayout})

	if level, err := logrus.ParseLevel(logLevel); err == nil {
		l.SetLevel(level)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}

	var out io.Writer = os.Stdout
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory '%s': %w", logDir, err)
		}
		logFilePath := filepath.Join(logDir, logFileName)
		logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file '%s': %w", logFilePath, err)
		}
		out = io.MultiWriter(out, logFile)
	}
	l.SetOutput(out)

	return &logrusAdapter{entry: logrus.NewEntry(l)}, nil
}

func (l *logrusAdapter) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *logrusAdapter) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *logrusAdapter) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *logrusAdapter) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *logrusAdapter) Fatalf(format string, args ...interface{}) {
	l.entry.Fatalf(format, args...)
}

// CompactFormatter renders one line per entry in the shape of the
// standard log package, with a three-letter level tag:
//
//	2026/04/06 17:30:00.123456 [INF] message key=value
type CompactFormatter struct {
	TimestampFormat string
}

// Format implements logrus.Formatter.
func (f *CompactFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	layout := f.TimestampFormat
	if layout == "" {
		layout = timestampLayout
	}

	fmt.Fprintf(b, "%s [%s] %s", entry.Time.Format(layout), levelTag(entry.Level), entry.Message)

	// Structured fields go last, in key order so output is stable.
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// levelTag shortens a logrus level name to three letters, so "warning"
// becomes WAR and "info" becomes INF.
func levelTag(level logrus.Level) string {
	tag := strings.ToUpper(level.String())
	if len(tag) > 3 {
		tag = tag[:3]
	}
	return tag
}
