package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/CollaboraOnline/online-sub004/logger"
)

func TestLoggerWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	l := logger.New(buf, logger.InfoLevel)

	derived := l.WithFields(logger.Fields{"docKey": "file:///t/hello.odt"})
	derived.Info("worker loaded", logger.Fields{"pid": 1234})

	out := buf.String()
	if !strings.Contains(out, "docKey") || !strings.Contains(out, "pid") {
		t.Fatalf("expected derived fields in output, got: %s", out)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	l := logger.New(buf, logger.WarnLevel)

	l.Debug("should not appear", nil)
	l.Info("should not appear either", nil)
	l.Warn("this should appear", nil)

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("level filtering failed, got: %s", out)
	}
	if !strings.Contains(out, "this should appear") {
		t.Fatalf("expected warn entry, got: %s", out)
	}
}
