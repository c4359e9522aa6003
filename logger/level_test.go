package logger_test

import (
	"testing"

	"github.com/CollaboraOnline/online-sub004/logger"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]logger.Level{
		"debug":   logger.DebugLevel,
		"WARN":    logger.WarnLevel,
		"warning": logger.WarnLevel,
		"error":   logger.ErrorLevel,
		"":        logger.InfoLevel,
		"bogus":   logger.InfoLevel,
	}

	for in, want := range cases {
		if got := logger.Parse(in); got != want {
			t.Errorf("Parse(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelString(t *testing.T) {
	if logger.ErrorLevel.String() != "error" {
		t.Errorf("unexpected level string: %s", logger.ErrorLevel.String())
	}
}
