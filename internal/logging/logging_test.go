package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewVerbose(t *testing.T) {
	logger := New(true)
	if logger == nil {
		t.Fatal("Expected a logger")
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected verbose logger to enable debug level")
	}
}

func TestNewQuiet(t *testing.T) {
	logger := New(false)
	if logger == nil {
		t.Fatal("Expected a logger")
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("Expected quiet logger to suppress info level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("Expected quiet logger to keep warnings")
	}
}
