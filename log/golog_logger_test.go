package log

import (
	"bytes"
	"testing"

	"github.com/kataras/golog"
	"github.com/stretchr/testify/assert"
)

func TestNewGologLogger(t *testing.T) {
	logger := NewGologLogger(golog.New())

	assert.NotNil(t, logger)
	assert.Equal(t, LogLevelInfo, logger.GetLevel())
}

func TestNewGologLoggerNilUsesDefault(t *testing.T) {
	logger := NewGologLogger(nil)
	assert.NotNil(t, logger)
}

func TestGologLogger_LevelControl(t *testing.T) {
	logger := NewGologLogger(golog.New())

	logger.SetLevel(LogLevelDebug)
	assert.Equal(t, LogLevelDebug, logger.GetLevel())

	logger.SetLevel(LogLevelError)
	assert.Equal(t, LogLevelError, logger.GetLevel())

	logger.SetLevel(LogLevelNone)
	assert.Equal(t, LogLevelNone, logger.GetLevel())
}

func TestGologLogger_FormatsMessages(t *testing.T) {
	var buf bytes.Buffer
	glogger := golog.New()
	glogger.SetOutput(&buf)
	glogger.SetTimeFormat("")

	logger := NewGologLogger(glogger)
	logger.SetLevel(LogLevelDebug)

	logger.Info("node %s finished in %d steps", "agent", 3)
	assert.Contains(t, buf.String(), "node agent finished in 3 steps")
}

func TestGologLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	glogger := golog.New()
	glogger.SetOutput(&buf)

	logger := NewGologLogger(glogger)
	logger.SetLevel(LogLevelError)

	logger.Debug("filtered debug")
	logger.Info("filtered info")
	logger.Warn("filtered warn")
	assert.Empty(t, buf.String())

	logger.Error("kept %s", "error")
	assert.Contains(t, buf.String(), "kept error")
}

func TestNewGologLoggerAt(t *testing.T) {
	logger := NewGologLoggerAt("[graph] ", LogLevelWarn)
	assert.Equal(t, LogLevelWarn, logger.GetLevel())
}
