package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}

	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestWrapper_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"component": "audit"})

	log.Error("side effect failed", map[string]interface{}{
		"error":    errors.New("redis down"),
		"provider": "hubspot",
	})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "audit", ctx["component"])
		assert.Equal(t, "hubspot", ctx["provider"])
		assert.Equal(t, "redis down", ctx["error"])
	}
}

func TestWithError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	NewZapAdapter(zap.New(core)).WithError(errors.New("boom")).Info("x", nil)

	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestNew_BadOutputFallsBack(t *testing.T) {
	l := New("info", "json", "/nonexistent-dir/leak-audit.log")
	assert.NotNil(t, l)
}
