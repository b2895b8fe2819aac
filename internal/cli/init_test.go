package cli

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"budgeteer/internal/config"
	"budgeteer/internal/log"
	"budgeteer/internal/tips"
)

func TestNewTipsGenerator(t *testing.T) {
	logger := log.New(log.Config{Output: io.Discard})

	gen := NewTipsGenerator(&config.Config{}, logger)
	assert.IsType(t, tips.RuleGenerator{}, gen)

	gen = NewTipsGenerator(&config.Config{OpenAIAPIKey: "sk-test", OpenAIModel: "gpt-4o-mini"}, logger)
	fb, ok := gen.(tips.FallbackGenerator)
	if assert.True(t, ok) {
		assert.IsType(t, &tips.OpenAIGenerator{}, fb.Primary)
		assert.IsType(t, tips.RuleGenerator{}, fb.Secondary)
	}
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, log.ComponentWorker)
	assert.Equal(t, log.ComponentWorker, logger.Component())
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestGracefulShutdownOnParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cleaned := make(chan struct{})
	ctx, done := GracefulShutdown(parent, log.New(log.Config{Output: io.Discard}), time.Second, func(context.Context) {
		close(cleaned)
	})

	cancel()
	WaitForShutdown(ctx, done)

	select {
	case <-cleaned:
	default:
		t.Fatal("cleanup did not run")
	}
}

func TestNewArchiveExporterDisabled(t *testing.T) {
	exp, err := NewArchiveExporter(context.Background(), &config.Config{}, log.New(log.Config{Output: io.Discard}))
	assert.NoError(t, err)
	assert.Nil(t, exp)
}
