package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-nsprov/logging"
)

func newBufferedHandler(t *testing.T, specStr string) (slog.Handler, *bytes.Buffer) {
	t.Helper()
	spec, err := logging.ParseSpec(specStr)
	require.NoError(t, err)
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: logging.LevelTrace})
	return logging.NewHandler(inner, spec), &buf
}

func TestHandler_ComponentLevels(t *testing.T) {
	handler, _ := newBufferedHandler(t, "warn,hostnet=debug,store=trace")
	ctx := context.Background()

	assert.False(t, handler.Enabled(ctx, slog.LevelInfo), "base level is warn")
	assert.True(t, handler.Enabled(ctx, slog.LevelWarn))

	hostnet := handler.WithAttrs([]slog.Attr{slog.String("component", "hostnet")})
	assert.True(t, hostnet.Enabled(ctx, slog.LevelDebug))
	assert.False(t, hostnet.Enabled(ctx, logging.LevelTrace))

	store := handler.WithAttrs([]slog.Attr{slog.String("component", "store")})
	assert.True(t, store.Enabled(ctx, logging.LevelTrace))

	assert.False(t, handler.Enabled(ctx, slog.LevelInfo), "parent handler is unchanged")
}

func TestHandler_HandleDropsFilteredRecords(t *testing.T) {
	handler, buf := newBufferedHandler(t, "warn,manager=debug")
	ctx := context.Background()

	require.NoError(t, handler.Handle(ctx, slog.NewRecord(time.Now(), slog.LevelDebug, "dropped", 0)))
	assert.Empty(t, buf.String())

	manager := handler.WithAttrs([]slog.Attr{slog.String("component", "manager")})
	require.NoError(t, manager.Handle(ctx, slog.NewRecord(time.Now(), slog.LevelDebug, "kept", 0)))
	assert.Contains(t, buf.String(), "kept")
}

func TestHandler_WithGroupKeepsComponent(t *testing.T) {
	handler, _ := newBufferedHandler(t, "info,agent=debug")

	grouped := handler.WithAttrs([]slog.Attr{slog.String("component", "agent")}).WithGroup("probe")
	assert.True(t, grouped.Enabled(context.Background(), slog.LevelDebug))
}

func TestNew_Precedence(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{
		CLISpec:    "debug",
		EnvSpec:    "error",
		ConfigSpec: "error",
		Output:     &buf,
	})
	require.NoError(t, err)

	logger.Debug("cli spec wins")
	assert.Contains(t, buf.String(), "cli spec wins")

	buf.Reset()
	logger, err = logging.New(logging.Options{EnvSpec: "error", ConfigSpec: "debug", Output: &buf})
	require.NoError(t, err)
	logger.Info("suppressed by env spec")
	assert.Empty(t, buf.String())
}

func TestNew_TraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{CLISpec: "trace", Output: &buf})
	require.NoError(t, err)

	logger.Log(context.Background(), logging.LevelTrace, "sql")
	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: logging.FormatJSON, Output: &buf})
	require.NoError(t, err)

	logger.With("component", "cli").Info("hello", "ns", "testns")
	assert.Contains(t, buf.String(), `"component":"cli"`)
	assert.Contains(t, buf.String(), `"ns":"testns"`)
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := logging.New(logging.Options{CLISpec: "loud"})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := logging.ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, logging.FormatJSON, f)

	f, err = logging.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, logging.FormatText, f)

	_, err = logging.ParseFormat("logfmt")
	assert.Error(t, err)
}
