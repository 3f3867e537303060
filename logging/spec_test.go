package logging_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-nsprov/logging"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		in      string
		base    slog.Level
		comps   map[string]slog.Level
		wantErr bool
	}{
		{in: "", base: slog.LevelInfo, comps: map[string]slog.Level{}},
		{in: "debug", base: slog.LevelDebug, comps: map[string]slog.Level{}},
		{
			in:    "warn,hostnet=debug,store=trace",
			base:  slog.LevelWarn,
			comps: map[string]slog.Level{"hostnet": slog.LevelDebug, "store": logging.LevelTrace},
		},
		{in: "hostnet=debug", base: slog.LevelInfo, comps: map[string]slog.Level{"hostnet": slog.LevelDebug}},
		{in: "hostnet=debug,warn", wantErr: true},
		{in: "=debug", wantErr: true},
		{in: "info,store=chatty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			spec, err := logging.ParseSpec(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.base, spec.Base)
			assert.Equal(t, tt.comps, spec.Components)
		})
	}
}

func TestSpec_Level(t *testing.T) {
	spec, err := logging.ParseSpec("error,manager=debug")
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, spec.Level("manager"))
	assert.Equal(t, slog.LevelError, spec.Level("cfgtree"))
}

func TestSpec_String(t *testing.T) {
	spec, err := logging.ParseSpec("warn,store=trace,hostnet=debug")
	require.NoError(t, err)
	assert.Equal(t, "warn,hostnet=debug,store=trace", spec.String())
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"trace": logging.LevelTrace,
		"DEBUG": slog.LevelDebug,
		" info": slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"err":   slog.LevelError,
	} {
		got, err := logging.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := logging.ParseLevel("verbose")
	assert.Error(t, err)
}
