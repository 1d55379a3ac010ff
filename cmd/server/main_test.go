package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumeno-study/lumeno/internal/configuration"
	"github.com/lumeno-study/lumeno/internal/upload"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    slog.Level
		wantErr bool
	}{
		{name: "default info", raw: "", want: slog.LevelInfo},
		{name: "debug", raw: "debug", want: slog.LevelDebug},
		{name: "warning alias", raw: "warning", want: slog.LevelWarn},
		{name: "error", raw: "ERROR", want: slog.LevelError},
		{name: "numeric", raw: "-4", want: slog.LevelDebug},
		{name: "invalid", raw: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"", "text", "JSON"} {
		_, err := newLogger(slog.LevelInfo, format)
		assert.NoError(t, err, format)
	}
	_, err := newLogger(slog.LevelInfo, "xml")
	assert.Error(t, err)
}

func TestRootCommandTree(t *testing.T) {
	cfg := configuration.Default()
	root := newRootCmd(&cfg)

	for _, name := range []string{"serve", "login", "logout", "whoami", "upload"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestUploadRequiresOneFile(t *testing.T) {
	cfg := configuration.Default()
	root := newRootCmd(&cfg)
	root.SetArgs([]string{"upload"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	assert.Error(t, root.Execute())
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	report := progressPrinter(&buf)

	report(upload.JobState{Phase: upload.PhaseValidating, FileName: "a.pdf"})
	report(upload.JobState{Phase: upload.PhaseTransferring, FileName: "a.pdf", Percent: 0})
	report(upload.JobState{Phase: upload.PhaseTransferring, FileName: "a.pdf", Percent: 0.4})
	report(upload.JobState{Phase: upload.PhaseTransferring, FileName: "a.pdf", Percent: 50.2})
	report(upload.JobState{Phase: upload.PhaseTransferring, FileName: "a.pdf", Percent: 100})
	report(upload.JobState{Phase: upload.PhaseSucceeded, FileName: "a.pdf", Message: upload.MessageSuccess})

	assert.Equal(t, "Uploading a.pdf: 0%\nUploading a.pdf: 50%\nUploading a.pdf: 100%\n", buf.String())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ada", displayName("Ada", "ada@example.com"))
	assert.Equal(t, "ada@example.com", displayName("", "ada@example.com"))
}
