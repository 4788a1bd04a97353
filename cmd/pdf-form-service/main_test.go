package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/a3tai/pdf-form-service/internal/config"
	"github.com/a3tai/pdf-form-service/internal/pdf"
)

const testVersion = "1.2.3"

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	originalStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = originalStdout }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
		w.Close()
	}()

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	<-done
	return buf.String()
}

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	defer func() {
		version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit
	}()

	version = testVersion
	buildTime = "2023-12-01_10:30:00"
	gitCommit = "abc123"

	output := captureStdout(t, printVersion)

	for _, expected := range []string{
		"PDF Form Service",
		"Version: " + testVersion,
		"Build Time: 2023-12-01_10:30:00",
		"Git Commit: abc123",
		"Built with:",
	} {
		if !strings.Contains(output, expected) {
			t.Errorf("printVersion() output missing expected string: %s\nActual output:\n%s", expected, output)
		}
	}
}

func TestSetupLogging(t *testing.T) {
	originalOutput := log.Writer()
	originalFlags := log.Flags()
	defer func() {
		log.SetOutput(originalOutput)
		log.SetFlags(originalFlags)
	}()

	t.Run("stdio debug logs to stderr", func(t *testing.T) {
		setupLogging(&config.Config{Mode: config.ModeStdio, LogLevel: "debug"})
		assert.Equal(t, os.Stderr, log.Writer())
	})

	t.Run("stdio without debug discards logs", func(t *testing.T) {
		setupLogging(&config.Config{Mode: config.ModeStdio, LogLevel: "info"})
		assert.Equal(t, io.Discard, log.Writer())
	})

	t.Run("server mode adds file and line", func(t *testing.T) {
		setupLogging(&config.Config{Mode: config.ModeServer, LogLevel: "info"})
		assert.Equal(t, log.LstdFlags|log.Lshortfile, log.Flags())
	})
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		enabled zapcore.Level
		nop     bool
	}{
		{"stdio discards", &config.Config{Mode: config.ModeStdio, LogLevel: "info"}, zapcore.InfoLevel, true},
		{"stdio debug", &config.Config{Mode: config.ModeStdio, LogLevel: "debug"}, zapcore.DebugLevel, false},
		{"server", &config.Config{Mode: config.ModeServer, LogLevel: "info"}, zapcore.InfoLevel, false},
		{"server debug", &config.Config{Mode: config.ModeServer, LogLevel: "debug"}, zapcore.DebugLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := newLogger(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, !tt.nop, logger.Core().Enabled(tt.enabled))
		})
	}

	logger, err := newLogger(&config.Config{Mode: config.ModeServer, LogLevel: "info"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel), "production logger skips debug entries")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.StorageDirectory = filepath.Join(t.TempDir(), "uploads")
	cfg.SourceDirectory = t.TempDir()
	return cfg
}

func TestNewService(t *testing.T) {
	cfg := testConfig(t)

	service, scheduler, err := newService(cfg, zap.NewNop())
	require.NoError(t, err)
	defer scheduler.Close()

	assert.DirExists(t, cfg.StorageDirectory, "storage directory is created at startup")
	assert.Equal(t, pdf.StrategyForm, service.DefaultStrategy())
	assert.Equal(t, cfg.MaxFileSize, service.GetMaxFileSize())
}

func TestNewService_StampLayout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Strategy = "stamp"
	cfg.StampLayout = filepath.Join(t.TempDir(), "layout.yaml")
	require.NoError(t, os.WriteFile(cfg.StampLayout, []byte("slots:\n  - key: name\n    page: 1\n    x: 10\n    y: 10\n"), 0o600))

	service, scheduler, err := newService(cfg, zap.NewNop())
	require.NoError(t, err)
	defer scheduler.Close()
	assert.Equal(t, pdf.StrategyStamp, service.DefaultStrategy())

	cfg.StampLayout = filepath.Join(t.TempDir(), "missing.yaml")
	_, _, err = newService(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestRunServerMode_GracefulShutdown(t *testing.T) {
	cfg := testConfig(t)
	service, scheduler, err := newService(cfg, zap.NewNop())
	require.NoError(t, err)
	defer scheduler.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- runServerMode(ctx, cfg, service, zap.NewNop())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunServerMode_ListenError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Host = "256.0.0.1"
	service, scheduler, err := newService(cfg, zap.NewNop())
	require.NoError(t, err)
	defer scheduler.Close()

	err = runServerMode(context.Background(), cfg, service, zap.NewNop())
	assert.Error(t, err)
}
