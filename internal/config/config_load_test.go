package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags gives each load a fresh flag set and viper instance
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

// withArgs runs LoadFromFlags with args in a scratch working directory
func withArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()

	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		resetFlags()
	})

	t.Chdir(t.TempDir())
	for _, name := range []string{
		"PORT", "PDF_FORM_MODE", "PDF_FORM_PORT", "PDF_FORM_STORAGE_DIR",
		"PDF_FORM_STRATEGY", "PDF_FORM_OUTPUT_TTL", "PDF_FORM_LOGLEVEL",
	} {
		if _, set := os.LookupEnv(name); set {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}

	os.Args = append([]string{"pdf-form-service"}, args...)
	resetFlags()
	return LoadFromFlags()
}

func TestLoadFromFlags_Defaults(t *testing.T) {
	cfg, err := withArgs(t)
	require.NoError(t, err)

	assert.Equal(t, ModeServer, cfg.Mode)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultStrategy, cfg.Strategy)
	assert.Equal(t, DefaultOutputTTL, cfg.OutputTTL)
	assert.True(t, filepath.IsAbs(cfg.StorageDirectory), "storage directory is made absolute")
	assert.DirExists(t, cfg.StorageDirectory)
}

func TestLoadFromFlags_Flags(t *testing.T) {
	storage := filepath.Join(t.TempDir(), "store")

	cfg, err := withArgs(t,
		"--mode=stdio",
		"--port=9090",
		"--storage-dir="+storage,
		"--strategy=stamp",
		"--output-ttl=5m",
		"--sweep-interval=30s",
		"--loglevel=debug",
		"--maxfilesize=2048",
	)
	require.NoError(t, err)

	assert.Equal(t, ModeStdio, cfg.Mode)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, storage, cfg.StorageDirectory)
	assert.Equal(t, "stamp", cfg.Strategy)
	assert.Equal(t, 5*time.Minute, cfg.OutputTTL)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.True(t, cfg.IsDebug())
	assert.Equal(t, int64(2048), cfg.MaxFileSize)
}

func TestLoadFromFlags_Environment(t *testing.T) {
	t.Setenv("PDF_FORM_STRATEGY", "stamp")
	t.Setenv("PDF_FORM_OUTPUT_TTL", "2m")

	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
	}()
	t.Chdir(t.TempDir())
	os.Args = []string{"pdf-form-service"}
	resetFlags()

	cfg, err := LoadFromFlags()
	require.NoError(t, err)
	assert.Equal(t, "stamp", cfg.Strategy)
	assert.Equal(t, 2*time.Minute, cfg.OutputTTL)
}

func TestLoadFromFlags_PortPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		args     []string
		wantPort int
	}{
		{
			name:     "plain PORT",
			env:      map[string]string{"PORT": "6000"},
			wantPort: 6000,
		},
		{
			name:     "prefixed variable wins over PORT",
			env:      map[string]string{"PORT": "6000", "PDF_FORM_PORT": "7000"},
			wantPort: 7000,
		},
		{
			name:     "flag wins over environment",
			env:      map[string]string{"PORT": "6000", "PDF_FORM_PORT": "7000"},
			args:     []string{"--port=8000"},
			wantPort: 8000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			originalArgs := os.Args
			defer func() {
				os.Args = originalArgs
				resetFlags()
			}()
			t.Chdir(t.TempDir())
			os.Args = append([]string{"pdf-form-service"}, tt.args...)
			resetFlags()

			cfg, err := LoadFromFlags()
			require.NoError(t, err)
			assert.Equal(t, tt.wantPort, cfg.Port)
		})
	}
}

func TestLoadFromFlags_EnvFile(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
	}()

	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvFile), []byte("PDF_FORM_LOGLEVEL=warn\n"), 0o600))
	// Values loaded from the file are process-wide; restore after the test
	t.Setenv("PDF_FORM_LOGLEVEL", "")
	os.Unsetenv("PDF_FORM_LOGLEVEL")

	os.Args = []string{"pdf-form-service"}
	resetFlags()

	cfg, err := LoadFromFlags()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadFromFlags_Invalid(t *testing.T) {
	_, err := withArgs(t, "--strategy=overlay")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadFromFlags_Version(t *testing.T) {
	_, err := withArgs(t, "--version")
	require.Error(t, err)
	assert.Equal(t, "version requested", err.Error())
}
