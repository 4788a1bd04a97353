package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/pdf-form-service/internal/pdf"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort          = 5000
	DefaultHost          = "0.0.0.0"
	DefaultLogLevel      = "info"
	DefaultMaxFileSize   = 100 * 1024 * 1024 // 100MB
	DefaultStorageDir    = "./uploads"
	DefaultStrategy      = string(pdf.StrategyForm)
	DefaultOutputTTL     = 60 * time.Second
	DefaultSweepInterval = 10 * time.Minute

	// EnvPrefix namespaces environment variables
	EnvPrefix = "PDF_FORM"
	// EnvFile is loaded into the environment before flags are parsed
	EnvFile = ".env"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the PDF form service
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Storage configuration
	StorageDirectory string // holds the template and transient output
	SourceDirectory  string // templates the MCP upload tool may read

	// Fill configuration
	Strategy      string
	StampLayout   string // optional layout file; built-in layout when empty
	OutputTTL     time.Duration
	SweepInterval time.Duration

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum template size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:             ModeServer,
		Host:             DefaultHost,
		Port:             DefaultPort,
		StorageDirectory: DefaultStorageDir,
		SourceDirectory:  currentDir,
		Strategy:         DefaultStrategy,
		OutputTTL:        DefaultOutputTTL,
		SweepInterval:    DefaultSweepInterval,
		Version:          "1.0.0",
		ServerName:       "pdf-form-service",
		LogLevel:         DefaultLogLevel,
		MaxFileSize:      DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadEnvFile(EnvFile); err != nil {
		return nil, err
	}

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	for _, dir := range []*string{&cfg.StorageDirectory, &cfg.SourceDirectory} {
		if *dir == "" {
			continue
		}
		if expandedPath, err := filepath.Abs(*dir); err == nil {
			*dir = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadEnvFile adds the variables of path to the environment without
// overriding variables that are already set. A missing file is ignored.
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Set environment variable prefix
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// The plain PORT variable is honored after the prefixed one
	_ = viper.BindEnv("port", EnvPrefix+"_PORT", "PORT")

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("storage-dir", cfg.StorageDirectory)
	viper.SetDefault("dir", cfg.SourceDirectory)
	viper.SetDefault("strategy", cfg.Strategy)
	viper.SetDefault("stamp-layout", cfg.StampLayout)
	viper.SetDefault("output-ttl", cfg.OutputTTL)
	viper.SetDefault("sweep-interval", cfg.SweepInterval)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'server' for the HTTP API, 'stdio' for MCP standard I/O")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("storage-dir", cfg.StorageDirectory, "Directory holding the template and filled output")
	pflag.String("dir", cfg.SourceDirectory, "Directory the MCP upload_template tool may read from")
	pflag.String("strategy", cfg.Strategy, "Default fill strategy: 'form' or 'stamp'")
	pflag.String("stamp-layout", cfg.StampLayout, "Stamp layout file (YAML, JSON or TOML)")
	pflag.Duration("output-ttl", cfg.OutputTTL, "How long filled output files are kept")
	pflag.Duration("sweep-interval", cfg.SweepInterval, "How often stale output files are swept")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum template size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "storage-dir", "dir", "strategy", "stamp-layout",
		"output-ttl", "sweep-interval", "loglevel", "maxfilesize",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nPDF Form Service - Fill uploaded PDF templates from JSON data\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                   # HTTP API on port 5000 (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --port=8081 --strategy=stamp      # stamp by default\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --dir=/path/to/pdfs  # MCP tools over stdio\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_MODE            Run mode\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_HOST            Server host\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_PORT, PORT      Server port\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_STORAGE_DIR     Storage directory\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_DIR             MCP source directory\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_STRATEGY        Default fill strategy\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_STAMP_LAYOUT    Stamp layout file\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_OUTPUT_TTL      Output lifetime\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_SWEEP_INTERVAL  Output sweep interval\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_LOGLEVEL        Log level\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORM_MAXFILESIZE     Maximum file size\n")
		fmt.Fprintf(os.Stderr, "\nVariables may also be set in a %s file in the working directory.\n", EnvFile)
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.StorageDirectory = viper.GetString("storage-dir")
	cfg.SourceDirectory = viper.GetString("dir")
	cfg.Strategy = viper.GetString("strategy")
	cfg.StampLayout = viper.GetString("stamp-layout")
	cfg.OutputTTL = viper.GetDuration("output-ttl")
	cfg.SweepInterval = viper.GetDuration("sweep-interval")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate storage directory, creating it if needed
	if c.StorageDirectory == "" {
		return errors.New("storage directory cannot be empty")
	}
	if _, err := os.Stat(c.StorageDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.StorageDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create storage directory %s: %w", c.StorageDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access storage directory %s: %w", c.StorageDirectory, err)
	}

	if _, err := pdf.ParseStrategy(c.Strategy); err != nil {
		return err
	}

	if c.StampLayout != "" {
		if _, err := os.Stat(c.StampLayout); err != nil {
			return fmt.Errorf("cannot access stamp layout %s: %w", c.StampLayout, err)
		}
	}

	if c.OutputTTL <= 0 {
		return errors.New("output TTL must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, StorageDirectory: %s, SourceDirectory: %s, "+
		"Strategy: %s, StampLayout: %s, OutputTTL: %s, SweepInterval: %s, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Host, c.Port, c.StorageDirectory, c.SourceDirectory,
		c.Strategy, c.StampLayout, c.OutputTTL, c.SweepInterval, c.LogLevel, c.MaxFileSize)
}

// IsServerMode returns true if the service runs the HTTP API
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the service runs the MCP stdio transport
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
