// Package config assembles the runtime configuration from environment
// variables, an optional .env file, and the project's manifest.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// manifestName is the optional per-project manifest file.
	manifestName = "project.yaml"

	defaultDBName    = "takeout.db"
	defaultStateName = "state.db"
	defaultCutoff    = 24 * time.Hour
)

// Config holds everything the pipeline needs to run against one project
// directory.
type Config struct {
	// ProjectDir holds the database, state file, and manifest. Resolved
	// to an absolute path at load time.
	ProjectDir string `env:"TAKEOUT_SYNC_PROJECT_DIR" envDefault:"."`

	// APIKey authenticates against the YouTube Data API. Required for
	// sync commands only; ingest runs without it.
	APIKey string `env:"TAKEOUT_SYNC_API_KEY"`

	// Environment controls log format. Production logs JSON.
	Environment string `env:"TAKEOUT_SYNC_ENV" envDefault:"development"`

	// LogLevel overrides the environment's default log level.
	LogLevel string `env:"TAKEOUT_SYNC_LOG_LEVEL"`

	// Manifest-sourced settings below. Zero values mean the manifest was
	// absent or silent; Load fills the defaults.

	// TakeoutDir is where the watch-history archives live. Relative
	// paths are resolved against ProjectDir.
	TakeoutDir string `env:"-"`

	// DBName is the SQLite database file name inside ProjectDir.
	DBName string `env:"-"`

	// StateName is the bbolt state file name inside ProjectDir.
	StateName string `env:"-"`

	// Cutoff is how stale a video's metadata may get before sync
	// re-checks it.
	Cutoff time.Duration `env:"-"`
}

// manifest mirrors project.yaml. All fields are optional.
type manifest struct {
	TakeoutDir string `yaml:"takeout_dir"`
	DBName     string `yaml:"db_name"`
	StateName  string `yaml:"state_name"`
	Cutoff     string `yaml:"cutoff"`
	APIKeyFile string `yaml:"api_key_file"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing the API key to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables and the project
// manifest. It first attempts to load a .env file if present, then
// parses env vars, then merges project.yaml from the project directory.
// Env vars win over the manifest where both supply a value.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	absDir, err := filepath.Abs(cfg.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("resolving project dir: %w", err)
	}

	cfg.ProjectDir = absDir

	if err := cfg.applyManifest(); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyManifest merges project.yaml into the config. A missing manifest
// is fine; a malformed one is not.
func (c *Config) applyManifest() error {
	path := filepath.Join(c.ProjectDir, manifestName)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("reading %s: %w", manifestName, err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parsing %s: %w", manifestName, err)
	}

	c.TakeoutDir = m.TakeoutDir
	c.DBName = m.DBName
	c.StateName = m.StateName

	if m.Cutoff != "" {
		cutoff, err := time.ParseDuration(m.Cutoff)
		if err != nil {
			return fmt.Errorf("parsing cutoff in %s: %w", manifestName, err)
		}

		c.Cutoff = cutoff
	}

	// The env var wins over the key file so a manifest checked into the
	// project cannot silently override the operator's key.
	if c.APIKey == "" && m.APIKeyFile != "" {
		key, err := readKeyFile(c.resolve(m.APIKeyFile))
		if err != nil {
			return err
		}

		c.APIKey = key
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.TakeoutDir == "" {
		c.TakeoutDir = c.ProjectDir
	} else {
		c.TakeoutDir = c.resolve(c.TakeoutDir)
	}

	if c.DBName == "" {
		c.DBName = defaultDBName
	}

	if c.StateName == "" {
		c.StateName = defaultStateName
	}

	if c.Cutoff == 0 {
		c.Cutoff = defaultCutoff
	}
}

func (c *Config) validate() error {
	// The db and state files must stay inside the project directory;
	// a name like ../../tmp/x is a manifest mistake, not a layout
	// choice.
	for _, name := range []string{c.DBName, c.StateName} {
		if name != filepath.Base(name) {
			return fmt.Errorf("file name %q must not contain path separators", name)
		}
	}

	if c.Cutoff < 0 {
		return fmt.Errorf("cutoff must not be negative")
	}

	return nil
}

// RequireAPIKey rejects an empty API key. Called by the sync commands;
// ingest-only runs never need the key.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return fmt.Errorf("TAKEOUT_SYNC_API_KEY (or api_key_file in %s) is required for sync", manifestName)
	}

	return nil
}

// DBPath returns the absolute path of the SQLite database.
func (c *Config) DBPath() string {
	return filepath.Join(c.ProjectDir, c.DBName)
}

// StatePath returns the absolute path of the bbolt state file.
func (c *Config) StatePath() string {
	return filepath.Join(c.ProjectDir, c.StateName)
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// resolve makes a manifest path absolute relative to the project dir.
func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(c.ProjectDir, path)
}

// readKeyFile reads the first line of an API key file.
func readKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading api key file: %w", err)
	}

	key, _, _ := strings.Cut(string(data), "\n")

	return strings.TrimSpace(key), nil
}
