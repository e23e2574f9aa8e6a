package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"manuscript/internal/diff"
	"manuscript/internal/section"

	"gopkg.in/yaml.v3"
)

// WorkspaceDir is the per-project directory holding config, database and logs.
const WorkspaceDir = ".manuscript"

// Config holds all manuscript configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Sectioning
	Sections SectionsConfig `yaml:"sections"`

	// Version comparison
	Diff DiffConfig `yaml:"diff"`

	// Persistence
	Store StoreConfig `yaml:"store"`

	// File watching
	Autosave AutosaveConfig `yaml:"autosave"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Terminal rendering
	UI UIConfig `yaml:"ui"`
}

// SectionsConfig configures the sectionizer.
type SectionsConfig struct {
	// MaxWords is the auto-split threshold per section.
	MaxWords int `yaml:"max_words"`
}

// DiffConfig configures alignment.
type DiffConfig struct {
	Mode         string `yaml:"mode"`          // heuristic, optimal
	Context      int    `yaml:"context"`       // unchanged tokens shown around a hunk
	Concurrency  int    `yaml:"concurrency"`   // parallel section alignments
	SlowWarnTime string `yaml:"slow_warn_time"` // log a warning when one alignment exceeds this
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
	BusyTimeout  string `yaml:"busy_timeout"`
	MaxVersions  int    `yaml:"max_versions"` // 0 = keep every version
}

// AutosaveConfig configures the watch command.
type AutosaveConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "manuscript",
		Version: "0.3.0",

		Sections: SectionsConfig{
			MaxWords: section.DefaultMaxWords,
		},

		Diff: DiffConfig{
			Mode:         diff.ModeHeuristic.String(),
			Context:      8,
			Concurrency:  4,
			SlowWarnTime: "250ms",
		},

		Store: StoreConfig{
			DatabasePath: filepath.Join(WorkspaceDir, "manuscript.db"),
			BusyTimeout:  "5s",
		},

		Autosave: AutosaveConfig{
			Debounce: "750ms",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   filepath.Join(WorkspaceDir, "logs", "manuscript.log"),
		},

		UI: DefaultUIConfig(),
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. Unparseable
// numeric or boolean values are ignored.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("MANUSCRIPT_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if v := os.Getenv("MANUSCRIPT_MAX_SECTION_WORDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sections.MaxWords = n
		}
	}
	if mode := os.Getenv("MANUSCRIPT_DIFF_MODE"); mode != "" {
		c.Diff.Mode = mode
	}
	if level := os.Getenv("MANUSCRIPT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
		if level == "debug" {
			c.Logging.DebugMode = true
		}
	}
	if v := os.Getenv("MANUSCRIPT_DARK_MODE"); v != "" {
		if dark, ok := parseBool(v); ok {
			c.UI.DarkMode = &dark
		}
	}
}

// DiffMode returns the configured alignment mode.
func (c *Config) DiffMode() diff.Mode {
	return diff.ParseMode(c.Diff.Mode)
}

// GetBusyTimeout returns the SQLite busy timeout as a duration.
func (c *Config) GetBusyTimeout() time.Duration {
	d, err := time.ParseDuration(c.Store.BusyTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetDebounce returns the autosave debounce as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Autosave.Debounce)
	if err != nil {
		return 750 * time.Millisecond
	}
	return d
}

// GetSlowDiffThreshold returns the slow-alignment warning threshold.
func (c *Config) GetSlowDiffThreshold() time.Duration {
	d, err := time.ParseDuration(c.Diff.SlowWarnTime)
	if err != nil {
		return 250 * time.Millisecond
	}
	return d
}

// ValidDiffModes lists the accepted diff.mode values.
var ValidDiffModes = []string{diff.ModeHeuristic.String(), diff.ModeOptimal.String()}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Sections.MaxWords <= 0 {
		return fmt.Errorf("sections.max_words must be positive, got %d", c.Sections.MaxWords)
	}

	validMode := false
	for _, m := range ValidDiffModes {
		if c.Diff.Mode == m {
			validMode = true
			break
		}
	}
	if !validMode {
		return fmt.Errorf("invalid diff mode: %s (valid: %v)", c.Diff.Mode, ValidDiffModes)
	}

	if c.Diff.Context < 0 {
		return fmt.Errorf("diff.context must not be negative, got %d", c.Diff.Context)
	}
	if c.Diff.Concurrency < 1 {
		return fmt.Errorf("diff.concurrency must be at least 1, got %d", c.Diff.Concurrency)
	}
	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path not configured (set MANUSCRIPT_DB)")
	}
	if c.Store.MaxVersions < 0 {
		return fmt.Errorf("store.max_versions must not be negative, got %d", c.Store.MaxVersions)
	}
	if _, err := time.ParseDuration(c.Autosave.Debounce); err != nil {
		return fmt.Errorf("invalid autosave.debounce %q: %w", c.Autosave.Debounce, err)
	}

	return nil
}

// FindWorkspaceRoot walks up from the working directory looking for a
// .manuscript directory, falling back to the working directory itself.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		if info, err := os.Stat(filepath.Join(dir, WorkspaceDir)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return originalDir, nil
}

// DefaultConfigPath returns <workspace>/.manuscript/config.yaml.
func DefaultConfigPath() string {
	root, err := FindWorkspaceRoot()
	if err != nil {
		root = "."
	}
	return filepath.Join(root, WorkspaceDir, "config.yaml")
}

// Resolve makes relative store and log paths relative to root.
func (c *Config) Resolve(root string) {
	if c.Store.DatabasePath != "" && !filepath.IsAbs(c.Store.DatabasePath) {
		c.Store.DatabasePath = filepath.Join(root, c.Store.DatabasePath)
	}
	if c.Logging.File != "" && !filepath.IsAbs(c.Logging.File) {
		c.Logging.File = filepath.Join(root, c.Logging.File)
	}
}
