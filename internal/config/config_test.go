package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"manuscript/internal/diff"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MANUSCRIPT_DB",
		"MANUSCRIPT_MAX_SECTION_WORDS",
		"MANUSCRIPT_DIFF_MODE",
		"MANUSCRIPT_LOG_LEVEL",
		"MANUSCRIPT_DARK_MODE",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "manuscript" {
		t.Errorf("expected Name=manuscript, got %s", cfg.Name)
	}
	if cfg.Sections.MaxWords != 2000 {
		t.Errorf("expected MaxWords=2000, got %d", cfg.Sections.MaxWords)
	}
	if cfg.DiffMode() != diff.ModeHeuristic {
		t.Errorf("expected heuristic diff mode, got %s", cfg.DiffMode())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Sections.MaxWords = 500
	cfg.Diff.Mode = "optimal"
	cfg.Logging.Categories = map[string]bool{"diff": false}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, diff.ModeOptimal, loaded.DiffMode())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sections:\n  max_words: 300\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Sections.MaxWords)
	assert.Equal(t, "750ms", cfg.Autosave.Debounce)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sections: [unterminated"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MANUSCRIPT_DB", "/tmp/other.db")
	t.Setenv("MANUSCRIPT_MAX_SECTION_WORDS", "1200")
	t.Setenv("MANUSCRIPT_DIFF_MODE", "optimal")
	t.Setenv("MANUSCRIPT_LOG_LEVEL", "debug")
	t.Setenv("MANUSCRIPT_DARK_MODE", "yes")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/other.db", cfg.Store.DatabasePath)
	assert.Equal(t, 1200, cfg.Sections.MaxWords)
	assert.Equal(t, diff.ModeOptimal, cfg.DiffMode())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.DebugMode)
	require.NotNil(t, cfg.UI.DarkMode)
	assert.True(t, *cfg.UI.DarkMode)
}

func TestConfig_EnvOverrides_IgnoresGarbage(t *testing.T) {
	clearEnv(t)
	t.Setenv("MANUSCRIPT_MAX_SECTION_WORDS", "lots")
	t.Setenv("MANUSCRIPT_DARK_MODE", "maybe")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	assert.Equal(t, 2000, cfg.Sections.MaxWords)
	assert.Nil(t, cfg.UI.DarkMode)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero max words", func(c *Config) { c.Sections.MaxWords = 0 }, "max_words"},
		{"unknown diff mode", func(c *Config) { c.Diff.Mode = "fancy" }, "invalid diff mode"},
		{"negative context", func(c *Config) { c.Diff.Context = -1 }, "diff.context"},
		{"no concurrency", func(c *Config) { c.Diff.Concurrency = 0 }, "diff.concurrency"},
		{"no database", func(c *Config) { c.Store.DatabasePath = "" }, "MANUSCRIPT_DB"},
		{"negative retention", func(c *Config) { c.Store.MaxVersions = -2 }, "max_versions"},
		{"bad debounce", func(c *Config) { c.Autosave.Debounce = "soon" }, "autosave.debounce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_DurationHelpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5*time.Second, cfg.GetBusyTimeout())
	assert.Equal(t, 750*time.Millisecond, cfg.GetDebounce())
	assert.Equal(t, 250*time.Millisecond, cfg.GetSlowDiffThreshold())

	cfg.Store.BusyTimeout = "garbage"
	cfg.Autosave.Debounce = "2s"
	cfg.Diff.SlowWarnTime = ""
	assert.Equal(t, 5*time.Second, cfg.GetBusyTimeout())
	assert.Equal(t, 2*time.Second, cfg.GetDebounce())
	assert.Equal(t, 250*time.Millisecond, cfg.GetSlowDiffThreshold())
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	c := LoggingConfig{Categories: map[string]bool{"store": false}}
	assert.False(t, c.IsCategoryEnabled("diff"), "debug mode off disables everything")

	c.DebugMode = true
	assert.False(t, c.IsCategoryEnabled("store"))
	assert.True(t, c.IsCategoryEnabled("diff"))

	lc := c.LoggerConfig()
	assert.True(t, lc.DebugMode)
	assert.Equal(t, c.Categories, lc.Categories)
}

func TestResolve(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve("/work")
	assert.Equal(t, filepath.Join("/work", WorkspaceDir, "manuscript.db"), cfg.Store.DatabasePath)
	assert.Equal(t, filepath.Join("/work", WorkspaceDir, "logs", "manuscript.log"), cfg.Logging.File)

	cfg.Store.DatabasePath = "/abs/db.sqlite"
	cfg.Resolve("/elsewhere")
	assert.Equal(t, "/abs/db.sqlite", cfg.Store.DatabasePath)
}

func TestFindWorkspaceRoot_PrefersManuscriptDir(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, WorkspaceDir), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", WorkspaceDir, err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}

	origWD, _ := os.Getwd()
	if err := os.Chdir(nested); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWD) })

	got, err := FindWorkspaceRoot()
	if err != nil {
		t.Fatalf("FindWorkspaceRoot: %v", err)
	}
	if got != root {
		t.Fatalf("FindWorkspaceRoot=%q, want %q", got, root)
	}

	want := filepath.Join(root, WorkspaceDir, "config.yaml")
	if p := DefaultConfigPath(); p != want {
		t.Fatalf("DefaultConfigPath=%q, want %q", p, want)
	}
}
