// Package logging provides config-driven categorized logging for manuscript.
// Every category writes through one shared zap logger and tags its entries
// with a "category" field.
//
// With debug_mode off only warnings and errors are written. With debug_mode
// on, the configured level applies and categories can be toggled one by one.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, config loading
	CategoryStore    Category = "store"    // SQLite persistence
	CategorySections Category = "sections" // Migration, splits, section edits
	CategoryDiff     Category = "diff"     // Version alignment
	CategoryChapter  Category = "chapter"  // Chapter service orchestration
	CategoryAutosave Category = "autosave" // File watching, debounced saves
	CategoryCLI      Category = "cli"      // Command execution
	CategoryAudit    Category = "audit"    // Document mutation trail
)

// Config mirrors config.LoggingConfig to avoid an import cycle.
type Config struct {
	DebugMode  bool
	Level      string // debug, info, warn, error
	Format     string // json, console
	File       string // empty = stderr
	Categories map[string]bool
}

// Logger is a category-scoped logger. The zero value discards everything.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	min      zapcore.Level
}

var (
	mu      sync.RWMutex
	base    = zap.NewNop()
	config  Config
	level   = zapcore.WarnLevel
	loggers = make(map[Category]*Logger)
)

// ParseLevel maps a config level to a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Build creates the zap logger described by cfg.
func Build(cfg Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	zcfg.Sampling = nil

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		zcfg.OutputPaths = []string{cfg.File}
	}

	l, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

// Initialize builds a zap logger from cfg and installs it.
func Initialize(cfg Config) error {
	l, err := Build(cfg)
	if err != nil {
		return err
	}
	SetLogger(l, cfg)

	boot := Get(CategoryBoot)
	boot.Debug("logging initialized: level=%s format=%s debug_mode=%v", cfg.Level, cfg.Format, cfg.DebugMode)
	if len(cfg.Categories) > 0 {
		enabled := 0
		for _, on := range cfg.Categories {
			if on {
				enabled++
			}
		}
		boot.Debug("enabled categories: %d/%d", enabled, len(cfg.Categories))
	}
	return nil
}

// SetLogger installs l as the shared base logger. Tests use it with an
// observer core.
func SetLogger(l *zap.Logger, cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	if l == nil {
		l = zap.NewNop()
	}
	base = l
	config = cfg
	level = zapcore.WarnLevel
	if cfg.DebugMode {
		level = ParseLevel(cfg.Level)
	}
	loggers = make(map[Category]*Logger)
}

// Base returns the shared zap logger.
func Base() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() error {
	return Base().Sync()
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a category writes below warn level.
// Categories not listed are enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabled(category)
}

func categoryEnabled(category Category) bool {
	if !config.DebugMode {
		return false
	}
	enabled, exists := config.Categories[string(category)]
	return !exists || enabled
}

// Get returns (or creates) the logger for a category.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	min := zapcore.WarnLevel
	if categoryEnabled(category) && level < min {
		min = level
	}
	l := &Logger{
		category: category,
		sugar:    base.With(zap.String("category", string(category))).Sugar(),
		min:      min,
	}
	loggers[category] = l
	return l
}

func (l *Logger) enabled(lvl zapcore.Level) bool {
	return l != nil && l.sugar != nil && lvl >= l.min
}

// With returns a child logger carrying structured fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	if l == nil || l.sugar == nil {
		return l
	}
	return &Logger{
		category: l.category,
		sugar:    l.sugar.Desugar().With(fields...).Sugar(),
		min:      l.min,
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.enabled(zapcore.DebugLevel) {
		l.sugar.Debugf(format, args...)
	}
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.enabled(zapcore.InfoLevel) {
		l.sugar.Infof(format, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.enabled(zapcore.WarnLevel) {
		l.sugar.Warnf(format, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.enabled(zapcore.ErrorLevel) {
		l.sugar.Errorf(format, args...)
	}
}

// =============================================================================
// CATEGORY SHORTCUTS
// =============================================================================

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// StoreWarn logs warning to the store category
func StoreWarn(format string, args ...interface{}) {
	Get(CategoryStore).Warn(format, args...)
}

// Sections logs to the sections category
func Sections(format string, args ...interface{}) {
	Get(CategorySections).Info(format, args...)
}

// SectionsDebug logs debug to the sections category
func SectionsDebug(format string, args ...interface{}) {
	Get(CategorySections).Debug(format, args...)
}

// Chapter logs to the chapter category
func Chapter(format string, args ...interface{}) {
	Get(CategoryChapter).Info(format, args...)
}

// ChapterDebug logs debug to the chapter category
func ChapterDebug(format string, args ...interface{}) {
	Get(CategoryChapter).Debug(format, args...)
}

// DiffDebug logs debug to the diff category
func DiffDebug(format string, args ...interface{}) {
	Get(CategoryDiff).Debug(format, args...)
}

// Autosave logs to the autosave category
func Autosave(format string, args ...interface{}) {
	Get(CategoryAutosave).Info(format, args...)
}

// AutosaveDebug logs debug to the autosave category
func AutosaveDebug(format string, args ...interface{}) {
	Get(CategoryAutosave).Debug(format, args...)
}

// AutosaveError logs error to the autosave category
func AutosaveError(format string, args ...interface{}) {
	Get(CategoryAutosave).Error(format, args...)
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration at debug level
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
