package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"manuscript/internal/section"
	"manuscript/internal/store"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupWorkspace points the CLI at a fresh workspace with the given section
// word limit and resets every flag.
func setupWorkspace(t *testing.T, maxWords string) string {
	t.Helper()
	t.Setenv("MANUSCRIPT_DB", "")
	t.Setenv("MANUSCRIPT_DIFF_MODE", "")
	t.Setenv("MANUSCRIPT_LOG_LEVEL", "")
	t.Setenv("MANUSCRIPT_MAX_SECTION_WORDS", maxWords)

	ws := t.TempDir()
	workspace, configPath, verbose = ws, "", false
	importTitle, importLegacy = "", false
	diffFiles, diffSideBySide, diffPager, diffOptimal, diffSections, diffIgnoreSpaces = false, false, false, false, false, false
	diffContext = -1
	watchSection = ""

	require.NoError(t, bootstrap())
	cfg.UI.GlamourStyle = "notty"
	t.Cleanup(func() {
		shutdown()
		workspace = ""
	})
	return ws
}

// run calls a command handler and returns what it printed.
func run(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	err := fn(cmd, args)
	return buf.String(), err
}

func mustRun(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) string {
	t.Helper()
	out, err := run(t, fn, args...)
	require.NoError(t, err)
	return out
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestInitCmd(t *testing.T) {
	ws := setupWorkspace(t, "")

	out := mustRun(t, runInit)
	assert.Contains(t, out, "Initialized manuscript workspace")
	assert.FileExists(t, filepath.Join(ws, ".manuscript", "config.yaml"))

	// Idempotent
	out = mustRun(t, runInit)
	assert.Contains(t, out, "already exists")
}

func TestImportSectionsExport(t *testing.T) {
	ws := setupWorkspace(t, "3")
	file := writeFile(t, ws, "chapter-one.txt", "one two three four five")

	out := mustRun(t, runImport, "ch1", file)
	assert.Equal(t, "Imported ch1: 2 sections, 5 words\n", out)

	out = mustRun(t, runSections, "ch1")
	assert.Contains(t, out, "chapter-one", "title defaults to the file name")
	assert.Contains(t, out, "Section 1")
	assert.Contains(t, out, "Section 2")

	out = mustRun(t, runExport, "ch1")
	assert.Equal(t, "one two three\n\nfour five\n", out)

	out = mustRun(t, runList)
	assert.Contains(t, out, "ch1")
}

func TestImportFromStdin(t *testing.T) {
	setupWorkspace(t, "")
	importTitle = "Prologue"

	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetIn(strings.NewReader("words from a pipe"))
	require.NoError(t, runImport(cmd, []string{"pro", "-"}))
	assert.Contains(t, buf.String(), "4 words")

	out := mustRun(t, runSections, "pro")
	assert.Contains(t, out, "Prologue")
}

func TestImportLegacyThenOpen(t *testing.T) {
	ws := setupWorkspace(t, "3")
	file := writeFile(t, ws, "old.txt", "a b c d e f g")
	importLegacy = true

	out := mustRun(t, runImport, "old", file)
	assert.Contains(t, out, "legacy")

	out = mustRun(t, runHistory, "old")
	assert.Contains(t, out, "(no versions)")

	out = mustRun(t, runOpen, "old")
	assert.Contains(t, out, "Migrated legacy content into 3 sections")

	out = mustRun(t, runOpen, "old")
	assert.NotContains(t, out, "Migrated", "migration happens once")

	out = mustRun(t, runHistory, "old")
	assert.Contains(t, out, "v1")
}

func TestEditSplitsSection(t *testing.T) {
	ws := setupWorkspace(t, "3")
	mustRun(t, runImport, "ch1", writeFile(t, ws, "ch1.txt", "a b"))

	out := mustRun(t, runEdit, "ch1", "1", writeFile(t, ws, "s1.txt", "a b c d e"))
	assert.Contains(t, out, "Section 1 split into 2 sections (version 2)")
	assert.Contains(t, out, "+ Section 1 (part 2) (2 words)")

	out = mustRun(t, runEdit, "ch1", "1", writeFile(t, ws, "same.txt", "a b c"))
	assert.Contains(t, out, "unchanged")

	out = mustRun(t, runExport, "ch1")
	assert.Equal(t, "a b c\n\nd e\n", out)
}

func TestRenameAddRemove(t *testing.T) {
	ws := setupWorkspace(t, "")
	mustRun(t, runImport, "ch1", writeFile(t, ws, "ch1.txt", "opening words"))

	out := mustRun(t, runAdd, "ch1")
	assert.Contains(t, out, "Added Section 2 at position 2")

	out = mustRun(t, runRename, "ch1", "2", "Epilogue")
	assert.Equal(t, "Renamed \"Section 2\" to \"Epilogue\"\n", out)

	out = mustRun(t, runSections, "ch1")
	assert.Contains(t, out, "Epilogue")

	out = mustRun(t, runRemove, "ch1", "2")
	assert.Contains(t, out, "1 sections remain")

	_, err := run(t, runRemove, "ch1", "1")
	assert.ErrorIs(t, err, section.ErrPreconditionFailed)

	_, err = run(t, runRename, "ch1", "9", "Nowhere")
	assert.ErrorIs(t, err, section.ErrSectionNotFound)
}

func TestReplaceReportsOverLimit(t *testing.T) {
	ws := setupWorkspace(t, "2")
	mustRun(t, runImport, "ch1", writeFile(t, ws, "ch1.txt", "a b c d"))

	out := mustRun(t, runReplace, "ch1", writeFile(t, ws, "edited.txt", "one two three four five six"))
	assert.Contains(t, out, "Replaced ch1: 6 words over 2 sections")
	assert.Contains(t, out, "OVER LIMIT")
}

func TestDiffDocument(t *testing.T) {
	ws := setupWorkspace(t, "")
	mustRun(t, runImport, "ch1", writeFile(t, ws, "ch1.txt", "The cat sat."))
	mustRun(t, runEdit, "ch1", "1", writeFile(t, ws, "s1.txt", "The dog sat."))

	out := mustRun(t, runDiff, "ch1")
	assert.Contains(t, out, "--- ch1@v1")
	assert.Contains(t, out, "+++ ch1@current")
	assert.Contains(t, out, "+1 -1 =2 words")
	assert.Contains(t, out, "The [-cat-]{+dog+} sat.")

	diffSections = true
	out = mustRun(t, runDiff, "ch1", "v1", "current")
	assert.Contains(t, out, "(changed)")

	diffSections, diffOptimal = false, true
	out = mustRun(t, runDiff, "ch1", "1", "2")
	assert.Contains(t, out, "{+dog+}")

	_, err := run(t, runDiff, "ch1", "v9")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = run(t, runDiff, "ch1", "yesterday")
	assert.Error(t, err)
}

func TestDiffFiles(t *testing.T) {
	ws := setupWorkspace(t, "")
	a := writeFile(t, ws, "a.txt", "The cat sat.")
	b := writeFile(t, ws, "b.txt", "The dog sat down.")
	diffFiles = true

	out := mustRun(t, runDiff, a, b)
	assert.Contains(t, out, "+3 -2 =1 words")
	assert.Contains(t, out, "{+dog+}")

	diffSideBySide = true
	out = mustRun(t, runDiff, a, b)
	assert.Contains(t, out, "[-cat-]")
	assert.Contains(t, out, "{+down.+}")

	_, err := run(t, runDiff, a)
	assert.Error(t, err)
}

func TestShowRendersMarkdown(t *testing.T) {
	ws := setupWorkspace(t, "")
	importTitle = "The Long Night"
	mustRun(t, runImport, "ch1", writeFile(t, ws, "ch1.txt", "It was dark."))

	out := mustRun(t, runShow, "ch1")
	assert.Contains(t, out, "The Long Night")
	assert.Contains(t, out, "It was dark.")
}

func TestMissingDocument(t *testing.T) {
	setupWorkspace(t, "")

	for name, fn := range map[string]func(*cobra.Command, []string) error{
		"export":   runExport,
		"open":     runOpen,
		"sections": runSections,
		"history":  runHistory,
	} {
		_, err := run(t, fn, "ghost")
		assert.ErrorIs(t, err, store.ErrNotFound, name)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"current", 0, false},
		{"", 0, false},
		{"latest", -1, false},
		{"prev", -2, false},
		{"3", 3, false},
		{"v3", 3, false},
		{"V12", 12, false},
		{"-3", -3, false},
		{"three", 0, true},
	}
	for _, tt := range tests {
		got, err := parseVersion(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestWatchSink_SectionSplitStopsWatching(t *testing.T) {
	ws := setupWorkspace(t, "3")
	mustRun(t, runImport, "ch1", writeFile(t, ws, "ch1.txt", "a b"))

	svc, err := chapterService()
	require.NoError(t, err)
	doc, err := svc.Open(context.Background(), "ch1")
	require.NoError(t, err)

	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := watchSink(cmd, svc, "ch1", doc.Sections[0].ID, cancel)
	require.NoError(t, sink(ctx, "a b c"))
	assert.NoError(t, ctx.Err())

	require.NoError(t, sink(ctx, "a b c d e"))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Contains(t, buf.String(), "split into 2 sections")

	// Later saves are ignored once split.
	require.NoError(t, sink(context.Background(), "x"))
	out := mustRun(t, runExport, "ch1")
	assert.Equal(t, "a b c\n\nd e\n", out)
}

func TestWatchSink_WholeDocument(t *testing.T) {
	ws := setupWorkspace(t, "")
	mustRun(t, runImport, "ch1", writeFile(t, ws, "ch1.txt", "first draft"))
	svc, err := chapterService()
	require.NoError(t, err)

	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	sink := watchSink(cmd, svc, "ch1", "", func() {})
	require.NoError(t, sink(context.Background(), "second draft here"))
	assert.Contains(t, buf.String(), "saved ch1: 3 words")

	out := mustRun(t, runExport, "ch1")
	assert.Equal(t, "second draft here\n", out)
}
