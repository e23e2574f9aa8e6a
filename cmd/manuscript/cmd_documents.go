package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"manuscript/cmd/manuscript/ui"
	"manuscript/internal/config"
	"manuscript/internal/store"

	"github.com/spf13/cobra"
)

var (
	importTitle  string
	importLegacy bool
)

// =============================================================================
// COMMANDS
// =============================================================================

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .manuscript with a default config in the workspace",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var importCmd = &cobra.Command{
	Use:   "import <doc> <file>",
	Short: "Store a text file as a document",
	Long: `Reads <file> ("-" for stdin) and stores it as document <doc>, split into
sections of at most max_words words. With --legacy the text is stored flat and
split the first time the document is opened.`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

var openCmd = &cobra.Command{
	Use:   "open <doc>",
	Short: "Load a document, migrating legacy flat content",
	Args:  cobra.ExactArgs(1),
	RunE:  runOpen,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List documents",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var exportCmd = &cobra.Command{
	Use:   "export <doc>",
	Short: "Print the flattened document text",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var replaceCmd = &cobra.Command{
	Use:   "replace <doc> <file>",
	Short: "Spread edited flat text back over the existing sections",
	Long: `Reads <file> ("-" for stdin) and distributes its words evenly over the
document's current sections. The section count is kept; sections that end up
over the limit are reported and can be split by editing them.`,
	Args: cobra.ExactArgs(2),
	RunE: runReplace,
}

var historyCmd = &cobra.Command{
	Use:   "history <doc>",
	Short: "List stored versions of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var showCmd = &cobra.Command{
	Use:   "show <doc>",
	Short: "Render the document as markdown",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func registerDocumentCommands(root *cobra.Command) {
	importCmd.Flags().StringVar(&importTitle, "title", "", "Document title (default: file name)")
	importCmd.Flags().BoolVar(&importLegacy, "legacy", false, "Store flat, split on first open")

	root.AddCommand(initCmd, importCmd, openCmd, listCmd, exportCmd, replaceCmd, historyCmd, showCmd)
}

// =============================================================================
// HANDLERS
// =============================================================================

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	dir := filepath.Join(root, config.WorkspaceDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "%s already exists\n", path)
		return nil
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Initialized manuscript workspace in %s\n", dir)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	docID, file := args[0], args[1]
	content, err := readInput(cmd, file)
	if err != nil {
		return err
	}
	title := importTitle
	if title == "" {
		title = defaultTitle(docID, file)
	}

	svc, err := chapterService()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	doc, err := svc.Import(ctx, docID, title, content, importLegacy)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if importLegacy {
		fmt.Fprintf(out, "Imported %s (%d words, legacy)\n", doc.ID, doc.WordCount)
		return nil
	}
	fmt.Fprintf(out, "Imported %s: %d sections, %d words\n", doc.ID, len(doc.Sections), doc.WordCount)
	return nil
}

func runOpen(cmd *cobra.Command, args []string) error {
	svc, err := chapterService()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	raw, err := localStore.LoadDocument(ctx, args[0])
	if err != nil {
		return err
	}
	doc, err := svc.Open(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if raw.NeedsMigration() {
		fmt.Fprintf(out, "Migrated legacy content into %d sections\n", len(doc.Sections))
	}
	fmt.Fprint(out, ui.SectionList(stylesFor(out), doc, svc.MaxWords()))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	svc, err := chapterService()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	docs, err := svc.Documents(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, ui.DocumentList(stylesFor(out), docs))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	svc, err := chapterService()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	content, err := svc.Export(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), content)
	return nil
}

func runReplace(cmd *cobra.Command, args []string) error {
	content, err := readInput(cmd, args[1])
	if err != nil {
		return err
	}
	svc, err := chapterService()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	doc, err := svc.ReplaceContent(ctx, args[0], content)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Replaced %s: %d words over %d sections\n", doc.ID, doc.WordCount, len(doc.Sections))
	if over := svc.OverLimit(doc); len(over) > 0 {
		fmt.Fprint(out, ui.SectionList(stylesFor(out), doc, svc.MaxWords()))
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	svc, err := chapterService()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	versions, err := svc.History(ctx, args[0])
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		// Legacy documents have no versions yet; tell them apart from typos.
		if _, err := localStore.LoadDocument(ctx, args[0]); errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, ui.History(stylesFor(out), versions))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	svc, err := chapterService()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	doc, err := svc.Open(ctx, args[0])
	if err != nil {
		return err
	}
	rendered, err := ui.RenderDocument(doc, cfg.UI.GlamourStyle, outputWidth())
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func defaultTitle(docID, file string) string {
	if file == "-" {
		return docID
	}
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
