package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"manuscript/internal/autosave"
	"manuscript/internal/chapter"

	"github.com/spf13/cobra"
)

var watchSection string

var watchCmd = &cobra.Command{
	Use:   "watch <doc> <file>",
	Short: "Save a document whenever a file changes",
	Long: `Watches <file> and saves its content into <doc> once edits settle for
autosave.debounce. By default the file holds the whole chapter and is spread
over the existing sections like "replace". With --section the file holds one
section and saves go through "edit"; watching stops if that section splits,
since the file then covers more than one section.

Stops on Ctrl+C after saving any pending edit.`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

func registerWatchCommand(root *cobra.Command) {
	watchCmd.Flags().StringVar(&watchSection, "section", "", "Section id or position the file holds")
	root.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	docID, path := args[0], args[1]
	svc, err := chapterService()
	if err != nil {
		return err
	}

	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc, err := svc.Open(ctx, docID)
	if err != nil {
		return err
	}
	target := ""
	if watchSection != "" {
		sec, err := resolveSection(doc, watchSection)
		if err != nil {
			return err
		}
		target = sec.ID
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := autosave.NewWatcher(path, watchSink(cmd, svc, docID, target, cancel), cfg.GetDebounce())
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s for %s (Ctrl+C to stop)\n", w.Path(), docID)

	select {
	case <-ctx.Done():
	case <-w.Done():
	}
	w.Stop()

	stats := w.Stats()
	fmt.Fprintf(out, "Stopped: %d saves, %d unchanged, %d errors\n", stats.Saves, stats.Skipped, stats.Errors)
	return nil
}

// watchSink builds the autosave sink. In section mode a split ends the
// session through stopWatching.
func watchSink(cmd *cobra.Command, svc *chapter.Service, docID, sectionID string, stopWatching context.CancelFunc) autosave.Sink {
	out := cmd.OutOrStdout()
	var mu sync.Mutex
	split := false

	return func(ctx context.Context, content string) error {
		mu.Lock()
		defer mu.Unlock()

		if sectionID == "" {
			doc, err := svc.ReplaceContent(ctx, docID, content)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "saved %s: %d words\n", docID, doc.WordCount)
			if over := svc.OverLimit(doc); len(over) > 0 {
				fmt.Fprintf(out, "  %d section(s) over %d words\n", len(over), svc.MaxWords())
			}
			return nil
		}

		if split {
			return nil
		}
		edit, err := svc.EditSection(ctx, docID, sectionID, content)
		if err != nil {
			return err
		}
		if edit.Split() {
			split = true
			fmt.Fprintf(out, "section split into %d sections; stopping, watch the new sections separately\n", len(edit.Created)+1)
			stopWatching()
			return nil
		}
		fmt.Fprintf(out, "saved %s/%s: %d words\n", docID, sectionID, edit.Document.WordCount)
		return nil
	}
}
