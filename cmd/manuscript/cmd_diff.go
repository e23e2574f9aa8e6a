package main

import (
	"fmt"
	"strconv"
	"strings"

	"manuscript/cmd/manuscript/ui"
	"manuscript/internal/chapter"
	"manuscript/internal/diff"

	"github.com/spf13/cobra"
)

var (
	diffFiles        bool
	diffSideBySide   bool
	diffPager        bool
	diffOptimal      bool
	diffSections     bool
	diffContext      int
	diffIgnoreSpaces bool
)

var diffCmd = &cobra.Command{
	Use:   "diff <doc> [from] [to] | diff --files <old> <new>",
	Short: "Compare two versions word by word",
	Long: `Aligns two versions of a document at word granularity. Removed words are
shown as [-word-] and added words as {+word+}.

Versions are "current", a version number (3 or v3), "latest", "prev", or a
negative number counting back from the latest version (-1 is latest).
from defaults to prev and to defaults to current.

Examples:
  manuscript diff ch1                # changes made by the last save
  manuscript diff ch1 v1 current     # everything since the first version
  manuscript diff ch1 1 3 --sections # section by section
  manuscript diff --files a.txt b.txt --side-by-side`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runDiff,
}

func registerDiffCommand(root *cobra.Command) {
	diffCmd.Flags().BoolVar(&diffFiles, "files", false, "Compare two text files instead of stored versions")
	diffCmd.Flags().BoolVarP(&diffSideBySide, "side-by-side", "y", false, "Render old and new in two columns (default from ui.side_by_side)")
	diffCmd.Flags().BoolVar(&diffPager, "pager", false, "Show the result in a scrolling pager")
	diffCmd.Flags().BoolVar(&diffOptimal, "optimal", false, "Use a minimal edit script instead of the LCS-anchored merge")
	diffCmd.Flags().BoolVar(&diffSections, "sections", false, "Compare section by section")
	diffCmd.Flags().IntVarP(&diffContext, "context", "C", -1, "Unchanged words shown around changes (default from diff.context)")
	diffCmd.Flags().BoolVar(&diffIgnoreSpaces, "ignore-space", false, "Hide whitespace-only changes")

	root.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	view := ui.NewDiffView(stylesFor(out), outputWidth(), cfg.Diff.Context)
	if diffContext >= 0 {
		view.Context = diffContext
	}
	view.IgnoreWhitespace = diffIgnoreSpaces

	var title, rendered string
	var err error
	if diffFiles {
		title, rendered, err = diffFilePair(cmd, view, args)
	} else {
		title, rendered, err = diffDocument(cmd, view, args)
	}
	if err != nil {
		return err
	}

	if diffPager {
		return ui.RunPager(stylesFor(out), title, rendered)
	}
	fmt.Fprint(out, rendered)
	return nil
}

func diffFilePair(cmd *cobra.Command, view *ui.DiffView, args []string) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("--files takes exactly two paths, got %d", len(args))
	}
	oldText, err := readInput(cmd, args[0])
	if err != nil {
		return "", "", err
	}
	newText, err := readInput(cmd, args[1])
	if err != nil {
		return "", "", err
	}

	mode := cfg.DiffMode()
	if diffOptimal {
		mode = diff.ModeOptimal
	}
	r := diff.NewEngine(mode).Align(oldText, newText)

	view.OldLabel, view.NewLabel = args[0], args[1]
	return args[0] + " → " + args[1], renderResult(view, r), nil
}

func diffDocument(cmd *cobra.Command, view *ui.DiffView, args []string) (string, string, error) {
	docID := args[0]
	fromArg, toArg := "prev", "current"
	if len(args) > 1 {
		fromArg = args[1]
	}
	if len(args) > 2 {
		toArg = args[2]
	}
	from, err := parseVersion(fromArg)
	if err != nil {
		return "", "", err
	}
	to, err := parseVersion(toArg)
	if err != nil {
		return "", "", err
	}

	svc, err := chapterService()
	if err != nil {
		return "", "", err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if diffSections {
		diffs, err := svc.DiffSections(ctx, docID, from, to)
		if err != nil {
			return "", "", fmt.Errorf("diff %s %s..%s: %w", docID, fromArg, toArg, err)
		}
		return fmt.Sprintf("%s %s..%s", docID, fromArg, toArg), view.Sections(diffs), nil
	}

	var a, b chapter.Snapshot
	var r diff.Result
	if diffOptimal {
		if a, err = svc.Snapshot(ctx, docID, from); err == nil {
			b, err = svc.Snapshot(ctx, docID, to)
		}
		if err == nil {
			r = diff.NewEngine(diff.ModeOptimal).Align(a.Content, b.Content)
		}
	} else {
		a, b, r, err = svc.DiffVersions(ctx, docID, from, to)
	}
	if err != nil {
		return "", "", fmt.Errorf("diff %s %s..%s: %w", docID, fromArg, toArg, err)
	}

	view.OldLabel, view.NewLabel = docID+"@"+a.Label, docID+"@"+b.Label
	return fmt.Sprintf("%s %s..%s", docID, a.Label, b.Label), renderResult(view, r), nil
}

func renderResult(view *ui.DiffView, r diff.Result) string {
	var sb strings.Builder
	sb.WriteString(view.Header())
	sb.WriteString(view.Stats(diff.Summarize(r)))
	sb.WriteString("\n\n")
	if diffSideBySide || cfg.UI.SideBySide {
		sb.WriteString(view.SideBySide(r))
	} else {
		sb.WriteString(view.Inline(r))
	}
	return sb.String()
}

// parseVersion maps a version argument to a selector for chapter.Service.
func parseVersion(s string) (int64, error) {
	switch strings.ToLower(s) {
	case "", "current", "now":
		return chapter.Current, nil
	case "latest", "last":
		return -1, nil
	case "prev", "previous":
		return -2, nil
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(strings.ToLower(s), "v"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: want current, latest, prev, N, vN or -N", s)
	}
	return n, nil
}
