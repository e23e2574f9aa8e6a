package main

import (
	"fmt"
	"strconv"

	"manuscript/cmd/manuscript/ui"
	"manuscript/internal/section"

	"github.com/spf13/cobra"
)

// Section arguments accept either a section id or a 1-based position.

var sectionsCmd = &cobra.Command{
	Use:   "sections <doc>",
	Short: "List sections with word counts and over-limit warnings",
	Args:  cobra.ExactArgs(1),
	RunE:  runSections,
}

var editCmd = &cobra.Command{
	Use:   "edit <doc> <section> <file>",
	Short: "Replace a section's content, splitting it past the word limit",
	Args:  cobra.ExactArgs(3),
	RunE:  runEdit,
}

var renameCmd = &cobra.Command{
	Use:   "rename <doc> <section> <title>",
	Short: "Retitle a section",
	Args:  cobra.ExactArgs(3),
	RunE:  runRename,
}

var addCmd = &cobra.Command{
	Use:   "add <doc>",
	Short: "Append an empty section",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

var rmCmd = &cobra.Command{
	Use:   "rm <doc> <section>",
	Short: "Delete a section (a document keeps at least one)",
	Args:  cobra.ExactArgs(2),
	RunE:  runRemove,
}

func registerSectionCommands(root *cobra.Command) {
	root.AddCommand(sectionsCmd, editCmd, renameCmd, addCmd, rmCmd)
}

func runSections(cmd *cobra.Command, args []string) error {
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
	out := cmd.OutOrStdout()
	fmt.Fprint(out, ui.SectionList(stylesFor(out), doc, svc.MaxWords()))
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	docID, ref, file := args[0], args[1], args[2]
	content, err := readInput(cmd, file)
	if err != nil {
		return err
	}
	svc, err := chapterService()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	doc, err := svc.Open(ctx, docID)
	if err != nil {
		return err
	}
	target, err := resolveSection(doc, ref)
	if err != nil {
		return err
	}

	edit, err := svc.EditSection(ctx, docID, target.ID, content)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case !edit.Save.Saved():
		fmt.Fprintf(out, "%s unchanged\n", target.Title)
	case edit.Split():
		fmt.Fprintf(out, "%s split into %d sections (version %d)\n", target.Title, len(edit.Created)+1, edit.Save.Version)
		for _, sec := range edit.Created {
			fmt.Fprintf(out, "  + %s (%d words) %s\n", sec.Title, sec.WordCount, sec.ID)
		}
	default:
		fmt.Fprintf(out, "Saved %s (version %d, %d words)\n", target.Title, edit.Save.Version, edit.Document.WordCount)
	}
	return nil
}

func runRename(cmd *cobra.Command, args []string) error {
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
	target, err := resolveSection(doc, args[1])
	if err != nil {
		return err
	}
	if _, err := svc.RenameSection(ctx, args[0], target.ID, args[2]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renamed %q to %q\n", target.Title, args[2])
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	svc, err := chapterService()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	_, added, err := svc.AddSection(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s at position %d: %s\n", added.Title, added.Order+1, added.ID)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
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
	target, err := resolveSection(doc, args[1])
	if err != nil {
		return err
	}
	doc, err = svc.DeleteSection(ctx, args[0], target.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s; %d sections remain\n", target.Title, len(doc.Sections))
	return nil
}

// resolveSection finds a section by id, then by 1-based position.
func resolveSection(doc section.Document, ref string) (section.Section, error) {
	if sec, ok := doc.Section(ref); ok {
		return sec, nil
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if sec, ok := doc.SectionAt(n - 1); ok {
			return sec, nil
		}
	}
	return section.Section{}, fmt.Errorf("%s has no section %q: %w", doc.ID, ref, section.ErrSectionNotFound)
}
