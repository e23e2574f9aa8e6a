package chapter

import (
	"context"
	"fmt"

	"manuscript/internal/diff"
	"manuscript/internal/logging"
	"manuscript/internal/section"

	"golang.org/x/sync/errgroup"
)

// Current selects the live document instead of a stored version.
const Current int64 = 0

// Snapshot is one side of a comparison.
type Snapshot struct {
	Label    string
	Content  string
	Sections []section.Section
}

// SectionStatus classifies a section across two snapshots.
type SectionStatus string

const (
	SectionUnchanged SectionStatus = "unchanged"
	SectionChanged   SectionStatus = "changed"
	SectionAdded     SectionStatus = "added"
	SectionRemoved   SectionStatus = "removed"
)

// SectionDiff is the alignment of one section between two snapshots.
// Sections are matched by id.
type SectionDiff struct {
	ID     string
	Title  string
	Status SectionStatus
	Result diff.Result
	Stats  diff.Stats
}

// Snapshot resolves a version selector: Current for the live document, a
// positive number for that version, a negative number counting back from
// the latest version.
func (s *Service) Snapshot(ctx context.Context, docID string, version int64) (Snapshot, error) {
	if version == Current {
		doc, err := s.Open(ctx, docID)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Label: "current", Content: doc.Content, Sections: doc.Sections}, nil
	}

	v, err := s.store.GetVersion(ctx, docID, version)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Label: fmt.Sprintf("v%d", v.Number), Content: v.Content, Sections: v.Sections}, nil
}

// DiffTexts aligns two texts with the service's engine.
func (s *Service) DiffTexts(oldText, newText string) diff.Result {
	timer := logging.StartTimer(logging.CategoryDiff, "align")
	defer timer.StopWithThreshold(s.slowThreshold)
	return s.engine.Align(oldText, newText)
}

// DiffVersions aligns the flattened text of two versions of a document.
func (s *Service) DiffVersions(ctx context.Context, docID string, from, to int64) (Snapshot, Snapshot, diff.Result, error) {
	a, err := s.Snapshot(ctx, docID, from)
	if err != nil {
		return Snapshot{}, Snapshot{}, diff.Result{}, err
	}
	b, err := s.Snapshot(ctx, docID, to)
	if err != nil {
		return Snapshot{}, Snapshot{}, diff.Result{}, err
	}
	return a, b, s.DiffTexts(a.Content, b.Content), nil
}

// DiffSections aligns two versions section by section. The result follows
// the order of the newer snapshot, with removed sections appended in their
// old order. Alignments run in parallel, bounded by Options.Concurrency.
func (s *Service) DiffSections(ctx context.Context, docID string, from, to int64) ([]SectionDiff, error) {
	a, err := s.Snapshot(ctx, docID, from)
	if err != nil {
		return nil, err
	}
	b, err := s.Snapshot(ctx, docID, to)
	if err != nil {
		return nil, err
	}
	return s.CompareSections(ctx, a.Sections, b.Sections)
}

// CompareSections pairs sections by id and aligns each pair.
func (s *Service) CompareSections(ctx context.Context, oldSections, newSections []section.Section) ([]SectionDiff, error) {
	type pair struct {
		id, title    string
		old, new     string
		inOld, inNew bool
	}

	oldByID := make(map[string]section.Section, len(oldSections))
	for _, sec := range oldSections {
		oldByID[sec.ID] = sec
	}

	var pairs []pair
	seen := make(map[string]bool, len(newSections))
	for _, sec := range section.Sorted(newSections) {
		p := pair{id: sec.ID, title: sec.Title, new: sec.Content, inNew: true}
		if prev, ok := oldByID[sec.ID]; ok {
			p.old, p.inOld = prev.Content, true
		}
		seen[sec.ID] = true
		pairs = append(pairs, p)
	}
	for _, sec := range section.Sorted(oldSections) {
		if !seen[sec.ID] {
			pairs = append(pairs, pair{id: sec.ID, title: sec.Title, old: sec.Content, inOld: true})
		}
	}

	out := make([]SectionDiff, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := s.DiffTexts(p.old, p.new)
			d := SectionDiff{ID: p.id, Title: p.title, Result: r, Stats: diff.Summarize(r)}
			switch {
			case !p.inOld:
				d.Status = SectionAdded
			case !p.inNew:
				d.Status = SectionRemoved
			case r.Changed():
				d.Status = SectionChanged
			default:
				d.Status = SectionUnchanged
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.DiffDebug("Compared %d sections", len(out))
	return out, nil
}
