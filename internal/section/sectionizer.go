package section

import (
	"fmt"
	"strings"

	"manuscript/internal/tokenize"
)

// Migrate converts legacy flat content into sections of at most MaxWords
// words, titled "Section 1", "Section 2", ... Empty or whitespace-only
// content yields exactly one empty section. Words are never split and keep
// their order.
func (s *Sectionizer) Migrate(content string) []Section {
	chunks := tokenize.Chunk(content, s.maxWords)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	now := s.now()
	out := make([]Section, len(chunks))
	for i, chunk := range chunks {
		out[i] = Section{
			ID:        s.newID(),
			Title:     fmt.Sprintf("Section %d", i+1),
			Content:   chunk,
			Order:     i,
			WordCount: countWords(chunk),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return out
}

// UpdateContent replaces the content of section id.
//
// When the new content exceeds MaxWords it is re-chunked. The first chunk
// stays in the edited section (same id, title and CreatedAt); every further
// chunk becomes a new section placed directly after it with a fresh id and a
// title no other section uses. Later sections shift down so the order
// sequence stays gapless. This is the only content edit that changes the
// number of sections.
func (s *Sectionizer) UpdateContent(sections []Section, id, content string) ([]Section, error) {
	out := Sorted(sections)
	idx := indexOf(out, id)
	if idx < 0 {
		return nil, fmt.Errorf("update section %s: %w", id, ErrSectionNotFound)
	}

	now := s.now()
	target := out[idx]
	target.Content = content
	target.WordCount = countWords(content)
	target.UpdatedAt = now

	if target.WordCount <= s.maxWords {
		out[idx] = target
		return out, nil
	}

	chunks := tokenize.Chunk(content, s.maxWords)
	titles := usedTitles(out)

	split := make([]Section, 0, len(chunks))
	target.Content = chunks[0]
	target.WordCount = countWords(chunks[0])
	split = append(split, target)
	for part, chunk := range chunks[1:] {
		title := uniqueTitle(titles, continuationFormat(target.Title), part+2)
		split = append(split, Section{
			ID:        s.newID(),
			Title:     title,
			Content:   chunk,
			WordCount: countWords(chunk),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	result := make([]Section, 0, len(out)+len(split)-1)
	result = append(result, out[:idx]...)
	result = append(result, split...)
	result = append(result, out[idx+1:]...)
	renumber(result)
	return result, nil
}

// UpdateTitle renames section id. Titles are metadata only and never reach
// the flattened text.
func (s *Sectionizer) UpdateTitle(sections []Section, id, title string) ([]Section, error) {
	out := Sorted(sections)
	idx := indexOf(out, id)
	if idx < 0 {
		return nil, fmt.Errorf("rename section %s: %w", id, ErrSectionNotFound)
	}
	out[idx].Title = title
	out[idx].UpdatedAt = s.now()
	return out, nil
}

// Add appends an empty section with the next order value. The new section is
// returned alongside the list so the caller can select it.
func (s *Sectionizer) Add(sections []Section) ([]Section, Section) {
	out := Sorted(sections)
	renumber(out)

	now := s.now()
	added := Section{
		ID:        s.newID(),
		Title:     uniqueTitle(usedTitles(out), "Section %d", len(out)+1),
		Order:     len(out),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return append(out, added), added
}

// Delete removes section id and moves every later section up by one.
// Deleting the only remaining section fails with ErrPreconditionFailed.
func (s *Sectionizer) Delete(sections []Section, id string) ([]Section, error) {
	if len(sections) <= 1 {
		return nil, fmt.Errorf("delete section %s: %w: a document must keep at least one section", id, ErrPreconditionFailed)
	}

	out := Sorted(sections)
	idx := indexOf(out, id)
	if idx < 0 {
		return nil, fmt.Errorf("delete section %s: %w", id, ErrSectionNotFound)
	}

	removed := out[idx].Order
	result := make([]Section, 0, len(out)-1)
	for i, sec := range out {
		if i == idx {
			continue
		}
		if sec.Order > removed {
			sec.Order--
		}
		result = append(result, sec)
	}
	return result, nil
}

// Flatten joins the trimmed contents of all non-empty sections, in order,
// with a blank line. Titles are not included.
func Flatten(sections []Section) string {
	parts := make([]string, 0, len(sections))
	for _, sec := range Sorted(sections) {
		if c := strings.TrimSpace(sec.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, Separator)
}

// Unflatten redistributes edited flat text over the existing sections.
//
// The words of content are cut into len(existing) contiguous pieces of
// ceil(total/N) words; piece i goes to the section at order i. Only the
// section count survives: the original section breaks are not recovered, and
// pieces are not re-split when they exceed MaxWords. With no existing
// sections this is Migrate.
func (s *Sectionizer) Unflatten(content string, existing []Section) []Section {
	if len(existing) == 0 {
		return s.Migrate(content)
	}

	out := Sorted(existing)
	pieces := tokenize.Split(content, len(out))
	now := s.now()
	for i := range out {
		out[i].Order = i
		if out[i].Content == pieces[i] {
			continue
		}
		out[i].Content = pieces[i]
		out[i].WordCount = countWords(pieces[i])
		out[i].UpdatedAt = now
	}
	return out
}

// renumber assigns positional orders to an already sorted list.
func renumber(sections []Section) {
	for i := range sections {
		sections[i].Order = i
	}
}

func usedTitles(sections []Section) map[string]bool {
	used := make(map[string]bool, len(sections))
	for _, s := range sections {
		used[s.Title] = true
	}
	return used
}

// continuationFormat is the title pattern for chunks split off a section.
func continuationFormat(title string) string {
	if strings.TrimSpace(title) == "" {
		return "Section %d"
	}
	return strings.ReplaceAll(title, "%", "%%") + " (part %d)"
}

// uniqueTitle formats n, n+1, ... into format until the title is not in used,
// then records it.
func uniqueTitle(used map[string]bool, format string, n int) string {
	for ; ; n++ {
		title := fmt.Sprintf(format, n)
		if !used[title] {
			used[title] = true
			return title
		}
	}
}
