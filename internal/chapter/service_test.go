package chapter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"manuscript/internal/diff"
	"manuscript/internal/section"
	"manuscript/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, maxWords int) (*Service, *store.LocalStore) {
	t.Helper()
	st, err := store.NewLocalStore(filepath.Join(t.TempDir(), "manuscript.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	var mu sync.Mutex
	ids, ticks := 0, 0
	svc := NewService(st, Options{
		MaxWords: maxWords,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			ticks++
			return epoch.Add(time.Duration(ticks) * time.Second)
		},
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			ids++
			return fmt.Sprintf("id%d", ids)
		},
	})
	return svc, st
}

func words(n int, w string) string {
	return strings.TrimSpace(strings.Repeat(w+" ", n))
}

func TestImport_Sectioned(t *testing.T) {
	svc, _ := newTestService(t, 3)
	ctx := context.Background()

	doc, err := svc.Import(ctx, "ch1", "Chapter One", "a b c d e", false)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "a b c\n\nd e", doc.Content)

	history, err := svc.History(ctx, "ch1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestImport_GeneratesID(t *testing.T) {
	svc, _ := newTestService(t, 10)
	doc, err := svc.Import(context.Background(), "", "Untitled", "text", false)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
}

func TestOpen_MigratesLegacyOnce(t *testing.T) {
	svc, st := newTestService(t, 3)
	ctx := context.Background()

	_, err := svc.Import(ctx, "old", "Old", "one two three four five six seven", true)
	require.NoError(t, err)

	raw, err := st.LoadDocument(ctx, "old")
	require.NoError(t, err)
	require.True(t, raw.NeedsMigration())

	doc, err := svc.Open(ctx, "old")
	require.NoError(t, err)
	require.Len(t, doc.Sections, 3)
	assert.Equal(t, []string{"Section 1", "Section 2", "Section 3"},
		[]string{doc.Sections[0].Title, doc.Sections[1].Title, doc.Sections[2].Title})
	assert.NoError(t, doc.Validate())

	again, err := svc.Open(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, doc.Sections[0].ID, again.Sections[0].ID, "second open must not re-migrate")
}

func TestOpen_NotFound(t *testing.T) {
	svc, _ := newTestService(t, 10)
	_, err := svc.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEditSection_SplitsAndPersists(t *testing.T) {
	svc, st := newTestService(t, section.DefaultMaxWords)
	ctx := context.Background()

	doc, err := svc.Import(ctx, "ch", "Ch", "start", false)
	require.NoError(t, err)
	target := doc.Sections[0].ID

	edit, err := svc.EditSection(ctx, "ch", target, words(2001, "w"))
	require.NoError(t, err)
	require.True(t, edit.Split())
	require.Len(t, edit.Created, 1)
	assert.Equal(t, 1, edit.Created[0].WordCount)
	assert.Equal(t, 2001, edit.Document.WordCount)
	assert.Equal(t, int64(2), edit.Save.Version)

	stored, err := st.LoadDocument(ctx, "ch")
	require.NoError(t, err)
	require.Len(t, stored.Sections, 2)
	assert.Equal(t, target, stored.Sections[0].ID)
	assert.Equal(t, 2000, stored.Sections[0].WordCount)
	assert.Empty(t, svc.OverLimit(stored))
}

func TestEditSection_NoChangeSkipsSave(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()
	doc, err := svc.Import(ctx, "ch", "Ch", "same words", false)
	require.NoError(t, err)

	edit, err := svc.EditSection(ctx, "ch", doc.Sections[0].ID, "same words")
	require.NoError(t, err)
	assert.False(t, edit.Save.Saved())
	assert.False(t, edit.Split())

	history, err := svc.History(ctx, "ch")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestEditSection_UnknownSection(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()
	_, err := svc.Import(ctx, "ch", "Ch", "x", false)
	require.NoError(t, err)

	_, err = svc.EditSection(ctx, "ch", "ghost", "y")
	assert.ErrorIs(t, err, section.ErrSectionNotFound)
}

func TestAddRenameDelete(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()
	_, err := svc.Import(ctx, "ch", "Ch", "first", false)
	require.NoError(t, err)

	doc, added, err := svc.AddSection(ctx, "ch")
	require.NoError(t, err)
	assert.Equal(t, 1, added.Order)
	assert.Len(t, doc.Sections, 2)

	doc, err = svc.RenameSection(ctx, "ch", added.ID, "Epilogue")
	require.NoError(t, err)
	got, ok := doc.Section(added.ID)
	require.True(t, ok)
	assert.Equal(t, "Epilogue", got.Title)

	// Title and empty-section changes leave the flattened text alone.
	history, err := svc.History(ctx, "ch")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	doc, err = svc.DeleteSection(ctx, "ch", doc.Sections[0].ID)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, 0, doc.Sections[0].Order)

	_, err = svc.DeleteSection(ctx, "ch", doc.Sections[0].ID)
	assert.ErrorIs(t, err, section.ErrPreconditionFailed)

	reopened, err := svc.Open(ctx, "ch")
	require.NoError(t, err)
	assert.Len(t, reopened.Sections, 1)
}

func TestReplaceContent(t *testing.T) {
	svc, _ := newTestService(t, 3)
	ctx := context.Background()
	_, err := svc.Import(ctx, "ch", "Ch", "a b c d e f", false)
	require.NoError(t, err)

	doc, err := svc.ReplaceContent(ctx, "ch", "one two three four five six seven eight")
	require.NoError(t, err)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "one two three four", doc.Sections[0].Content)
	assert.Len(t, svc.OverLimit(doc), 2)

	out, err := svc.Export(ctx, "ch")
	require.NoError(t, err)
	assert.Equal(t, "one two three four\n\nfive six seven eight", out)
}

func TestConcurrentEditsSerialize(t *testing.T) {
	svc, _ := newTestService(t, 5)
	ctx := context.Background()
	doc, err := svc.Import(ctx, "ch", "Ch", "seed", false)
	require.NoError(t, err)
	target := doc.Sections[0].ID

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := svc.AddSection(ctx, "ch")
			assert.NoError(t, err)
			_, err = svc.EditSection(ctx, "ch", target, words(i+1, "v"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	final, err := svc.Open(ctx, "ch")
	require.NoError(t, err)
	assert.NoError(t, final.Validate())
	assert.GreaterOrEqual(t, len(final.Sections), 9)
}

func TestDocuments(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()
	_, err := svc.Import(ctx, "a", "A", "x", false)
	require.NoError(t, err)
	_, err = svc.Import(ctx, "b", "B", "y z", true)
	require.NoError(t, err)

	docs, err := svc.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
}

func TestDiffVersions(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx := context.Background()
	doc, err := svc.Import(ctx, "ch", "Ch", "The cat sat.", false)
	require.NoError(t, err)
	_, err = svc.EditSection(ctx, "ch", doc.Sections[0].ID, "The dog sat down.")
	require.NoError(t, err)

	a, b, r, err := svc.DiffVersions(ctx, "ch", 1, Current)
	require.NoError(t, err)
	assert.Equal(t, "v1", a.Label)
	assert.Equal(t, "current", b.Label)
	assert.Equal(t, "The cat sat.", r.OldText())
	assert.Equal(t, "The dog sat down.", r.NewText())
	assert.Equal(t, diff.Stats{Added: 3, Removed: 2, Unchanged: 1}, diff.Summarize(r))

	_, _, latest, err := svc.DiffVersions(ctx, "ch", -2, -1)
	require.NoError(t, err)
	assert.Equal(t, r.NewText(), latest.NewText())

	_, _, _, err = svc.DiffVersions(ctx, "ch", 7, Current)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDiffSections(t *testing.T) {
	svc, _ := newTestService(t, 2)
	ctx := context.Background()
	doc, err := svc.Import(ctx, "ch", "Ch", "a b c d e f", false)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 3)

	_, err = svc.EditSection(ctx, "ch", doc.Sections[0].ID, "a z")
	require.NoError(t, err)
	_, err = svc.DeleteSection(ctx, "ch", doc.Sections[2].ID)
	require.NoError(t, err)
	_, added, err := svc.AddSection(ctx, "ch")
	require.NoError(t, err)
	_, err = svc.EditSection(ctx, "ch", added.ID, "new words")
	require.NoError(t, err)

	diffs, err := svc.DiffSections(ctx, "ch", 1, Current)
	require.NoError(t, err)
	require.Len(t, diffs, 4)

	statuses := map[string]SectionStatus{}
	for _, d := range diffs {
		statuses[d.ID] = d.Status
	}
	assert.Equal(t, SectionChanged, statuses[doc.Sections[0].ID])
	assert.Equal(t, SectionUnchanged, statuses[doc.Sections[1].ID])
	assert.Equal(t, SectionAdded, statuses[added.ID])
	assert.Equal(t, SectionRemoved, statuses[doc.Sections[2].ID])
	assert.Equal(t, doc.Sections[2].ID, diffs[3].ID, "removed sections come last")
	assert.Equal(t, 1, diffs[0].Stats.Added)
}

func TestCompareSections_Cancelled(t *testing.T) {
	svc, _ := newTestService(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.CompareSections(ctx, nil, []section.Section{{ID: "a", Content: "x", WordCount: 1}})
	assert.ErrorIs(t, err, context.Canceled)
}
