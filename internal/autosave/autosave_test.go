package autosave

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDebouncer_SingleCall(t *testing.T) {
	var called int32
	debouncer := NewDebouncer(20 * time.Millisecond)

	debouncer.Debounce(func() {
		atomic.AddInt32(&called, 1)
	})

	require.Eventually(t, func() bool { return atomic.LoadInt32(&called) == 1 }, time.Second, 5*time.Millisecond)
	debouncer.Wait()
}

func TestDebouncer_RapidCalls(t *testing.T) {
	var called, lastValue int32
	debouncer := NewDebouncer(50 * time.Millisecond)

	for i := 1; i <= 10; i++ {
		value := int32(i)
		debouncer.Debounce(func() {
			atomic.StoreInt32(&lastValue, value)
			atomic.AddInt32(&called, 1)
		})
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&called) > 0 }, time.Second, 5*time.Millisecond)
	debouncer.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&called), "only the last call runs")
	assert.Equal(t, int32(10), atomic.LoadInt32(&lastValue))
}

func TestDebouncer_Cancel(t *testing.T) {
	var called int32
	debouncer := NewDebouncer(20 * time.Millisecond)

	debouncer.Debounce(func() { atomic.AddInt32(&called, 1) })
	debouncer.Cancel()

	time.Sleep(60 * time.Millisecond)
	debouncer.Wait()
	assert.Equal(t, int32(0), atomic.LoadInt32(&called))
}

func TestDebouncer_Flush(t *testing.T) {
	var called int32
	debouncer := NewDebouncer(time.Hour)

	assert.False(t, debouncer.Flush(), "nothing pending")

	debouncer.Debounce(func() { atomic.AddInt32(&called, 1) })
	assert.True(t, debouncer.Flush())
	assert.Equal(t, int32(1), atomic.LoadInt32(&called))
	assert.False(t, debouncer.Flush())
	debouncer.Wait()
}

func TestDebouncer_Immediate(t *testing.T) {
	var pending, immediate int32
	debouncer := NewDebouncer(20 * time.Millisecond)

	debouncer.Debounce(func() { atomic.AddInt32(&pending, 1) })
	debouncer.Immediate(func() { atomic.AddInt32(&immediate, 1) })

	time.Sleep(60 * time.Millisecond)
	debouncer.Wait()
	assert.Equal(t, int32(0), atomic.LoadInt32(&pending))
	assert.Equal(t, int32(1), atomic.LoadInt32(&immediate))
}

// recorder is a Sink that keeps every saved content.
type recorder struct {
	mu    sync.Mutex
	saved []string
	fail  error
}

func (r *recorder) sink(_ context.Context, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.saved = append(r.saved, content)
	return nil
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.saved...)
}

func startWatcher(t *testing.T, initial string, rec *recorder) (*Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chapter.txt")
	require.NoError(t, os.WriteFile(path, []byte(initial), 0644))

	w, err := NewWatcher(path, rec.sink, 30*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w, path
}

func TestWatcher_SavesSettledContent(t *testing.T) {
	rec := &recorder{}
	w, path := startWatcher(t, "draft", rec)

	for _, content := range []string{"draft one", "draft one two", "draft one two three"} {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"draft one two three"}, rec.all())
	assert.Equal(t, 1, w.Stats().Saves)
	assert.GreaterOrEqual(t, w.Stats().Events, 1)
}

func TestWatcher_SkipsUnchangedContent(t *testing.T) {
	rec := &recorder{}
	w, path := startWatcher(t, "same", rec)

	require.NoError(t, os.WriteFile(path, []byte("same"), 0644))

	require.Eventually(t, func() bool { return w.Stats().Skipped >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, rec.all())
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	rec := &recorder{}
	w, path := startWatcher(t, "x", rec)

	other := filepath.Join(filepath.Dir(path), "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("unrelated"), 0644))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, w.Stats().Events)
	assert.Empty(t, rec.all())
}

func TestWatcher_SinkErrorIsCounted(t *testing.T) {
	rec := &recorder{fail: errors.New("disk full")}
	w, path := startWatcher(t, "a", rec)

	require.NoError(t, os.WriteFile(path, []byte("b"), 0644))
	require.Eventually(t, func() bool { return w.Stats().Errors >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, w.Stats().Saves)
}

func TestWatcher_StopFlushesPendingSave(t *testing.T) {
	rec := &recorder{}
	path := filepath.Join(t.TempDir(), "chapter.txt")
	require.NoError(t, os.WriteFile(path, []byte("before"), 0644))

	w, err := NewWatcher(path, rec.sink, time.Hour)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte("after"), 0644))
	require.Eventually(t, func() bool { return w.Stats().Events >= 1 }, 2*time.Second, 10*time.Millisecond)

	w.Stop()
	assert.Equal(t, []string{"after"}, rec.all())
	w.Stop() // idempotent
}

func TestWatcher_StartMissingFile(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "missing.txt"), (&recorder{}).sink, 0)
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
}

func TestNewWatcher_NilSink(t *testing.T) {
	_, err := NewWatcher("x", nil, 0)
	assert.Error(t, err)
}

func TestWatcher_FlushAfterCancelStillSaves(t *testing.T) {
	var saved []string
	var mu sync.Mutex
	sink := func(ctx context.Context, content string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		saved = append(saved, content)
		return nil
	}

	path := filepath.Join(t.TempDir(), "chapter.txt")
	require.NoError(t, os.WriteFile(path, []byte("before"), 0644))
	w, err := NewWatcher(path, sink, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	require.NoError(t, os.WriteFile(path, []byte("after"), 0644))
	require.Eventually(t, func() bool { return w.Stats().Events >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-w.Done()
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"after"}, saved)
	assert.Equal(t, 0, w.Stats().Errors)
}
