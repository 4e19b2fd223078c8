package speechcache

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"Hello, world!", "hello world", true},
		{"你好，世界！", "你好世界", true},
		{"  hi\n", "HI", true},
		{"hello", "hullo", false},
	}
	for _, tt := range tests {
		fa, fb := Fingerprint(tt.a), Fingerprint(tt.b)
		if (fa == fb) != tt.same {
			t.Errorf("Fingerprint(%q) == Fingerprint(%q) is %v, want %v", tt.a, tt.b, fa == fb, tt.same)
		}
	}
	if got := Fingerprint("!!! ..."); got != "" {
		t.Errorf("Fingerprint(punctuation only) = %q, want empty", got)
	}
	if got := len(Fingerprint("hi")); got != 64 {
		t.Errorf("len(Fingerprint) = %d, want 64", got)
	}
}

func newBadgerIndex(t *testing.T) *BadgerIndex {
	t.Helper()
	idx, err := OpenBadger(BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func testIndex(t *testing.T, idx Index) {
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if _, err := idx.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: error = %v, want ErrNotFound", err)
	}

	e := &Entry{Fingerprint: "fp1", Text: "hi", Path: "fp/fp1.pcm", Encoding: "pcm", SampleRate: 24000, Size: 10, CreatedAt: created}
	if err := idx.Put(ctx, e); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := idx.Get(ctx, "fp1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Path != e.Path || got.SampleRate != 24000 || got.Size != 10 || !got.CreatedAt.Equal(created) {
		t.Errorf("Get = %+v, want %+v", got, e)
	}

	if err := idx.Delete(ctx, "fp1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := idx.Delete(ctx, "fp1"); err != nil {
		t.Fatalf("Delete twice: %v", err)
	}
	if _, err := idx.Get(ctx, "fp1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Delete: error = %v", err)
	}
}

func TestMemoryIndex(t *testing.T) {
	testIndex(t, NewMemoryIndex())
}

func TestBadgerIndex(t *testing.T) {
	testIndex(t, newBadgerIndex(t))
}

func TestBadgerIndexAll(t *testing.T) {
	ctx := context.Background()
	idx := newBadgerIndex(t)
	for _, fp := range []string{"a", "b", "c"} {
		if err := idx.Put(ctx, &Entry{Fingerprint: fp, Path: fp}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	n := 0
	for e, err := range idx.All() {
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		if e.Path != e.Fingerprint {
			t.Errorf("entry = %+v", e)
		}
		n++
	}
	if n != 3 {
		t.Errorf("All yielded %d entries, want 3", n)
	}
}

func newTestCache(t *testing.T) (*Cache, *MemoryIndex, *Local) {
	t.Helper()
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	idx := NewMemoryIndex()
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return New(idx, store, WithClock(func() time.Time { return now })), idx, store
}

func TestCacheLookupMiss(t *testing.T) {
	c, _, _ := newTestCache(t)
	if _, _, err := c.Lookup(context.Background(), "hi"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Lookup error = %v, want ErrMiss", err)
	}
	if _, _, err := c.Lookup(context.Background(), "..."); !errors.Is(err, ErrMiss) {
		t.Fatalf("Lookup(punctuation) error = %v, want ErrMiss", err)
	}
}

func TestCacheCommitLookup(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t)

	entry, err := c.Commit(ctx, "Hi!", Artifact{Data: []byte("pcm-bytes"), Encoding: "pcm", SampleRate: 24000})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if entry.Size != 9 || entry.Path != entry.Fingerprint[:2]+"/"+entry.Fingerprint+".pcm" {
		t.Errorf("entry = %+v", entry)
	}
	if !c.Contains(ctx, "hi") {
		t.Error("Contains(hi) = false")
	}

	rc, got, err := c.Lookup(ctx, "hi")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "pcm-bytes" {
		t.Errorf("artifact = %q", data)
	}
	if got.SampleRate != 24000 || got.Encoding != "pcm" {
		t.Errorf("entry = %+v", got)
	}
}

func TestCacheStaleEntry(t *testing.T) {
	ctx := context.Background()
	c, idx, store := newTestCache(t)

	entry, err := c.Commit(ctx, "hi", Artifact{Data: []byte("x"), Encoding: "pcm"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := store.Delete(ctx, entry.Path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := c.Lookup(ctx, "hi"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Lookup error = %v, want ErrMiss", err)
	}
	if idx.Len() != 0 {
		t.Errorf("stale entry kept, index has %d entries", idx.Len())
	}
}

type failingIndex struct{ *MemoryIndex }

func (*failingIndex) Get(context.Context, string) (*Entry, error) {
	return nil, errors.New("disk on fire")
}

func TestCacheBackendError(t *testing.T) {
	store, _ := NewLocal(t.TempDir())
	c := New(&failingIndex{NewMemoryIndex()}, store)
	_, _, err := c.Lookup(context.Background(), "hi")
	if !errors.Is(err, ErrCache) {
		t.Fatalf("Lookup error = %v, want ErrCache", err)
	}
	if errors.Is(err, ErrMiss) {
		t.Fatal("backend error reported as ErrMiss")
	}
}

func TestCacheCommitEmpty(t *testing.T) {
	c, _, _ := newTestCache(t)
	if _, err := c.Commit(context.Background(), "hi", Artifact{}); !errors.Is(err, ErrCache) {
		t.Fatalf("Commit empty: error = %v, want ErrCache", err)
	}
}

func TestCacheRemove(t *testing.T) {
	ctx := context.Background()
	c, _, store := newTestCache(t)
	entry, _ := c.Commit(ctx, "bye", Artifact{Data: []byte("x"), Encoding: "mp3"})
	if err := c.Remove(ctx, "bye"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ok, _ := store.Exists(ctx, entry.Path); ok {
		t.Error("artifact still exists")
	}
	if err := c.Remove(ctx, "bye"); err != nil {
		t.Fatalf("Remove twice: %v", err)
	}
}

func TestCacheS3Store(t *testing.T) {
	ctx := context.Background()
	mock := newMockS3()
	c := New(newBadgerIndex(t), NewS3(mock, "bucket", "tts"))

	entry, err := c.Commit(ctx, "story time", Artifact{Data: []byte("abc"), Encoding: "pcm", SampleRate: 16000})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, ok := mock.object("tts/" + entry.Path); !ok {
		t.Fatalf("object tts/%s not uploaded", entry.Path)
	}
	rc, _, err := c.Lookup(ctx, "Story time.")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	rc.Close()
}
