package speechcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"
)

var (
	// ErrMiss is returned by Lookup when no usable entry exists.
	ErrMiss = errors.New("speechcache: miss")

	// ErrCache wraps index and store failures. Callers treat it as a miss.
	ErrCache = errors.New("speechcache: cache error")
)

// Artifact is the audio committed for one text.
type Artifact struct {
	Data       []byte
	Encoding   string // e.g. "pcm", "mp3"
	SampleRate int
}

// Cache combines an Index and a FileStore.
type Cache struct {
	index  Index
	store  FileStore
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithClock overrides time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache over index and store.
func New(index Index, store FileStore, opts ...Option) *Cache {
	c := &Cache{
		index:  index,
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "speechcache")
	return c
}

// artifactPath spreads artifacts over 256 directories.
func artifactPath(fp, encoding string) string {
	ext := encoding
	if ext == "" {
		ext = "bin"
	}
	return fp[:2] + "/" + fp + "." + ext
}

// Lookup opens the cached artifact for text. It returns ErrMiss when there
// is none, or an error wrapping ErrCache when the backends fail. An index
// entry whose artifact has vanished is dropped and reported as a miss.
func (c *Cache) Lookup(ctx context.Context, text string) (io.ReadCloser, *Entry, error) {
	fp := Fingerprint(text)
	if fp == "" {
		return nil, nil, ErrMiss
	}

	entry, err := c.index.Get(ctx, fp)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, ErrMiss
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: get %s: %v", ErrCache, fp, err)
	}

	rc, err := c.store.Read(ctx, entry.Path)
	if errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("drop stale cache entry", "fingerprint", fp, "path", entry.Path)
		if err := c.index.Delete(ctx, fp); err != nil {
			c.logger.Warn("delete cache entry", "fingerprint", fp, "error", err)
		}
		return nil, nil, ErrMiss
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s: %v", ErrCache, entry.Path, err)
	}
	return rc, entry, nil
}

// Contains reports whether text has an index entry.
func (c *Cache) Contains(ctx context.Context, text string) bool {
	fp := Fingerprint(text)
	if fp == "" {
		return false
	}
	_, err := c.index.Get(ctx, fp)
	return err == nil
}

// Commit stores a for text and returns the new entry. The artifact is
// written before the index so a reader never sees an entry without data.
func (c *Cache) Commit(ctx context.Context, text string, a Artifact) (*Entry, error) {
	fp := Fingerprint(text)
	if fp == "" {
		return nil, fmt.Errorf("%w: text %q has no fingerprint", ErrCache, text)
	}
	if len(a.Data) == 0 {
		return nil, fmt.Errorf("%w: empty artifact", ErrCache)
	}

	path := artifactPath(fp, a.Encoding)
	w, err := c.store.Write(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", ErrCache, path, err)
	}
	n, err := io.Copy(w, bytes.NewReader(a.Data))
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", ErrCache, path, err)
	}

	entry := &Entry{
		Fingerprint: fp,
		Text:        text,
		Path:        path,
		Encoding:    a.Encoding,
		SampleRate:  a.SampleRate,
		Size:        n,
		CreatedAt:   c.now(),
	}
	if err := c.index.Put(ctx, entry); err != nil {
		return nil, fmt.Errorf("%w: put %s: %v", ErrCache, fp, err)
	}
	c.logger.Debug("cache committed", "fingerprint", fp, "size", n)
	return entry, nil
}

// Remove deletes the entry and artifact for text.
func (c *Cache) Remove(ctx context.Context, text string) error {
	fp := Fingerprint(text)
	if fp == "" {
		return nil
	}
	entry, err := c.index.Get(ctx, fp)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: get %s: %v", ErrCache, fp, err)
	}
	if err := c.index.Delete(ctx, fp); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrCache, fp, err)
	}
	if err := c.store.Delete(ctx, entry.Path); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrCache, entry.Path, err)
	}
	return nil
}

// Close closes the index.
func (c *Cache) Close() error {
	return c.index.Close()
}
