package playback

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeStream yields chunks sent on its channel. Closing the channel
// completes the stream.
type fakeStream struct {
	params StreamParams
	chunks chan []byte
	err    error

	cancelOnce sync.Once
	cancelled  chan struct{}
	completed  atomic.Bool
	closed     atomic.Bool
	onClose    func()
	onCancel   func()
}

func newFakeStream(chunks ...string) *fakeStream {
	st := &fakeStream{
		params:    StreamParams{Encoding: "pcm", SampleRate: 16000},
		chunks:    make(chan []byte, len(chunks)),
		cancelled: make(chan struct{}),
	}
	for _, c := range chunks {
		st.chunks <- []byte(c)
	}
	close(st.chunks)
	return st
}

// newOpenStream returns a stream fed by the test.
func newOpenStream() *fakeStream {
	return &fakeStream{
		params:    StreamParams{Encoding: "pcm", SampleRate: 16000},
		chunks:    make(chan []byte),
		cancelled: make(chan struct{}),
	}
}

func (s *fakeStream) Params() StreamParams { return s.params }

func (s *fakeStream) Recv() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			select {
			case <-s.cancelled:
				return
			case c, ok := <-s.chunks:
				if !ok {
					if s.err != nil {
						yield(nil, s.err)
						return
					}
					s.completed.Store(true)
					return
				}
				if !yield(c, nil) {
					return
				}
			}
		}
	}
}

func (s *fakeStream) Cancel() {
	s.cancelOnce.Do(func() {
		close(s.cancelled)
		if s.onCancel != nil {
			s.onCancel()
		}
	})
}

func (s *fakeStream) isCancelled() bool {
	select {
	case <-s.cancelled:
		return true
	default:
		return false
	}
}

func (s *fakeStream) Completed() bool { return s.completed.Load() }

func (s *fakeStream) Close() error {
	if s.closed.CompareAndSwap(false, true) && s.onClose != nil {
		s.onClose()
	}
	return nil
}

// fakeSynth records synthesized texts and tracks streams open at once.
type fakeSynth struct {
	mu        sync.Mutex
	calls     []string
	active    int
	maxActive int

	// stream overrides the default one-chunk stream for a task.
	stream func(task Task) (*fakeStream, error)
}

func (f *fakeSynth) Synthesize(_ context.Context, task Task) (Stream, error) {
	var st *fakeStream
	var err error
	if f.stream != nil {
		st, err = f.stream(task)
	} else {
		st = newFakeStream(task.Text)
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, task.Text)
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	f.mu.Unlock()

	st.onClose = func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}
	return st, nil
}

func (f *fakeSynth) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeSink collects written audio. Like WriterSink it rejects writes
// between Stop and the next Start.
type fakeSink struct {
	mu      sync.Mutex
	data    bytes.Buffer
	writes  int
	starts  []StreamParams
	stops   int
	stopped bool
	drains  int
	written chan struct{}
	failErr error
}

func newFakeSink() *fakeSink {
	return &fakeSink{written: make(chan struct{}, 64)}
}

func (s *fakeSink) Start(p StreamParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts = append(s.starts, p)
	s.stopped = false
	return nil
}

func (s *fakeSink) Write(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	if s.stopped {
		return ErrSinkStopped
	}
	s.data.Write(chunk)
	s.writes++
	select {
	case s.written <- struct{}{}:
	default:
	}
	return nil
}

func (s *fakeSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.stopped = true
	return nil
}

func (s *fakeSink) Drain(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drains++
	return nil
}

func (s *fakeSink) IsBusy() bool { return false }

func (s *fakeSink) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data.Bytes()...)
}

func (s *fakeSink) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

var errSynth = errors.New("synth down")

// startScheduler runs s until the test ends.
func startScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		s.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Run did not return")
		}
	})
}

func wait(t *testing.T, h *Handle) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait(%q): %v", h.Task().Text, err)
	}
	return r
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
