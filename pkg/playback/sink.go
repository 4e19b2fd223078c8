package playback

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/haivivi/speechio/pkg/audio/pcm"
)

var (
	// ErrSinkStopped is returned by Write after Stop or before Start.
	ErrSinkStopped = errors.New("playback: sink stopped")
)

// StreamParams describes the audio about to be written to a sink.
type StreamParams struct {
	Encoding   string // "pcm", "mp3", ...
	SampleRate int
}

// Format returns the PCM format for p, falling back to 24 kHz mono.
func (p StreamParams) Format() pcm.Format {
	f, err := pcm.FormatForRate(p.SampleRate)
	if err != nil {
		return pcm.L16Mono24K
	}
	return f
}

// IsPCM reports whether p describes raw 16-bit PCM.
func (p StreamParams) IsPCM() bool {
	return p.Encoding == "" || p.Encoding == "pcm"
}

// Sink is the single audio output device.
//
// Only the Scheduler calls a Sink. Write must not retain chunk. Stop may
// be called concurrently with Write and must make a blocked Write return.
type Sink interface {
	Start(params StreamParams) error
	Write(chunk []byte) error
	Stop() error
	IsBusy() bool
}

// Drainer is implemented by sinks that can wait for queued audio to finish
// playing. The Scheduler drains after a task completes normally.
type Drainer interface {
	Drain(ctx context.Context) error
}

// DefaultSinkQueue is the chunk capacity of a WriterSink.
const DefaultSinkQueue = 32

// WriterSink plays audio by writing it to an io.Writer on its own
// goroutine. Chunks are queued; Stop drops whatever is still queued.
type WriterSink struct {
	w     io.Writer
	queue int

	mu     sync.Mutex
	stream *writerStream
	params StreamParams
}

type writerStream struct {
	chunks chan []byte
	stop   chan struct{}
	done   chan struct{}
	err    error
}

// NewWriterSink creates a sink writing to w with a queue of n chunks. A
// non-positive n uses DefaultSinkQueue.
func NewWriterSink(w io.Writer, n int) *WriterSink {
	if n <= 0 {
		n = DefaultSinkQueue
	}
	return &WriterSink{w: w, queue: n}
}

// Start begins a new stream, stopping any previous one.
func (s *WriterSink) Start(params StreamParams) error {
	s.Stop()

	st := &writerStream{
		chunks: make(chan []byte, s.queue),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.stream = st
	s.params = params
	s.mu.Unlock()

	go s.run(st)
	return nil
}

// Params returns the parameters of the last Start.
func (s *WriterSink) Params() StreamParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *WriterSink) run(st *writerStream) {
	defer close(st.done)
	for {
		select {
		case <-st.stop:
			return
		case p, ok := <-st.chunks:
			if !ok {
				return
			}
			select {
			case <-st.stop:
				return
			default:
			}
			if _, err := s.w.Write(p); err != nil {
				st.err = err
				return
			}
		}
	}
}

// Write queues a copy of chunk. It blocks while the queue is full.
func (s *WriterSink) Write(chunk []byte) error {
	s.mu.Lock()
	st := s.stream
	s.mu.Unlock()
	if st == nil {
		return ErrSinkStopped
	}

	p := make([]byte, len(chunk))
	copy(p, chunk)
	select {
	case st.chunks <- p:
		return nil
	case <-st.stop:
		return ErrSinkStopped
	case <-st.done:
		if st.err != nil {
			return st.err
		}
		return ErrSinkStopped
	}
}

// Stop discards queued chunks and waits for an in-progress write.
func (s *WriterSink) Stop() error {
	s.mu.Lock()
	st := s.stream
	s.stream = nil
	s.mu.Unlock()
	if st == nil {
		return nil
	}
	close(st.stop)
	<-st.done
	return nil
}

// Drain waits until every queued chunk has been written and ends the
// stream. Write must not be called concurrently with Drain.
func (s *WriterSink) Drain(ctx context.Context) error {
	s.mu.Lock()
	st := s.stream
	s.stream = nil
	s.mu.Unlock()
	if st == nil {
		return nil
	}
	close(st.chunks)
	select {
	case <-st.done:
		return st.err
	case <-ctx.Done():
		close(st.stop)
		<-st.done
		return ctx.Err()
	}
}

// IsBusy reports whether a stream is open.
func (s *WriterSink) IsBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return false
	}
	select {
	case <-s.stream.done:
		return false
	default:
		return true
	}
}

var (
	_ Sink    = (*WriterSink)(nil)
	_ Drainer = (*WriterSink)(nil)
)
