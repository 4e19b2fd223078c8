package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haivivi/speechio/pkg/audio/pcm"
	"github.com/haivivi/speechio/pkg/speechcache"
)

var (
	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("playback: scheduler closed")

	// ErrRunning is returned by Run when the dispatch loop is already running.
	ErrRunning = errors.New("playback: scheduler already running")

	errInterrupted = errors.New("playback: interrupted")
)

// State is the dispatch state of a Scheduler.
type State int

const (
	StateIdle State = iota
	StateDispatching
	StateSpeaking
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateSpeaking:
		return "speaking"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Default chunking for audio read from the cache.
const DefaultCacheChunk = 100 * time.Millisecond

// Scheduler plays tasks one at a time on a single Sink.
//
// High priority tasks are dispatched before normal ones; within a class
// tasks play in enqueue order. A task already speaking is never preempted
// by a new task; callers combine EnqueuePriority with Interrupt for that.
type Scheduler struct {
	synth Synthesizer
	sink  Sink

	cache      *speechcache.Cache
	resetStory func()
	logger     *slog.Logger
	cacheChunk time.Duration

	mu       sync.Mutex
	cond     *sync.Cond
	priority []*Handle
	normal   []*Handle
	paused   bool
	state    State
	active   *activeTask
	running  bool
	closed   bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCache enables the speech cache.
func WithCache(c *speechcache.Cache) Option {
	return func(s *Scheduler) {
		s.cache = c
	}
}

// WithStoryReset sets the hook run by ClearStory tasks.
func WithStoryReset(fn func()) Option {
	return func(s *Scheduler) {
		s.resetStory = fn
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithCacheChunk sets the chunk duration used when playing cached audio.
func WithCacheChunk(d time.Duration) Option {
	return func(s *Scheduler) {
		s.cacheChunk = d
	}
}

// NewScheduler creates a scheduler. Call Run or Start to begin dispatching.
func NewScheduler(synth Synthesizer, sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		synth:      synth,
		sink:       sink,
		logger:     slog.Default(),
		cacheChunk: DefaultCacheChunk,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "playback")
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Enqueue adds task to the queue selected by task.Priority.
func (s *Scheduler) Enqueue(task Task) *Handle {
	h := newHandle(task)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		h.resolve(Result{Status: StatusCleared})
		return h
	}
	if task.Priority == PriorityHigh {
		s.priority = append(s.priority, h)
	} else {
		s.normal = append(s.normal, h)
	}
	recordQueueDepth(len(s.priority), len(s.normal))
	s.cond.Broadcast()
	return h
}

// EnqueuePriority adds task to the high priority queue.
func (s *Scheduler) EnqueuePriority(task Task) *Handle {
	task.Priority = PriorityHigh
	return s.Enqueue(task)
}

// Pause stops dispatching. A task already speaking plays to its end;
// queued tasks are kept.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	if s.active == nil {
		s.state = StatePaused
	}
}

// Resume continues dispatching after Pause.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.cond.Broadcast()
}

// Interrupt stops the task that is speaking and leaves Paused. Queues are
// kept. Once Interrupt returns no more audio of the interrupted task
// reaches the sink.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	a := s.active
	s.active = nil
	s.paused = false
	if s.state == StatePaused || s.state == StateSpeaking {
		s.state = StateIdle
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	if a == nil {
		return
	}
	// dispatch waits on stopped before taking the next task, so the
	// sink is stopped before another task can start it.
	defer close(a.stopped)
	s.logger.Info("interrupt", "text", a.h.task.Text)
	a.interrupt()
	if err := s.sink.Stop(); err != nil {
		s.logger.Warn("stop sink", "error", err)
	}
	// Wait for a sink write that was already in flight.
	a.mu.Lock()
	a.mu.Unlock()
}

// ClearQueue drops every queued normal priority task.
func (s *Scheduler) ClearQueue() int {
	s.mu.Lock()
	dropped := s.normal
	s.normal = nil
	recordQueueDepth(len(s.priority), 0)
	s.mu.Unlock()
	return s.clear(dropped)
}

// ClearAll drops every queued task in both queues.
func (s *Scheduler) ClearAll() int {
	s.mu.Lock()
	dropped := append(s.priority, s.normal...)
	s.priority, s.normal = nil, nil
	recordQueueDepth(0, 0)
	s.mu.Unlock()
	return s.clear(dropped)
}

func (s *Scheduler) clear(dropped []*Handle) int {
	for _, h := range dropped {
		r := Result{Status: StatusCleared}
		h.resolve(r)
		recordResult(r)
	}
	return len(dropped)
}

// Speaking reports whether a task is playing.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// State returns the dispatch state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns the number of queued tasks per class.
func (s *Scheduler) Pending() (priority, normal int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.priority), len(s.normal)
}

// Start runs the dispatch loop on a new goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("dispatch loop exited", "error", err)
		}
	}()
}

// Run dispatches tasks until ctx is done or Close is called. It returns
// nil after Close.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.running = true
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer func() {
		stop()
		s.mu.Lock()
		s.running = false
		s.state = StateIdle
		s.mu.Unlock()
	}()

	for {
		h, err := s.next(ctx)
		if errors.Is(err, ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		s.dispatch(ctx, h)
	}
}

// next blocks until a task may be dispatched.
func (s *Scheduler) next(ctx context.Context) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.closed {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.paused {
			s.state = StatePaused
		} else if h := s.pop(); h != nil {
			s.state = StateDispatching
			return h, nil
		} else {
			s.state = StateIdle
		}
		s.cond.Wait()
	}
}

func (s *Scheduler) pop() *Handle {
	var h *Handle
	switch {
	case len(s.priority) > 0:
		h, s.priority = s.priority[0], s.priority[1:]
	case len(s.normal) > 0:
		h, s.normal = s.normal[0], s.normal[1:]
	default:
		return nil
	}
	recordQueueDepth(len(s.priority), len(s.normal))
	return h
}

func (s *Scheduler) dispatch(ctx context.Context, h *Handle) {
	recordQueueWait(h.enqueued)
	start := time.Now()

	if h.task.ClearStory {
		r := s.clearStory()
		r.Elapsed = time.Since(start)
		h.resolve(r)
		recordResult(r)
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a := &activeTask{h: h, cancel: cancel, stopped: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		// Close ran after next popped h.
		s.mu.Unlock()
		r := Result{Status: StatusCleared}
		h.resolve(r)
		recordResult(r)
		return
	}
	s.active = a
	s.state = StateSpeaking
	s.mu.Unlock()

	r := s.play(taskCtx, a)
	r.Elapsed = time.Since(start)

	s.mu.Lock()
	owned := s.active == a
	if owned {
		s.active = nil
	}
	if s.state == StateSpeaking {
		s.state = StateDispatching
	}
	s.mu.Unlock()

	if !owned {
		// Interrupt took the slot and stops the sink itself.
		<-a.stopped
	} else if r.Status != StatusCompleted {
		// Drop partial audio.
		if err := s.sink.Stop(); err != nil {
			s.logger.Warn("stop sink", "error", err)
		}
	}

	logger := s.logger.With("text", h.task.Text, "status", r.Status.String(), "cache_hit", r.CacheHit)
	if r.Err != nil {
		logger.Warn("task ended", "error", r.Err)
	} else {
		logger.Debug("task ended", "bytes", r.Bytes, "elapsed", r.Elapsed)
	}
	h.resolve(r)
	recordResult(r)
}

func (s *Scheduler) clearStory() (r Result) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("story reset panicked", "panic", p)
			r = Result{Status: StatusFailed, Err: fmt.Errorf("playback: story reset panicked: %v", p)}
		}
	}()
	if s.resetStory != nil {
		s.resetStory()
	}
	return Result{Status: StatusCompleted}
}

// play runs one task. Panics resolve the task as failed.
func (s *Scheduler) play(ctx context.Context, a *activeTask) (r Result) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("task panicked", "text", a.h.task.Text, "panic", p, "stack", string(debug.Stack()))
			r = Result{Status: StatusFailed, Err: fmt.Errorf("playback: task panicked: %v", p), Bytes: a.written.Load()}
		}
	}()

	if s.cache != nil {
		if res, hit := s.playCached(ctx, a); hit {
			return res
		}
	}
	return s.playStream(ctx, a)
}

// playCached plays the cached artifact for the task, if any. Cache
// failures are logged and reported as a miss.
func (s *Scheduler) playCached(ctx context.Context, a *activeTask) (Result, bool) {
	task := a.h.task
	rc, entry, err := s.cache.Lookup(ctx, task.Text)
	switch {
	case errors.Is(err, speechcache.ErrMiss):
		cacheLookups.WithLabelValues("miss").Inc()
		return Result{}, false
	case err != nil:
		cacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("cache lookup", "text", task.Text, "error", err)
		return Result{}, false
	}
	defer rc.Close()
	cacheLookups.WithLabelValues("hit").Inc()

	params := StreamParams{Encoding: entry.Encoding, SampleRate: entry.SampleRate}
	if err := s.sink.Start(params); err != nil {
		return a.result(fmt.Errorf("start sink: %w", err), true), true
	}

	format := params.Format()
	w := pcm.WriteFunc(func(chunk []byte) error {
		return s.writeChunk(a, params, chunk, "cache")
	})
	if err := pcm.Copy(w, rc, format, s.cacheChunk); err != nil {
		return a.result(err, true), true
	}
	if task.TrailingSilence > 0 && params.IsPCM() {
		if _, err := format.WriteSilence(pcm.IOWriter(w), task.TrailingSilence); err != nil {
			return a.result(err, true), true
		}
	}
	if err := s.drain(ctx); err != nil {
		return a.result(err, true), true
	}
	return a.result(nil, true), true
}

func (s *Scheduler) playStream(ctx context.Context, a *activeTask) Result {
	task := a.h.task
	start := time.Now()

	st, err := s.synth.Synthesize(ctx, task)
	if err != nil {
		return a.result(fmt.Errorf("synthesize: %w", err), false)
	}
	defer st.Close()
	if !a.setStream(st) {
		return a.result(errInterrupted, false)
	}

	params := st.Params()
	if err := s.sink.Start(params); err != nil {
		st.Cancel()
		return a.result(fmt.Errorf("start sink: %w", err), false)
	}

	var buf *bytes.Buffer
	if s.cache != nil && task.CacheAllowed {
		buf = new(bytes.Buffer)
	}
	first := true
	for chunk, err := range st.Recv() {
		if err != nil {
			return a.result(err, false)
		}
		if first {
			firstChunkLatency.Observe(time.Since(start).Seconds())
			first = false
		}
		if buf != nil {
			buf.Write(chunk)
		}
		if err := s.writeChunk(a, params, chunk, "stream"); err != nil {
			return a.result(err, false)
		}
	}
	if a.interrupted.Load() || !st.Completed() {
		return a.result(errInterrupted, false)
	}
	if err := s.drain(ctx); err != nil {
		return a.result(err, false)
	}

	if buf != nil && buf.Len() > 0 {
		s.commit(ctx, task.Text, speechcache.Artifact{
			Data:       buf.Bytes(),
			Encoding:   params.Encoding,
			SampleRate: params.SampleRate,
		})
	}
	return a.result(nil, false)
}

func (s *Scheduler) commit(ctx context.Context, text string, art speechcache.Artifact) {
	if _, err := s.cache.Commit(ctx, text, art); err != nil {
		cacheCommits.WithLabelValues("error").Inc()
		s.logger.Warn("cache commit", "text", text, "error", err)
		return
	}
	cacheCommits.WithLabelValues("ok").Inc()
}

// writeChunk scales chunk to the task volume and hands it to the sink.
// The active task lock is held across the write so Interrupt can wait
// for it. When scaling, an odd trailing byte is held back and prepended
// to the next chunk so samples stay aligned.
func (s *Scheduler) writeChunk(a *activeTask, params StreamParams, chunk []byte, source string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.interrupted.Load() {
		return errInterrupted
	}

	if v := a.h.task.Volume; v > 0 && v != 100 && params.IsPCM() {
		scaled := make([]byte, 0, len(a.carry)+len(chunk))
		scaled = append(scaled, a.carry...)
		scaled = append(scaled, chunk...)
		whole := len(scaled) &^ 1
		a.carry = append(a.carry[:0], scaled[whole:]...)
		scaled = scaled[:whole]
		pcm.Scale(scaled, v)
		chunk = scaled
	}
	if len(chunk) == 0 {
		return nil
	}
	if err := s.sink.Write(chunk); err != nil {
		if a.interrupted.Load() {
			return errInterrupted
		}
		return fmt.Errorf("write sink: %w", err)
	}
	a.written.Add(int64(len(chunk)))
	audioBytes.WithLabelValues(source).Add(float64(len(chunk)))
	return nil
}

func (s *Scheduler) drain(ctx context.Context) error {
	d, ok := s.sink.(Drainer)
	if !ok {
		return nil
	}
	if err := d.Drain(ctx); err != nil {
		return fmt.Errorf("drain sink: %w", err)
	}
	return nil
}

// Close stops the dispatch loop, interrupts the speaking task and clears
// both queues.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	s.Interrupt()
	s.ClearAll()
	return nil
}

// activeTask is the task occupying the speaking slot.
type activeTask struct {
	h      *Handle
	cancel context.CancelFunc

	interrupted atomic.Bool
	written     atomic.Int64

	// stopped is closed by Interrupt once the sink is stopped.
	stopped chan struct{}

	// mu is held across sink writes and guards carry.
	mu    sync.Mutex
	carry []byte

	streamMu sync.Mutex
	stream   Stream
}

// setStream records st. It returns false, after cancelling st, when the
// task was interrupted first.
func (a *activeTask) setStream(st Stream) bool {
	a.streamMu.Lock()
	defer a.streamMu.Unlock()
	if a.interrupted.Load() {
		st.Cancel()
		return false
	}
	a.stream = st
	return true
}

func (a *activeTask) interrupt() {
	a.streamMu.Lock()
	a.interrupted.Store(true)
	st := a.stream
	a.streamMu.Unlock()
	if st != nil {
		st.Cancel()
	}
	a.cancel()
}

// result maps the outcome of a task to a Result. Any error seen after an
// interrupt is reported as cancellation.
func (a *activeTask) result(err error, cacheHit bool) Result {
	r := Result{CacheHit: cacheHit, Bytes: a.written.Load()}
	switch {
	case a.interrupted.Load() || errors.Is(err, errInterrupted):
		r.Status = StatusCancelled
	case err != nil:
		r.Status = StatusFailed
		r.Err = err
	default:
		r.Status = StatusCompleted
	}
	return r
}
