package playback

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Priority selects the queue a task is placed in.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// Task is one utterance to play. A task is copied when enqueued.
type Task struct {
	Text string

	// Volume is the playback gain in percent. 0 means 100.
	Volume int

	// SilenceMs is the silence the synthesizer appends to the utterance.
	SilenceMs int

	SpeedRatio float64
	Emotion    string
	VoiceType  string

	// CacheAllowed lets a fully synthesized utterance be committed to the
	// speech cache.
	CacheAllowed bool

	Priority Priority

	// ClearStory marks a control task that resets story mode and plays
	// nothing.
	ClearStory bool

	// TrailingSilence is written to the sink after a cached artifact.
	TrailingSilence time.Duration
}

// Status is the terminal state of a task.
type Status int

const (
	StatusCompleted Status = iota + 1
	StatusCancelled
	StatusFailed
	StatusCleared
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	case StatusCleared:
		return "cleared"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result describes how a task ended.
type Result struct {
	Status   Status
	Err      error
	CacheHit bool

	// Bytes is the number of audio bytes handed to the sink.
	Bytes int64

	// Elapsed is the time from dispatch to resolution.
	Elapsed time.Duration
}

// Handle is the future for one enqueued task.
type Handle struct {
	task     Task
	enqueued time.Time

	once   sync.Once
	done   chan struct{}
	result Result
}

func newHandle(task Task) *Handle {
	return &Handle{
		task:     task,
		enqueued: time.Now(),
		done:     make(chan struct{}),
	}
}

// Task returns the task as enqueued.
func (h *Handle) Task() Task {
	return h.task
}

// Done is closed when the task has resolved.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the result and true once the task has resolved.
func (h *Handle) Result() (Result, bool) {
	select {
	case <-h.done:
		return h.result, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the task resolves or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// resolve records r. Only the first call has an effect.
func (h *Handle) resolve(r Result) {
	h.once.Do(func() {
		h.result = r
		close(h.done)
	})
}
