package progress

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Status of a long-running operation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status ends the operation. Terminal events
// always bypass rate limiting.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Event is one progress notification.
type Event struct {
	ID        string
	Label     string
	Completed float64
	Total     float64
	Message   string
	Attrs     map[string]string
	Status    Status
}

// Sink receives progress events. Sink failures never fail the operation that
// publishes them.
type Sink interface {
	Publish(ctx context.Context, e Event)
}

// LogSink writes progress events to the structured log.
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, e Event) {
	ev := log.Info().
		Str("id", e.ID).
		Str("label", e.Label).
		Float64("completed", e.Completed).
		Float64("total", e.Total).
		Str("status", string(e.Status)).
		Str("message", e.Message)
	for k, v := range e.Attrs {
		ev = ev.Str("attr_"+k, v)
	}
	ev.Msg("progress")
}

// Multi fans one event out to several sinks.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(ctx, e)
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}

type tokenState struct {
	lastEmit      time.Time
	lastCompleted float64
	suppressed    *Event
}

// RateLimited forwards an event iff enough time has passed, enough progress
// has accumulated, or the status is terminal. A suppressed event is
// superseded by the next emitted event; at terminal status, a suppressed event
// whose progress is ahead of the terminal event is emitted first.
type RateLimited struct {
	next        Sink
	minInterval time.Duration
	minDelta    float64

	mu    sync.Mutex
	state map[string]*tokenState
	now   func() time.Time
}

// NewRateLimited wraps next with the given rate discipline.
func NewRateLimited(next Sink, minInterval time.Duration, minDelta float64) *RateLimited {
	return &RateLimited{
		next:        next,
		minInterval: minInterval,
		minDelta:    minDelta,
		state:       map[string]*tokenState{},
		now:         time.Now,
	}
}

func (r *RateLimited) Publish(ctx context.Context, e Event) {
	r.mu.Lock()
	st, ok := r.state[e.ID]
	if !ok {
		st = &tokenState{lastCompleted: -1}
		r.state[e.ID] = st
	}
	now := r.now()
	emit := e.Status.Terminal() ||
		st.lastEmit.IsZero() ||
		now.Sub(st.lastEmit) >= r.minInterval ||
		e.Completed-st.lastCompleted >= r.minDelta

	var flush *Event
	if emit {
		if st.suppressed != nil && e.Status.Terminal() && st.suppressed.Completed > e.Completed {
			// keep ordering: the suppressed high-water mark goes first
			flush = st.suppressed
		}
		st.suppressed = nil
		st.lastEmit = now
		st.lastCompleted = e.Completed
		if e.Status.Terminal() {
			delete(r.state, e.ID)
		}
	} else {
		cp := e
		st.suppressed = &cp
	}
	r.mu.Unlock()

	if flush != nil {
		r.next.Publish(ctx, *flush)
	}
	if emit {
		r.next.Publish(ctx, e)
	}
}
