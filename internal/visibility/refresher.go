package visibility

import (
	"context"
	"sync"
	"time"

	"github.com/appointment-assistant/sessionsync/internal/session"
)

// Observer receives the visible calls each time they change. It is called
// with the refresher's lock held and must not call back into it.
type Observer func([]session.ToolCall)

type Option func(*Refresher)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Refresher) { r.now = now }
}

// WithTicks replaces the refresh ticker with ticks.
func WithTicks(ticks <-chan time.Time) Option {
	return func(r *Refresher) { r.ticks = ticks }
}

// Refresher recomputes the visible calls whenever the store publishes and on
// every tick, so entries expire without new events.
type Refresher struct {
	policy   Policy
	interval time.Duration
	now      func() time.Time
	ticks    <-chan time.Time

	mu        sync.Mutex
	calls     []session.ToolCall
	visible   []session.ToolCall
	observers []Observer

	stopOnce    sync.Once
	stop        chan struct{}
	done        chan struct{}
	unsubscribe func()
}

func NewRefresher(policy Policy, interval time.Duration, opts ...Option) *Refresher {
	r := &Refresher{
		policy:   policy,
		interval: interval,
		now:      time.Now,
		visible:  []session.ToolCall{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Observe adds fn to the observers. Register observers before Start.
func (r *Refresher) Observe(fn Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

// Visible returns the current visible calls.
func (r *Refresher) Visible() []session.ToolCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]session.ToolCall(nil), r.visible...)
}

// Start follows store until ctx is done or Stop is called.
func (r *Refresher) Start(ctx context.Context, store *session.Store) {
	r.onSnapshot(store.Snapshot())
	r.unsubscribe = store.Subscribe(r.onSnapshot)

	ticks := r.ticks
	var ticker *time.Ticker
	if ticks == nil {
		ticker = time.NewTicker(r.interval)
		ticks = ticker.C
	}

	go func() {
		defer close(r.done)
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-ctx.Done():
				r.Stop()
				return
			case <-r.stop:
				return
			case <-ticks:
				r.Refresh()
			}
		}
	}()
}

// Stop ends the refresh loop and detaches from the store. It is safe to call
// more than once.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		if r.unsubscribe != nil {
			r.unsubscribe()
		}
	})
}

// Done is closed when the refresh loop has exited.
func (r *Refresher) Done() <-chan struct{} {
	return r.done
}

func (r *Refresher) onSnapshot(s session.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = s.State.ToolCalls
	r.recomputeLocked()
}

// Refresh recomputes against the current clock.
func (r *Refresher) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recomputeLocked()
}

func (r *Refresher) recomputeLocked() {
	next := r.policy.Visible(r.calls, r.now())
	if sameCalls(r.visible, next) {
		return
	}
	r.visible = next
	for _, fn := range r.observers {
		fn(append([]session.ToolCall(nil), next...))
	}
}

func sameCalls(a, b []session.ToolCall) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Status != b[i].Status {
			return false
		}
	}
	return true
}
