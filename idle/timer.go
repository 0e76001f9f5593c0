package idle

import (
	"sync"
	"time"

	"github.com/jrsteele09/bimi-admin/sessions"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout is the inactivity period after which the session ends.
const DefaultTimeout = 15 * time.Minute

// SessionStore is the part of the session store the timer watches.
type SessionStore interface {
	Active() bool
	Clear() error
	Subscribe(l sessions.Listener) func()
}

// NotifyFunc tells the user their session ended for inactivity. It runs
// before the session is cleared.
type NotifyFunc func(idleFor time.Duration)

// Timer logs the session out after a period without user activity. It runs
// only while a session is active: saving or reloading an active session
// arms it, clearing the session disarms it.
type Timer struct {
	store   SessionStore
	timeout time.Duration
	notify  NotifyFunc

	mu          sync.Mutex
	timer       *time.Timer
	generation  uint64
	deadline    time.Time
	unsubscribe func()
}

type Option func(*Timer)

func WithNotifier(n NotifyFunc) Option {
	return func(t *Timer) { t.notify = n }
}

func New(store SessionStore, timeout time.Duration, opts ...Option) *Timer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := &Timer{
		store:   store,
		timeout: timeout,
		notify:  func(time.Duration) {},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start subscribes to session changes and arms the timer when a session is
// already active. Calling Start twice has no further effect.
func (t *Timer) Start() {
	t.mu.Lock()
	if t.unsubscribe != nil {
		t.mu.Unlock()
		return
	}
	t.unsubscribe = t.store.Subscribe(t.onSessionEvent)
	t.mu.Unlock()

	if t.store.Active() {
		t.arm()
	}
}

// Stop unsubscribes and disarms. The session is left as it is.
func (t *Timer) Stop() {
	t.mu.Lock()
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.disarmLocked()
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Touch records user activity, restarting the countdown. It is ignored
// while no session is active.
func (t *Timer) Touch(a Activity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer == nil {
		return
	}
	log.Trace().Stringer("activity", a).Msg("user activity")
	t.armLocked()
}

// Running reports whether a countdown is in progress.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// Remaining is the time left before logout, zero when not running.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer == nil {
		return 0
	}
	if d := time.Until(t.deadline); d > 0 {
		return d
	}
	return 0
}

func (t *Timer) Timeout() time.Duration {
	return t.timeout
}

func (t *Timer) onSessionEvent(e sessions.Event) {
	switch {
	case !e.Session.Active():
		t.mu.Lock()
		t.disarmLocked()
		t.mu.Unlock()
	case e.Kind == sessions.EventSaved, e.Kind == sessions.EventReloaded:
		t.arm()
	}
}

// arm (re)starts the countdown. Each arm gets a new generation so a fire
// from a replaced timer is ignored.
func (t *Timer) arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armLocked()
}

func (t *Timer) armLocked() {
	t.disarmLocked()
	t.generation++
	gen := t.generation
	t.deadline = time.Now().Add(t.timeout)
	t.timer = time.AfterFunc(t.timeout, func() { t.expire(gen) })
}

func (t *Timer) disarmLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.generation++
}

func (t *Timer) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.generation || t.timer == nil {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.generation++
	t.mu.Unlock()

	log.Info().Dur("idle_for", t.timeout).Msg("session expired due to inactivity")
	t.notify(t.timeout)
	if err := t.store.Clear(); err != nil {
		log.Err(err).Msg("unable to clear session after inactivity")
	}
}
