package catalogview

import (
	"sync"
	"time"
)

const InactivityTimeout = 5 * time.Minute

type Event string

const (
	EventPointerMove Event = "pointermove"
	EventPointerDown Event = "pointerdown"
	EventKeyPress    Event = "keypress"
	EventScroll      Event = "scroll"
	EventTouch       Event = "touchstart"
	EventClick       Event = "click"
)

// Qualifies reports whether ev counts as user activity.
func Qualifies(ev Event) bool {
	switch ev {
	case EventPointerMove, EventPointerDown, EventKeyPress, EventScroll, EventTouch, EventClick:
		return true
	}
	return false
}

// InactivityGuard calls onIdle once when no qualifying event arrived for
// timeout since Start or the last activity. It is inert until started.
type InactivityGuard struct {
	mu      sync.Mutex
	timeout time.Duration
	onIdle  func()
	timer   *time.Timer
}

func NewInactivityGuard(timeout time.Duration, onIdle func()) *InactivityGuard {
	if timeout <= 0 {
		timeout = InactivityTimeout
	}
	return &InactivityGuard{timeout: timeout, onIdle: onIdle}
}

func (g *InactivityGuard) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
}

func (g *InactivityGuard) Activity(ev Event) {
	if !Qualifies(ev) {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.resetLocked()
	}
}

func (g *InactivityGuard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *InactivityGuard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timer != nil
}

func (g *InactivityGuard) resetLocked() {
	if g.timer != nil {
		g.timer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(g.timeout, func() {
		g.mu.Lock()
		if g.timer != t {
			g.mu.Unlock()
			return
		}
		g.timer = nil
		g.mu.Unlock()

		g.onIdle()
	})
	g.timer = t
}
