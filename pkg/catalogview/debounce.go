// Package catalogview holds the client-side state of the catalog screens:
// the session context, the search table, the import run and the timers that
// drive them. It has no UI of its own.
package catalogview

import (
	"sync"
	"time"
)

const (
	TableSearchDelay = 800 * time.Millisecond
	QuickSearchDelay = 300 * time.Millisecond
)

// SearchBox fires a page-0 search once typing has paused for delay. Each
// keystroke resets the timer, so only the last query is searched.
type SearchBox struct {
	mu     sync.Mutex
	delay  time.Duration
	timer  *time.Timer
	search func(query string)
}

func NewSearchBox(delay time.Duration, search func(query string)) *SearchBox {
	return &SearchBox{delay: delay, search: search}
}

func (b *SearchBox) Input(query string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, func() { b.search(query) })
}

// Submit searches right away and drops a pending trigger.
func (b *SearchBox) Submit(query string) {
	b.Cancel()
	b.search(query)
}

func (b *SearchBox) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
