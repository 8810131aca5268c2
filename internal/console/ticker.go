package console

import (
	"sync"
	"time"
)

// Ticker drives elapsed-time rendering with one shared timer. The first
// subscriber starts the timer goroutine and the last one leaving stops it,
// so a console with nothing running burns no timer.
type Ticker struct {
	mu       sync.Mutex
	interval time.Duration
	notify   func(time.Time)
	subs     int
	stop     chan struct{}
}

// NewTicker returns a stopped ticker that calls notify on every tick while
// at least one subscriber is registered.
func NewTicker(interval time.Duration, notify func(time.Time)) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{interval: interval, notify: notify}
}

// Subscribe registers one consumer, starting the timer when the count goes
// from zero to one.
func (t *Ticker) Subscribe() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs++
	if t.subs == 1 {
		t.stop = make(chan struct{})
		go t.run(t.stop)
	}
}

// Unsubscribe releases one consumer, stopping the timer when the last one
// leaves. Calls without a matching Subscribe are ignored.
func (t *Ticker) Unsubscribe() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.subs == 0 {
		return
	}
	t.subs--
	if t.subs == 0 {
		close(t.stop)
		t.stop = nil
	}
}

// Active reports whether the shared timer is currently running.
func (t *Ticker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subs > 0
}

func (t *Ticker) run(stop chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			t.notify(now)
		}
	}
}
