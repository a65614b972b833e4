package animation

import (
	"sync"
	"time"
)

// DefaultTickPeriod is the redraw interval.
const DefaultTickPeriod = 15 * time.Millisecond

// Ticker calls a function on a fixed period until stopped.
type Ticker struct {
	period time.Duration
	tick   func()
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	start  sync.Once
}

// NewTicker creates a stopped ticker. A non-positive period uses DefaultTickPeriod.
func NewTicker(period time.Duration, tick func()) *Ticker {
	if period <= 0 {
		period = DefaultTickPeriod
	}
	return &Ticker{
		period: period,
		tick:   tick,
		stopCh: make(chan struct{}),
	}
}

// Start begins the background loop. Later calls are ignored.
func (t *Ticker) Start() {
	t.start.Do(func() {
		t.wg.Add(1)
		go t.loop()
	})
}

// Stop ends the loop and waits for an in-flight tick. Safe to call more than once.
func (t *Ticker) Stop() {
	t.once.Do(func() { close(t.stopCh) })
	t.wg.Wait()
}

func (t *Ticker) loop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.tick()
		}
	}
}
