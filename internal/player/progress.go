package player

import (
	"sync"
	"time"
)

// progressTracker drives the per-frame position poll. One goroutine per
// Start; Stop tears it down and a later Start gets a fresh channel, so a
// stale tick can never outlive its song.
type progressTracker struct {
	interval time.Duration

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

func newProgressTracker(interval time.Duration) *progressTracker {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &progressTracker{interval: interval}
}

func (pt *progressTracker) Start(tick func()) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.running {
		return
	}

	pt.running = true
	pt.done = make(chan struct{})
	done := pt.done

	go pt.run(tick, done)
}

func (pt *progressTracker) run(tick func(), done chan struct{}) {
	ticker := time.NewTicker(pt.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tick()
		case <-done:
			return
		}
	}
}

func (pt *progressTracker) Stop() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if !pt.running {
		return
	}

	pt.running = false
	close(pt.done)
}

func (pt *progressTracker) IsRunning() bool {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.running
}
