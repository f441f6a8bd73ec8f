package rateguard

import (
	"context"
	"sync"
	"time"
)

// MemoryWindow is the in-process sliding window. Counts are per process, not
// per cluster; use RedisWindow when several replicas share one threshold.
type MemoryWindow struct {
	mu     sync.Mutex
	window time.Duration
	stamps []time.Time
}

func NewMemoryWindow(window time.Duration) *MemoryWindow {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryWindow{window: window}
}

func (w *MemoryWindow) Add(_ context.Context, now time.Time) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	i := 0
	for ; i < len(w.stamps); i++ {
		if w.stamps[i].After(cutoff) {
			break
		}
	}
	w.stamps = append(w.stamps[i:], now)
	return len(w.stamps), nil
}
