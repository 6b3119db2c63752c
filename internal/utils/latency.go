package utils

import (
	"sort"
	"sync"
	"time"
)

// LatencyWindow keeps a bounded ring of recent duration samples and computes
// percentiles over them.
type LatencyWindow struct {
	mu      sync.RWMutex
	ring    []time.Duration
	next    int
	filled  bool
	maxSize int
}

// NewLatencyWindow creates a window holding up to maxSize samples.
func NewLatencyWindow(maxSize int) *LatencyWindow {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LatencyWindow{ring: make([]time.Duration, 0, maxSize), maxSize: maxSize}
}

// Observe records a new duration, evicting the oldest sample once full.
func (w *LatencyWindow) Observe(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.ring) < w.maxSize {
		w.ring = append(w.ring, d)
		return
	}
	w.filled = true
	w.ring[w.next] = d
	w.next = (w.next + 1) % w.maxSize
}

// Percentile returns the p-th percentile (0-100) duration, or zero when no
// samples have been observed.
func (w *LatencyWindow) Percentile(p float64) time.Duration {
	w.mu.RLock()
	sorted := append([]time.Duration(nil), w.ring...)
	w.mu.RUnlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	index := int((p / 100.0) * float64(len(sorted)-1))
	return sorted[index]
}

// Count returns the number of samples currently held.
func (w *LatencyWindow) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.ring)
}
