package ordermanager

import "time"

// rateWindow is a sliding record of order-submission timestamps. Entries
// older than the window are pruned lazily on access, never by timers, so
// simulated runs stay deterministic.
type rateWindow struct {
	window time.Duration
	stamps []time.Time
}

func newRateWindow(window time.Duration) *rateWindow {
	return &rateWindow{
		window: window,
		stamps: nil,
	}
}

// prune drops timestamps older than the window relative to now.
func (w *rateWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)

	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}

	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// size returns the number of submissions inside the window at now.
func (w *rateWindow) size(now time.Time) int {
	w.prune(now)

	return len(w.stamps)
}

// record appends a submission timestamp.
func (w *rateWindow) record(now time.Time) {
	w.stamps = append(w.stamps, now)
}
