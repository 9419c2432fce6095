package crawl

import (
	"context"
	"math/rand"
	"time"
)

// pauseController abstracts how the loop pauses between pages, so tests can
// substitute an instant pause.
type pauseController interface {
	Pause(ctx context.Context, min, max time.Duration)
}

// jitterPause sleeps a uniformly random duration within [min, max], honoring
// cancellation. This is the politeness/anti-throttling delay between listing
// pages; it has no correctness role.
type jitterPause struct{}

func (jitterPause) Pause(ctx context.Context, min, max time.Duration) {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
