package core

import (
	"time"
)

// Worker - run f after d, then again after the duration f returns.
// Zero or negative duration stops the worker.
type Worker struct {
	timer *time.Timer
	done  chan struct{}
}

func NewWorker(d time.Duration, f func() time.Duration) *Worker {
	timer := time.NewTimer(d)
	done := make(chan struct{})

	go func() {
		defer timer.Stop()

		for {
			select {
			case <-timer.C:
				if d = f(); d > 0 {
					timer.Reset(d)
					continue
				}
			case <-done:
			}
			return
		}
	}()

	return &Worker{timer: timer, done: done}
}

func (w *Worker) Stop() {
	if w == nil {
		return
	}

	select {
	case <-w.done:
	default:
		close(w.done)
	}
}
