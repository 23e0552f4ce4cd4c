// Package clock abstracts time so timing behavior can be tested deterministically.
package clock

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired.
	Stop() bool
}

// Clock provides the current time and delayed scheduling.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules fn to run after d on its own goroutine.
	AfterFunc(d time.Duration, fn func()) Timer
	// Sleep blocks for d.
	Sleep(d time.Duration)
}

// System returns a Clock backed by the real time package.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return systemTimer{t: time.AfterFunc(d, fn)}
}

func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) Stop() bool { return s.t.Stop() }
