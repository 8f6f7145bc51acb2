package clock

import "time"

// Clock abstracts time.Now so expiry logic can be tested without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func System() Clock { return systemClock{} }

// Fake is a manually advanced clock for tests.
type Fake struct {
	current time.Time
}

func NewFake(start time.Time) *Fake {
	return &Fake{current: start}
}

func (f *Fake) Now() time.Time { return f.current }

func (f *Fake) Advance(d time.Duration) { f.current = f.current.Add(d) }
