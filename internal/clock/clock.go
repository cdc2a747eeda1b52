package clock

import "time"

// Clock is the time source for anything that stamps ledger intervals,
// invoice numbers or audit rows.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}
