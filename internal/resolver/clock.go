package resolver

import "time"

// Clock abstracts the time source used for cache TTLs so tests can expire
// entries without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real-time clock used by default.
func SystemClock() Clock { return systemClock{} }
