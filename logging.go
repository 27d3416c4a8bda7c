package jobs

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// newLimiter builds the rate limiter for repetitive log events (e.g. a fiber
// pool that stays exhausted), keyed by category.
func newLimiter() *catrate.Limiter {
	return catrate.NewLimiter(map[time.Duration]int{
		time.Second: 1,
		time.Minute: 10,
	})
}

// allow reports whether an event of the given category may be logged now.
func (s *Scheduler) allow(category string) bool {
	if s.logger == nil {
		return false
	}
	_, ok := s.limiter.Allow(category)
	return ok
}
