package versioning

import "time"

// SetClock replaces the wall clock used by hybrid versioning.
func (s *Stamper) SetClock(now func() time.Time) {
	s.now = now
}
