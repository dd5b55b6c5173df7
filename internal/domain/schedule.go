package domain

import (
	"math"
	"time"
)

// DuelDuration is how long a duel stays in play after its minute slot opens.
const DuelDuration = 5 * time.Minute

// farFuture stands in for start times past the range of time.Duration, so
// such events never start.
var farFuture = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Schedule maps event ids onto wall-clock time. Quiz rounds occupy
// consecutive RoundSlot windows since the Unix epoch; duel rounds are minute
// slots.
type Schedule struct {
	RoundSlot time.Duration
}

// Start is the moment the event begins and its markets lock.
func (s Schedule) Start(id EventID) time.Time {
	slot := s.slot()
	if id.IsDuel() {
		slot = time.Minute
	}
	if id.Round < 0 || id.Round > math.MaxInt64/int64(slot) {
		return farFuture
	}
	return time.Unix(0, 0).UTC().Add(time.Duration(id.Round) * slot)
}

// End is the moment the event's result becomes final.
func (s Schedule) End(id EventID) time.Time {
	if id.IsDuel() {
		return s.Start(id).Add(DuelDuration)
	}
	return s.Start(id).Add(s.slot())
}

// Ended reports whether the event is over at now.
func (s Schedule) Ended(id EventID, now time.Time) bool {
	return !now.Before(s.End(id))
}

// Started reports whether the event has begun at now.
func (s Schedule) Started(id EventID, now time.Time) bool {
	return !now.Before(s.Start(id))
}

// RoundAt returns the quiz round slot containing t.
func (s Schedule) RoundAt(t time.Time) int64 {
	return int64(t.Sub(time.Unix(0, 0)) / s.slot())
}

func (s Schedule) slot() time.Duration {
	if s.RoundSlot <= 0 {
		return 15 * time.Minute
	}
	return s.RoundSlot
}
