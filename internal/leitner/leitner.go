package leitner

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Day is the length of one interval unit.
const Day = 24 * time.Hour

// ErrInvalidRating is returned for any rating outside Again, Good and Easy.
var ErrInvalidRating = errors.New("invalid rating")

// Rating is the user's response to a card review.
type Rating int

const (
	Again Rating = iota + 1
	Good
	Easy
)

var ratingNames = [...]string{Again: "again", Good: "good", Easy: "easy"}

// IsValid reports whether r is one of the three known ratings.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// ParseRating maps "again", "good" or "easy" (any case) to a Rating.
func ParseRating(s string) (Rating, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for r := Again; r <= Easy; r++ {
		if ratingNames[r] == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// DefaultIntervals is the box interval table in days.
var DefaultIntervals = []int{1, 3, 7, 14, 30}

// Scheduler holds an ascending interval table. Box n waits Intervals[n] days.
type Scheduler struct {
	Intervals []int
}

// DefaultScheduler returns a scheduler over DefaultIntervals.
func DefaultScheduler() *Scheduler {
	return &Scheduler{Intervals: DefaultIntervals}
}

// MaxBox is the highest valid box index.
func (s *Scheduler) MaxBox() int {
	return len(s.Intervals) - 1
}

// ClampBox forces box into [0, MaxBox].
func (s *Scheduler) ClampBox(box int) int {
	if box < 0 {
		return 0
	}
	if max := s.MaxBox(); box > max {
		return max
	}
	return box
}

// ComputeReview returns the box a card moves to after being rated and the
// time it becomes due again. It has no state; the result depends only on its
// arguments.
func (s *Scheduler) ComputeReview(box int, rating Rating, now time.Time) (int, time.Time, error) {
	box = s.ClampBox(box)

	var next int
	switch rating {
	case Again:
		next = 0
	case Good:
		next = s.ClampBox(box + 1)
	case Easy:
		next = s.ClampBox(box + 2)
	default:
		return 0, time.Time{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}

	return next, now.Add(time.Duration(s.Intervals[next]) * Day), nil
}
