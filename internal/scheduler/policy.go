package scheduler

import (
	"fmt"
	"time"

	"github.com/talgya/beatloom/internal/story"
)

// Policy maps a frequency to the next cycle window.
type Policy struct {
	Interval time.Duration // now → scheduled start
	Deadline time.Duration // now → input deadline, strictly before Interval
	Dt       float64       // simulated time one cycle advances
}

var policies = map[story.Frequency]Policy{
	story.Hourly: {Interval: time.Hour, Deadline: 50 * time.Minute, Dt: 1},
	story.Daily:  {Interval: 24 * time.Hour, Deadline: 20 * time.Hour, Dt: 1},
	story.Weekly: {Interval: 7 * 24 * time.Hour, Deadline: 6 * 24 * time.Hour, Dt: 1},
}

// PolicyFor returns the policy of a frequency.
func PolicyFor(f story.Frequency) (Policy, error) {
	p, ok := policies[f]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownFrequency, f)
	}
	return p, nil
}

// Window returns the scheduled start and input deadline of a cycle
// scheduled at now.
func (p Policy) Window(now time.Time) (start, deadline time.Time) {
	return now.Add(p.Interval), now.Add(p.Deadline)
}
