// Package crossing turns a noisy per-frame count of valid vehicle blobs into discrete
// crossing events.
package crossing

import (
	"fmt"
	"strings"
)

// Event records a detected crossing. Frame is 1-based from the start of the detection pass.
type Event struct {
	Frame    int `json:"frame"`
	Previous int `json:"previous_count"`
	Current  int `json:"current_count"`
}

// Policy decides whether the step from prev to curr is a crossing.
type Policy interface {
	Crossed(prev, curr int) bool
	Reset()
}

// DropPolicy fires on every frame where the count strictly decreases. A simultaneous
// multi-vehicle exit yields a single event and an oscillating count fires on every
// downward step.
type DropPolicy struct{}

func (DropPolicy) Crossed(prev, curr int) bool { return curr < prev }
func (DropPolicy) Reset()                      {}

// ConsecutiveDropPolicy fires once the count has decreased on Frames consecutive
// frames, then waits for a non-decreasing frame before arming again.
type ConsecutiveDropPolicy struct {
	Frames int
	run    int
}

func (p *ConsecutiveDropPolicy) Crossed(prev, curr int) bool {
	if curr >= prev {
		p.run = 0
		return false
	}
	p.run++
	need := p.Frames
	if need < 1 {
		need = 1
	}
	return p.run == need
}

func (p *ConsecutiveDropPolicy) Reset() { p.run = 0 }

// ParsePolicy builds a policy by name: "drop" or "consecutive".
func ParsePolicy(name string, frames int) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "drop":
		return DropPolicy{}, nil
	case "consecutive":
		return &ConsecutiveDropPolicy{Frames: frames}, nil
	}
	return nil, fmt.Errorf("unknown crossing policy %q", name)
}

// Detector holds the entire mutable counting state for one video.
type Detector struct {
	policy Policy
	prev   int
	events []Event
}

// NewDetector returns a detector with prev = 0. A nil policy uses DropPolicy.
func NewDetector(policy Policy) *Detector {
	if policy == nil {
		policy = DropPolicy{}
	}
	return &Detector{policy: policy}
}

// Observe feeds the valid count of the given frame. prev is always replaced by curr.
func (d *Detector) Observe(frame, curr int) (Event, bool) {
	prev := d.prev
	crossed := d.policy.Crossed(prev, curr)
	d.prev = curr
	if !crossed {
		return Event{}, false
	}
	ev := Event{Frame: frame, Previous: prev, Current: curr}
	d.events = append(d.events, ev)
	return ev, true
}

// Previous returns the count carried from the last observed frame.
func (d *Detector) Previous() int { return d.prev }

// Len returns the number of crossings detected so far.
func (d *Detector) Len() int { return len(d.events) }

// Events returns the crossings detected so far in temporal order.
func (d *Detector) Events() []Event {
	return append([]Event(nil), d.events...)
}

// Reset clears all state so the detector can start a new video.
func (d *Detector) Reset() {
	d.prev = 0
	d.events = nil
	d.policy.Reset()
}
