// Package timeline holds the messages shown for the current room.
package timeline

import "math"

// Message is one displayed line. System lines have no author.
type Message struct {
	Author string
	Text   string
	System bool
}

// IsOwn reports whether self wrote m.
func (m Message) IsOwn(self string) bool {
	return !m.System && m.Author == self
}

// Timeline is an append-only log that can only be cleared as a whole.
type Timeline struct {
	entries []Message
}

func New() *Timeline {
	return &Timeline{entries: make([]Message, 0, 64)}
}

func (t *Timeline) Append(m Message) {
	t.entries = append(t.entries, m)
}

// Clear drops every message.
func (t *Timeline) Clear() {
	t.entries = make([]Message, 0, 64)
}

func (t *Timeline) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the messages, oldest first.
func (t *Timeline) Entries() []Message {
	return append([]Message(nil), t.entries...)
}

// DefaultEpsilon absorbs rounding in scroll offsets.
const DefaultEpsilon = 1.0

// Follower tracks whether the view sits at the bottom of the timeline.
type Follower struct {
	epsilon  float64
	atBottom bool
}

// NewFollower returns a follower that starts at the bottom. A non-positive
// epsilon selects DefaultEpsilon.
func NewFollower(epsilon float64) *Follower {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &Follower{epsilon: epsilon, atBottom: true}
}

// Observe records a scroll position: offset from the top, visible height and
// total content height, all in the same unit.
func (f *Follower) Observe(offset, viewport, content float64) {
	bottom := math.Max(content-viewport, 0)
	f.atBottom = math.Abs(bottom-offset) < f.epsilon
}

// AtBottom reports whether the last observation was at the bottom.
func (f *Follower) AtBottom() bool {
	return f.atBottom
}

// Reset marks the view as at the bottom, as for a freshly cleared timeline.
func (f *Follower) Reset() {
	f.atBottom = true
}
