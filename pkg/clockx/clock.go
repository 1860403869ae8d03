// Package clockx is a CLOCK (second-chance) victim picker over a fixed set
// of frame ids [0, capacity).
package clockx

type slot struct {
	present   bool
	evictable bool
	ref       bool
}

type Clock struct {
	slots     []slot
	hand      int
	evictable int
}

func New(capacity int) *Clock {
	if capacity <= 0 {
		capacity = 1
	}
	return &Clock{slots: make([]slot, capacity)}
}

func (c *Clock) Capacity() int { return len(c.slots) }

// Size is the number of frames Evict may currently choose from.
func (c *Clock) Size() int { return c.evictable }

func (c *Clock) at(id int) *slot {
	if id < 0 || id >= len(c.slots) {
		return nil
	}
	return &c.slots[id]
}

// Touch starts tracking id if needed and sets its reference bit.
func (c *Clock) Touch(id int) {
	if s := c.at(id); s != nil {
		s.present = true
		s.ref = true
	}
}

// SetEvictable flips whether id may be chosen (a frame is evictable while
// its pin count is zero). Untracked ids are ignored.
func (c *Clock) SetEvictable(id int, evictable bool) {
	s := c.at(id)
	if s == nil || !s.present || s.evictable == evictable {
		return
	}
	s.evictable = evictable
	if evictable {
		c.evictable++
	} else {
		c.evictable--
	}
}

// Evict advances the hand until it finds an evictable frame whose reference
// bit is clear, clearing bits as it passes. The victim stops being tracked.
// Two full turns always suffice, after that there is no candidate.
func (c *Clock) Evict() (int, bool) {
	n := len(c.slots)
	if c.evictable == 0 {
		return -1, false
	}
	for range 2 * n {
		id := c.hand
		c.hand = (c.hand + 1) % n

		s := &c.slots[id]
		if !s.present || !s.evictable {
			continue
		}
		if s.ref {
			s.ref = false
			continue
		}
		c.forget(s)
		return id, true
	}
	return -1, false
}

// Remove stops tracking id, e.g. when its frame is freed.
func (c *Clock) Remove(id int) {
	if s := c.at(id); s != nil && s.present {
		c.forget(s)
	}
}

func (c *Clock) forget(s *slot) {
	if s.evictable {
		c.evictable--
	}
	*s = slot{}
}
