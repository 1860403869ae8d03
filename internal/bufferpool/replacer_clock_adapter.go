package bufferpool

import "github.com/tuannm99/novadb/pkg/clockx"

// clockReplacer maps the Replacer vocabulary onto clockx.
type clockReplacer struct {
	c *clockx.Clock
}

func newClockAdapter(capacity int) Replacer {
	return &clockReplacer{c: clockx.New(capacity)}
}

func (r *clockReplacer) RecordAccess(frameID int) {
	r.c.Touch(frameID)
}

func (r *clockReplacer) SetEvictable(frameID int, evictable bool) {
	r.c.SetEvictable(frameID, evictable)
}

func (r *clockReplacer) Evict() (int, bool) {
	return r.c.Evict()
}

func (r *clockReplacer) Remove(frameID int) {
	r.c.Remove(frameID)
}

func (r *clockReplacer) Size() int {
	return r.c.Size()
}
