package clockx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClock_NonPositiveCapacity(t *testing.T) {
	c := New(-3)
	require.Equal(t, 1, c.Capacity())
	require.Equal(t, 0, c.Size())
}

func TestClock_SetEvictable_NeedsTouch(t *testing.T) {
	c := New(2)

	c.SetEvictable(0, true)
	require.Equal(t, 0, c.Size())

	c.Touch(0)
	c.SetEvictable(0, true)
	c.SetEvictable(0, true)
	require.Equal(t, 1, c.Size())

	c.SetEvictable(0, false)
	require.Equal(t, 0, c.Size())
}

func TestClock_Evict_SweepsInHandOrder(t *testing.T) {
	c := New(3)
	for i := range 3 {
		c.Touch(i)
		c.SetEvictable(i, true)
	}

	// first turn clears every ref bit, second turn takes frame 0
	v, ok := c.Evict()
	require.True(t, ok)
	require.Equal(t, 0, v)

	v, ok = c.Evict()
	require.True(t, ok)
	require.Equal(t, 1, v)

	v, ok = c.Evict()
	require.True(t, ok)
	require.Equal(t, 2, v)

	v, ok = c.Evict()
	require.False(t, ok)
	require.Equal(t, -1, v)
}

func TestClock_Evict_SecondChance(t *testing.T) {
	c := New(2)
	c.Touch(0)
	c.Touch(1)
	c.SetEvictable(0, true)
	c.SetEvictable(1, true)

	v, ok := c.Evict()
	require.True(t, ok)
	require.Equal(t, 0, v)

	// 1 had its bit cleared by the last sweep; touching it again saves it
	// for one more pass but it is still the only candidate.
	c.Touch(1)
	v, ok = c.Evict()
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestClock_Evict_SkipsPinned(t *testing.T) {
	c := New(3)
	for i := range 3 {
		c.Touch(i)
	}
	c.SetEvictable(2, true)

	v, ok := c.Evict()
	require.True(t, ok)
	require.Equal(t, 2, v)

	_, ok = c.Evict()
	require.False(t, ok)
}

func TestClock_Remove(t *testing.T) {
	c := New(3)
	c.Touch(0)
	c.Touch(1)
	c.Touch(2)
	c.SetEvictable(0, true)
	c.SetEvictable(1, true)
	require.Equal(t, 2, c.Size())

	c.Remove(0)
	require.Equal(t, 1, c.Size())
	c.Remove(0)
	require.Equal(t, 1, c.Size())

	// removing a pinned frame leaves the evictable count alone
	c.Remove(2)
	require.Equal(t, 1, c.Size())

	v, ok := c.Evict()
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestClock_OutOfRangeIgnored(t *testing.T) {
	c := New(2)
	c.Touch(-1)
	c.Touch(2)
	c.SetEvictable(-1, true)
	c.SetEvictable(5, true)
	c.Remove(-1)
	c.Remove(2)
	require.Equal(t, 0, c.Size())
}
