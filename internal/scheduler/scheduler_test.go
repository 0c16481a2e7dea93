package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOneShotFiresAtDueTick(t *testing.T) {
	s := New()
	fired := 0
	s.Schedule(5, 0, func() { fired++ })

	s.Advance(4)
	require.Zero(t, fired)

	s.Advance(5)
	require.Equal(t, 1, fired)

	s.Advance(100)
	require.Equal(t, 1, fired, "one-shot must not refire")
	require.Zero(t, s.Pending())
}

func TestRepeatingRearms(t *testing.T) {
	s := New()
	fired := 0
	s.ScheduleRepeating(3, 0, func() { fired++ })

	for tick := int64(1); tick <= 9; tick++ {
		s.Advance(tick)
	}
	require.Equal(t, 3, fired)
}

func TestRepeatingCatchesUpOnce(t *testing.T) {
	// A large jump fires the entry once, then re-arms relative to the
	// new now rather than replaying missed periods.
	s := New()
	fired := 0
	s.ScheduleRepeating(2, 0, func() { fired++ })

	s.Advance(10)
	require.Equal(t, 1, fired)
	s.Advance(12)
	require.Equal(t, 2, fired)
}

func TestCancelHandle(t *testing.T) {
	s := New()
	fired := false
	e := s.Schedule(1, 0, func() { fired = true })
	s.Cancel(e)
	s.Advance(10)
	require.False(t, fired)

	s.Cancel(nil) // must not panic
}

func TestCancelOwner(t *testing.T) {
	s := New()
	var mine, theirs int
	s.Schedule(1, 7, func() { mine++ })
	s.ScheduleRepeating(1, 7, func() { mine++ })
	s.Schedule(1, 8, func() { theirs++ })

	s.CancelOwner(7)
	s.Advance(5)

	require.Zero(t, mine)
	require.Equal(t, 1, theirs)
}

func TestRepeatingCancelsItself(t *testing.T) {
	s := New()
	fired := 0
	var e *Entry
	e = s.ScheduleRepeating(1, 0, func() {
		fired++
		if fired == 2 {
			s.Cancel(e)
		}
	})
	for tick := int64(1); tick <= 10; tick++ {
		s.Advance(tick)
	}
	require.Equal(t, 2, fired)
}

func TestFiringOrderIsStable(t *testing.T) {
	s := New()
	var order []int
	s.Schedule(2, 0, func() { order = append(order, 2) })
	s.Schedule(1, 0, func() { order = append(order, 1) })
	s.Schedule(2, 0, func() { order = append(order, 3) })

	s.Advance(2)
	require.Equal(t, []int{1, 2, 3}, order)
}
