package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountersAccumulate(t *testing.T) {
	c := NewCounters()
	c.NotifyReservation(Range{Base: 0x1000, Size: 4096})
	c.NotifyInternalUse(Range{Base: 0x1000, Size: 4096})
	c.NotifyInternalUse(Range{Base: 0x2000, Size: 4096})
	c.NotifyReturnedToOS(Range{Base: 0x1000, Size: 4096})

	snap := c.Snapshot()
	require.Equal(t, 1, snap.Reservations)
	require.Equal(t, int64(4096), snap.ReservedBytes)
	require.Equal(t, 2, snap.InternalUses)
	require.Equal(t, 1, snap.ReturnsToOS)
	require.Equal(t, int64(4096), snap.ReturnedBytes)
}

func TestNoopDiscardsEverything(t *testing.T) {
	n := Noop()
	require.NotPanics(t, func() {
		n.NotifyReservation(Range{})
		n.NotifyInternalUse(Range{})
		n.NotifyReturnedToOS(Range{})
	})
}
