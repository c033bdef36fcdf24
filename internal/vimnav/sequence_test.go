package vimnav

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func newClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestSequenceDetector(t *testing.T) {
	clock := newClock()
	d := NewSequenceDetector(0, clock.now)

	seq, waiting := d.Feed("g")
	require.Empty(t, seq)
	require.True(t, waiting)
	require.Equal(t, "g", d.Awaiting())

	seq, waiting = d.Feed("g")
	require.Equal(t, "gg", seq)
	require.False(t, waiting)
	require.Empty(t, d.Awaiting())

	seq, waiting = d.Feed("j")
	require.Empty(t, seq)
	require.False(t, waiting, "plain keys pass through")
}

func TestSequenceDetectorTimeout(t *testing.T) {
	clock := newClock()
	d := NewSequenceDetector(DefaultSequenceTimeout, clock.now)

	d.Feed("[")
	clock.advance(DefaultSequenceTimeout + time.Millisecond)
	require.Empty(t, d.Awaiting())

	seq, waiting := d.Feed("[")
	require.Empty(t, seq, "an expired first key does not pair")
	require.True(t, waiting, "the late key starts a new sequence")

	clock.advance(DefaultSequenceTimeout)
	seq, _ = d.Feed("[")
	require.Equal(t, "[[", seq, "the deadline itself still counts")
}

func TestSequenceDetectorMismatch(t *testing.T) {
	d := NewSequenceDetector(0, newClock().now)

	d.Feed("]")
	seq, waiting := d.Feed("[")
	require.Empty(t, seq)
	require.True(t, waiting)
	require.Equal(t, "[", d.Awaiting())

	seq, waiting = d.Feed("k")
	require.Empty(t, seq)
	require.False(t, waiting)
	require.Empty(t, d.Awaiting())
}

func TestSequenceDetectorReset(t *testing.T) {
	d := NewSequenceDetector(0, newClock().now)
	d.Feed("g")
	d.Reset()
	seq, waiting := d.Feed("g")
	require.Empty(t, seq)
	require.True(t, waiting)
}
