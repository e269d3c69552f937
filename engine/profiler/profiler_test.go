package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestProfilerTicksAtInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	p := NewProfiler(WithInterval(2*time.Second), WithClock(clock.now))

	clock.t = clock.t.Add(time.Second)
	assert.False(t, p.Tick())

	clock.t = clock.t.Add(time.Second)
	assert.True(t, p.Tick())
	assert.InDelta(t, 1.0, p.Last().FPS, 1e-9)
}

func TestProfilerAveragesVisibility(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now))

	p.RecordVisibility(10, 20, 2, 4)
	p.RecordVisibility(30, 40, 4, 0)
	clock.t = clock.t.Add(time.Second)
	assert.True(t, p.Tick())

	last := p.Last()
	assert.Equal(t, 2, last.Passes)
	assert.Equal(t, VisibilityStats{Nodes: 20, Renderables: 30, Lights: 3, Portals: 2}, last.Visibility)

	clock.t = clock.t.Add(time.Second)
	assert.True(t, p.Tick())
	assert.Equal(t, 0, p.Last().Passes)
	assert.Equal(t, VisibilityStats{}, p.Last().Visibility)
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	p := NewProfiler(WithInterval(0))
	assert.Equal(t, time.Second, p.updateInterval)
}
