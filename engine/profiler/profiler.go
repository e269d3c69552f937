package profiler

import (
	"log"
	"runtime"
	"time"
)

// Profiler tracks frame rate, memory and visibility statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	visibility      VisibilityStats
	visibilityCount int
	last            Stats
	now             func() time.Time
}

// VisibilityStats are the output sizes of one visibility pass.
type VisibilityStats struct {
	Nodes       int
	Renderables int
	Lights      int
	Portals     int
}

// Stats is a snapshot of the statistics logged at the end of an interval.
type Stats struct {
	FPS        float64
	HeapMB     float64
	AllocRate  float64
	GCCount    uint32
	SysMB      float64
	Visibility VisibilityStats // averaged per recorded pass
	Passes     int
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
		now:            time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// RecordVisibility accumulates the result sizes of one visibility pass into the current interval.
//
// Parameters:
//   - nodes: number of visible nodes
//   - renderables: number of visible renderables
//   - lights: number of visible light instances
//   - portals: number of portals reached by the traversal
func (p *Profiler) RecordVisibility(nodes, renderables, lights, portals int) {
	p.visibility.Nodes += nodes
	p.visibility.Renderables += renderables
	p.visibility.Lights += lights
	p.visibility.Portals += portals
	p.visibilityCount++
}

// Last returns the statistics of the most recently completed interval.
func (p *Profiler) Last() Stats {
	return p.last
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory,
// and the average visibility output per pass when passes were recorded.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			pause := p.memStats.PauseNs[i%256] / 1000
			if pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	p.last = Stats{
		FPS:       fps,
		HeapMB:    allocMB,
		AllocRate: allocRateMB,
		GCCount:   gcCount,
		SysMB:     sysMB,
		Passes:    p.visibilityCount,
	}

	log.Printf("[Profiler] FPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		fps, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

	if n := p.visibilityCount; n > 0 {
		v := p.visibility
		p.last.Visibility = VisibilityStats{
			Nodes:       v.Nodes / n,
			Renderables: v.Renderables / n,
			Lights:      v.Lights / n,
			Portals:     v.Portals / n,
		}
		log.Printf("[Profiler] Visible/pass: nodes %d | renderables %d | lights %d | portals %d (%d passes)",
			p.last.Visibility.Nodes, p.last.Visibility.Renderables, p.last.Visibility.Lights, p.last.Visibility.Portals, n)
	}

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.visibility = VisibilityStats{}
	p.visibilityCount = 0
	return true
}
