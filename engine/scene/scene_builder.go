package scene

import (
	"log"

	"github.com/Carmen-Shannon/oxy-vis/engine/config"
	"github.com/Carmen-Shannon/oxy-vis/engine/profiler"
	"github.com/Carmen-Shannon/oxy-vis/engine/spatial"
	"github.com/go-gl/mathgl/mgl32"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *sceneImpl)

// WithStaticIndex sets the spatial index static nodes are filed in.
//
// Parameters:
//   - idx: an empty index
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithStaticIndex(idx spatial.SpatialIndex[NodeID]) SceneBuilderOption {
	return func(s *sceneImpl) {
		s.staticIndex = idx
	}
}

// WithDynamicIndex sets the spatial index dynamic nodes are filed in.
//
// Parameters:
//   - idx: an empty index
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithDynamicIndex(idx spatial.SpatialIndex[NodeID]) SceneBuilderOption {
	return func(s *sceneImpl) {
		s.dynamicIndex = idx
	}
}

// WithComputeWorkers sets the number of worker goroutines UpdateNodes fans dirty root
// hierarchies out to. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of compute workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithComputeWorkers(n int) SceneBuilderOption {
	return func(s *sceneImpl) {
		if n < 1 {
			n = 1
		}
		s.computeWorkers = n
	}
}

// WithTightAreaExtents rebuilds area extents from the loaded portals on every InitializeAreas
// instead of letting them only grow.
//
// Parameters:
//   - tight: true to rebuild from the portal extents
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithTightAreaExtents(tight bool) SceneBuilderOption {
	return func(s *sceneImpl) {
		s.tightAreaExtents = tight
	}
}

// WithMaxVisiblePortals caps the portals a single visibility pass may traverse.
//
// Parameters:
//   - n: the cap, ignored when not positive
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithMaxVisiblePortals(n int) SceneBuilderOption {
	return func(s *sceneImpl) {
		if n > 0 {
			s.maxVisiblePortals = n
		}
	}
}

// WithProfiler records visibility counts of every pass into p.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) SceneBuilderOption {
	return func(s *sceneImpl) {
		s.profiler = p
	}
}

// WithConfig applies a loaded configuration. Options listed after it override its values.
//
// Parameters:
//   - cfg: a validated configuration
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithConfig(cfg config.Config) SceneBuilderOption {
	return func(s *sceneImpl) {
		if cfg.ComputeWorkers > 0 {
			s.computeWorkers = cfg.ComputeWorkers
		}
		s.staticIndex = newIndex(cfg.StaticIndex, 0)
		s.dynamicIndex = newIndex(cfg.DynamicIndex, cfg.AABBMargin)
		s.tightAreaExtents = cfg.TightAreaExtents
		if cfg.MaxVisiblePortals > 0 {
			s.maxVisiblePortals = cfg.MaxVisiblePortals
		}
		if cfg.Profiling {
			interval, err := cfg.Interval()
			if err != nil {
				log.Printf("[Scene] %v, using default profiler interval", err)
			}
			s.profiler = profiler.NewProfiler(profiler.WithInterval(interval))
		}
	}
}

func newIndex(kind string, margin float32) spatial.SpatialIndex[NodeID] {
	if kind == config.IndexRTree {
		return spatial.NewRTreeIndex[NodeID]()
	}
	return spatial.NewAABBTree[NodeID](spatial.WithMargin(margin))
}

// NodeOption is a functional option for configuring a node created by CreateNode.
type NodeOption func(n *node)

// WithNodeName names the node. Names must be unique among siblings and among roots.
//
// Parameters:
//   - name: the node name
//
// Returns:
//   - NodeOption: option function to apply
func WithNodeName(name string) NodeOption {
	return func(n *node) {
		n.name = name
	}
}

// WithLocalTransform sets the initial local transform.
func WithLocalTransform(m mgl32.Mat4) NodeOption {
	return func(n *node) {
		n.local = m
		n.hasLocal = true
	}
}

// WithDynamic files the node under the dynamic index.
func WithDynamic(dynamic bool) NodeOption {
	return func(n *node) {
		n.dynamic = dynamic
	}
}

// WithDisabled creates the node disabled.
func WithDisabled(disabled bool) NodeOption {
	return func(n *node) {
		n.disabled = disabled
	}
}
