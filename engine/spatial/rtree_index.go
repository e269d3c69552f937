package spatial

import (
	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/dhconnelly/rtreego"
	"github.com/go-gl/mathgl/mgl32"
)

type rtreeEntry[T comparable] struct {
	item    T
	extents common.Extents
	rect    rtreego.Rect

	next      common.Extents
	hasNext   bool
	finalized bool
	removed   bool
	slot      int
}

// Bounds implements rtreego.Spatial.
func (e *rtreeEntry[T]) Bounds() rtreego.Rect {
	return e.rect
}

// rtreeIndexImpl is a SpatialIndex backed by an R-tree that is bulk loaded on Finalize.
// It suits content that changes rarely, such as static level geometry.
type rtreeIndexImpl[T comparable] struct {
	tree       *rtreego.Rtree
	entries    map[T]*rtreeEntry[T]
	registered []*rtreeEntry[T]
	objs       []rtreego.Spatial

	extents      common.Extents
	hasExtents   bool
	extentsDirty bool
	dirty        bool

	cfg rtreeConfig
}

var _ SpatialIndex[int] = &rtreeIndexImpl[int]{}

// NewRTreeIndex creates an empty R-tree backed index.
//
// Parameters:
//   - options: variadic list of RTreeBuilderOption functions to configure the index
//
// Returns:
//   - SpatialIndex[T]: the new index
func NewRTreeIndex[T comparable](options ...RTreeBuilderOption) SpatialIndex[T] {
	cfg := defaultRTreeConfig()
	for _, opt := range options {
		opt(&cfg)
	}
	return &rtreeIndexImpl[T]{
		entries: make(map[T]*rtreeEntry[T]),
		cfg:     cfg,
	}
}

func (r *rtreeIndexImpl[T]) Add(item T, extents common.Extents) {
	r.Update(item, extents)
}

func (r *rtreeIndexImpl[T]) Update(item T, extents common.Extents) {
	e, ok := r.entries[item]
	if !ok {
		e = &rtreeEntry[T]{item: item}
		r.entries[item] = e
		r.registered = append(r.registered, e)
	}
	e.next = extents
	e.hasNext = true
	r.dirty = true
}

func (r *rtreeIndexImpl[T]) Remove(item T) bool {
	e, ok := r.entries[item]
	if !ok {
		return false
	}
	e.removed = true
	delete(r.entries, item)
	r.dirty = true
	r.extentsDirty = true
	return true
}

func (r *rtreeIndexImpl[T]) Finalize() {
	if !r.dirty {
		return
	}

	objs := r.objs[:0]
	kept := r.registered[:0]
	for _, e := range r.registered {
		if e.removed {
			continue
		}
		if e.hasNext {
			e.extents = e.next
			e.rect = r.rect(e.extents)
			e.hasNext = false
		}
		e.finalized = true
		e.slot = len(kept)
		kept = append(kept, e)
		objs = append(objs, e)
	}
	clear(r.registered[len(kept):])
	r.registered = kept

	r.tree = rtreego.NewTree(3, r.cfg.minChildren, r.cfg.maxChildren, objs...)
	clear(objs)
	r.objs = objs[:0]

	r.dirty = false
	r.extentsDirty = true
}

func (r *rtreeIndexImpl[T]) GetVisibleNodes(planes []common.Plane, out []T) []T {
	for _, e := range r.registered {
		if !e.finalized || e.removed {
			continue
		}
		if common.IsInsidePlanesAABB(e.extents, planes) {
			out = append(out, e.item)
		}
	}
	return out
}

func (r *rtreeIndexImpl[T]) GetOverlappingNodes(extents common.Extents, out []T) []T {
	if r.tree == nil {
		return out
	}
	r.tree.SearchIntersect(r.rect(extents), func(_ []rtreego.Spatial, obj rtreego.Spatial) (bool, bool) {
		e := obj.(*rtreeEntry[T])
		if !e.removed && e.extents.Overlaps(extents) {
			out = append(out, e.item)
		}
		return true, false
	})
	return out
}

func (r *rtreeIndexImpl[T]) GetSphereOverlappingNodes(center mgl32.Vec3, radius float32, out []T) []T {
	if r.tree == nil {
		return out
	}
	box := common.ExtentsFromCenter(center, mgl32.Vec3{radius, radius, radius})
	r.tree.SearchIntersect(r.rect(box), func(_ []rtreego.Spatial, obj rtreego.Spatial) (bool, bool) {
		e := obj.(*rtreeEntry[T])
		if !e.removed && sphereOverlapsExtents(center, radius, e.extents) {
			out = append(out, e.item)
		}
		return true, false
	})
	return out
}

func (r *rtreeIndexImpl[T]) GetOverlappingPairs(out [][2]T) [][2]T {
	if r.tree == nil {
		return out
	}
	for _, e := range r.registered {
		if !e.finalized || e.removed {
			continue
		}
		r.tree.SearchIntersect(e.rect, func(_ []rtreego.Spatial, obj rtreego.Spatial) (bool, bool) {
			o := obj.(*rtreeEntry[T])
			if o.slot > e.slot && !o.removed && o.extents.Overlaps(e.extents) {
				out = append(out, [2]T{e.item, o.item})
			}
			return true, false
		})
	}
	return out
}

func (r *rtreeIndexImpl[T]) GetExtents() (common.Extents, bool) {
	if r.extentsDirty {
		r.extents = common.EmptyExtents()
		r.hasExtents = false
		for _, e := range r.registered {
			if !e.finalized || e.removed {
				continue
			}
			r.extents = r.extents.Union(e.extents)
			r.hasExtents = true
		}
		r.extentsDirty = false
	}
	if !r.hasExtents {
		return common.Extents{}, false
	}
	return r.extents, true
}

func (r *rtreeIndexImpl[T]) Has(item T) bool {
	_, ok := r.entries[item]
	return ok
}

func (r *rtreeIndexImpl[T]) Len() int {
	return len(r.entries)
}

func (r *rtreeIndexImpl[T]) Clear() {
	clear(r.entries)
	clear(r.registered)
	r.registered = r.registered[:0]
	r.tree = nil
	r.dirty = false
	r.hasExtents = false
	r.extentsDirty = false
}

// rect converts extents to an R-tree rectangle padded by epsilon, since R-tree intersection
// excludes touching faces. Exact overlap is re-checked against the stored extents.
func (r *rtreeIndexImpl[T]) rect(e common.Extents) rtreego.Rect {
	eps := r.cfg.epsilon
	lo := rtreego.Point{float64(e[0]) - eps, float64(e[1]) - eps, float64(e[2]) - eps}
	hi := rtreego.Point{float64(e[3]) + eps, float64(e[4]) + eps, float64(e[5]) + eps}
	rect, err := rtreego.NewRectFromPoints(lo, hi)
	if err != nil {
		panic("spatial: " + err.Error())
	}
	return rect
}
