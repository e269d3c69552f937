package engine

import (
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-vis/engine/camera"
	"github.com/Carmen-Shannon/oxy-vis/engine/geometry"
	"github.com/Carmen-Shannon/oxy-vis/engine/renderer"
	"github.com/Carmen-Shannon/oxy-vis/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadDoc = `{
	"materials": {"flat": {"effect": "unlit"}},
	"effects": {"unlit": {"type": "unlit"}},
	"geometries": {
		"quad": {
			"sources": {"pos": {"stride": 3, "data": [-1,-1,0, 1,-1,0, 1,1,0, -1,1,0], "min": [-1,-1,0], "max": [1,1,0]}},
			"inputs": {"POSITION": {"source": "pos", "offset": 0}},
			"triangles": [0,1,2, 0,2,3],
			"numPrimitives": 2
		}
	},
	"nodes": {
		"front": {"matrix": [1,0,0, 0,1,0, 0,0,1, 0,0,-5], "geometryinstances": {"q": {"geometry": "quad", "material": "flat"}}},
		"behind": {"matrix": [1,0,0, 0,1,0, 0,0,1, 0,0,5], "geometryinstances": {"q": {"geometry": "quad", "material": "flat"}}}
	}
}`

type fakeWindow struct {
	onResize func(width, height int)
	closed   chan struct{}
}

func (w *fakeWindow) SetResizeCallback(callback func(width, height int)) { w.onResize = callback }
func (w *fakeWindow) ProcessMessages()                                   { <-w.closed }

func newQuadScene(t *testing.T, device renderer.Device) scene.Scene {
	t.Helper()
	s := scene.NewScene()
	t.Cleanup(s.Destroy)
	require.NoError(t, s.Load([]byte(quadDoc), scene.LoadParams{Device: device}))
	return s
}

func TestFrameDrawsVisibleSurfaces(t *testing.T) {
	rb := renderer.NewRecordingBackend()
	s := newQuadScene(t, rb)
	cam := camera.NewCamera(camera.WithLookAt(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}), camera.WithFov(math.Pi/3))

	var ticks, renders int
	e := NewEngine(
		WithScene(0, s),
		WithCamera(cam),
		WithRenderer(renderer.NewRenderer(rb)),
		WithTickCallback(func(float32) { ticks++ }),
		WithRenderCallback(func(float32) { renders++ }),
	)
	e.Frame(1.0 / 60)

	assert.Equal(t, 1, ticks)
	assert.Equal(t, 1, renders)
	require.Len(t, s.CurrentVisibleRenderables(), 1)
	assert.Len(t, rb.CallsOf(renderer.CallDrawIndexed), 1)

	front, ok := s.FindNode("front")
	require.True(t, ok)
	assert.Equal(t, front, s.CurrentVisibleRenderables()[0].Node())
}

func TestFrameWithoutCameraOnlyUpdates(t *testing.T) {
	s := scene.NewScene()
	defer s.Destroy()
	h := s.CreateNode(scene.WithNodeName("box"))
	shape := &geometry.Shape{Name: "box", HalfExtents: mgl32.Vec3{1, 1, 1}}
	require.NoError(t, s.AddRenderable(h, scene.NewRenderable(shape, nil, nil)))
	require.NoError(t, s.AddRootNode(h))

	e := NewEngine(WithScene(0, s))
	e.Frame(0)

	ext, ok := s.WorldExtents(h)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, ext.HalfExtents())
	assert.Empty(t, s.CurrentVisibleRenderables())
}

func TestScenesAreUpdatedInKeyOrder(t *testing.T) {
	e := NewEngine()
	a, b := scene.NewScene(), scene.NewScene()
	defer a.Destroy()
	defer b.Destroy()

	e.AddScene(10, a)
	e.AddScene(-1, b)
	assert.Same(t, b, e.Scene(-1))
	assert.Len(t, e.Scenes(), 2)

	e.RemoveScene(10)
	assert.Nil(t, e.Scene(10))
	assert.Len(t, e.Scenes(), 1)
}

func TestRunHeadlessUntilQuit(t *testing.T) {
	var ticks atomic.Int32
	var e Engine
	e = NewEngine(
		WithTickRate(500),
		WithRenderFrameLimit(500),
		WithTickCallback(func(float32) {
			if ticks.Add(1) == 3 {
				e.Quit()
			}
		}),
	)

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after Quit")
	}
	assert.GreaterOrEqual(t, ticks.Load(), int32(3))
	e.Quit()
}

func TestRunStopsWhenWindowCloses(t *testing.T) {
	w := &fakeWindow{closed: make(chan struct{})}
	cam := camera.NewCamera()
	e := NewEngine(WithWindow(w), WithCamera(cam), WithRenderFrameLimit(200))
	require.NotNil(t, w.onResize)

	w.onResize(1600, 800)
	assert.InDelta(t, 2.0, cam.Aspect(), 1e-6)
	w.onResize(100, 0)
	assert.InDelta(t, 2.0, cam.Aspect(), 1e-6)

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	close(w.closed)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after the window closed")
	}
}

type presentingBackend struct {
	*renderer.RecordingBackend
	begun, ended, presented int
	surfaceSizes            [][2]int
}

func (b *presentingBackend) ConfigureSurface(width, height int) {
	b.surfaceSizes = append(b.surfaceSizes, [2]int{width, height})
}

func (b *presentingBackend) BeginFrame() error { b.begun++; return nil }
func (b *presentingBackend) EndFrame()         { b.ended++ }
func (b *presentingBackend) Present()          { b.presented++ }

func TestFramePresentsEvenWhenNothingIsVisible(t *testing.T) {
	pb := &presentingBackend{RecordingBackend: renderer.NewRecordingBackend()}
	s := newQuadScene(t, pb)
	cam := camera.NewCamera(camera.WithLookAt(mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}))

	e := NewEngine(WithScene(0, s), WithCamera(cam), WithRenderer(renderer.NewRenderer(pb)))
	e.Frame(0)
	assert.Empty(t, s.CurrentVisibleRenderables())
	assert.Empty(t, pb.CallsOf(renderer.CallDrawIndexed))

	e.SetCamera(camera.NewCamera(camera.WithLookAt(mgl32.Vec3{}, mgl32.Vec3{0, 0, 1})))
	e.Frame(0)
	assert.Len(t, pb.CallsOf(renderer.CallDrawIndexed), 1)
	assert.Equal(t, 2, pb.begun)
	assert.Equal(t, 2, pb.ended)
	assert.Equal(t, 2, pb.presented)
}

func TestFreezeVisibilityKeepsCullingCamera(t *testing.T) {
	rb := renderer.NewRecordingBackend()
	s := newQuadScene(t, rb)
	cam := camera.NewCamera(camera.WithLookAt(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}))
	e := NewEngine(WithScene(0, s), WithCamera(cam), WithRenderer(renderer.NewRenderer(rb)))

	front, _ := s.FindNode("front")
	behind, _ := s.FindNode("behind")

	e.FreezeVisibility(true)
	assert.True(t, e.VisibilityFrozen())
	cam.LookAt(mgl32.Vec3{}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0})
	e.Frame(0)
	require.Len(t, s.CurrentVisibleRenderables(), 1)
	assert.Equal(t, front, s.CurrentVisibleRenderables()[0].Node())

	// drawing still uses the live camera
	params := rb.CallsOf(renderer.CallSetTechniqueParameters)
	require.Len(t, params, 1)
	assert.Equal(t, cam.ViewProjectionMatrix(), params[0].Parameters[renderer.ParamViewProjection])
	world, ok := params[0].Parameters[renderer.ParamWorld].(mgl32.Mat4)
	require.True(t, ok)
	assert.True(t, world.ApproxEqual(mgl32.Translate3D(0, 0, -5)))

	e.FreezeVisibility(false)
	assert.False(t, e.VisibilityFrozen())
	e.Frame(0)
	require.Len(t, s.CurrentVisibleRenderables(), 1)
	assert.Equal(t, behind, s.CurrentVisibleRenderables()[0].Node())
}

func TestResizeReconfiguresSurfaceOnNextFrame(t *testing.T) {
	pb := &presentingBackend{RecordingBackend: renderer.NewRecordingBackend()}
	w := &fakeWindow{closed: make(chan struct{})}
	e := NewEngine(WithWindow(w), WithCamera(camera.NewCamera()), WithRenderer(renderer.NewRenderer(pb)))

	w.onResize(800, 600)
	w.onResize(1024, 768)
	w.onResize(0, 768)
	assert.Empty(t, pb.surfaceSizes)

	e.Frame(0)
	e.Frame(0)
	assert.Equal(t, [][2]int{{1024, 768}}, pb.surfaceSizes)
}
