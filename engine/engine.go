package engine

import (
	"log"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-vis/engine/camera"
	"github.com/Carmen-Shannon/oxy-vis/engine/profiler"
	"github.com/Carmen-Shannon/oxy-vis/engine/renderer"
	"github.com/Carmen-Shannon/oxy-vis/engine/scene"
	"github.com/samber/lo"
)

// Window is the part of a platform window the engine drives. window.Window satisfies it.
type Window interface {
	// SetResizeCallback sets the function called when the window is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// ProcessMessages runs the window message loop until the window is closed.
	ProcessMessages()
}

// framePresenter is implemented by backends that draw into a presentable surface, such as the
// WebGPU backend. Draws are only accepted between BeginFrame and EndFrame.
type framePresenter interface {
	BeginFrame() error
	EndFrame()
	Present()
}

// surfaceConfigurer is implemented by backends whose surface follows the window size.
type surfaceConfigurer interface {
	ConfigureSurface(width, height int)
}

// engine implements the Engine interface.
// Coordinates the tick, render and window loops.
type engine struct {
	mu *sync.RWMutex

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   Window
	camera   camera.Camera
	cullCam  camera.Camera // frozen copy of camera; nil while visibility follows camera

	// resize recorded by the window loop, applied to the surface on the render goroutine
	pendingWidth, pendingHeight int
	resized                     bool
	renderer renderer.Renderer

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	scenes    map[int]scene.Scene
	drawItems []renderer.DrawItem

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine is the main entry point for the engine.
// It drives the frame loop: game logic at a fixed tick rate, and per render frame a scene update,
// a visibility pass from the engine camera and the submission of the visible surfaces.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - Window: the window instance, or nil for a headless engine
	Window() Window

	// Camera returns the camera visibility passes are run from.
	//
	// Returns:
	//   - camera.Camera: the camera, or nil when none was set
	Camera() camera.Camera

	// SetCamera replaces the camera visibility passes are run from.
	//
	// Parameters:
	//   - c: the new camera, nil skips visibility and drawing
	SetCamera(c camera.Camera)

	// FreezeVisibility pins the visibility pass to a snapshot of the current camera while drawing
	// keeps following the live camera. Unfreezing returns visibility to the live camera.
	//
	// Parameters:
	//   - frozen: true to freeze visibility at the current camera placement
	FreezeVisibility(frozen bool)

	// VisibilityFrozen reports whether FreezeVisibility is in effect.
	//
	// Returns:
	//   - bool: true while visibility is frozen
	VisibilityFrozen() bool

	// Profiler returns the profiler ticked once per render frame while profiling is enabled.
	// Pass it to scene.WithProfiler to include visibility statistics in its output.
	//
	// Returns:
	//   - *profiler.Profiler: the profiler
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for game logic, input processing and moving scene nodes.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called at the end of each render frame, after the
	// visibility pass and draw submission.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given z-index key.
	// Scenes are updated and drawn in ascending key order during the render loop.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key.
	// Returns nil if no scene exists at that key.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	//
	// Returns:
	//   - map[int]scene.Scene: a copy of the scenes map
	Scenes() map[int]scene.Scene

	// Frame runs one tick and one render frame on the calling goroutine.
	// Headless hosts and tests step the engine with Frame instead of Run.
	//
	// Parameters:
	//   - deltaTime: the time step in seconds passed to both callbacks
	Frame(deltaTime float32)

	// Run starts the tick and render loops and blocks until the window closes or Quit is called.
	// Without a window Run only returns after Quit.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration (scenes, camera, renderer, profiling, tick rate)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:               &sync.RWMutex{},
		tickRateChannel:  make(chan time.Duration, 1),
		quitChannel:      make(chan struct{}),
		scenes:           make(map[int]scene.Scene),
		running:          false,
		wg:               sync.WaitGroup{},
		profilingEnabled: false,
		engineTickRate:   time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler()
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			if width <= 0 || height <= 0 {
				return
			}
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.camera != nil {
				e.camera.SetAspect(float32(width) / float32(height))
			}
			e.pendingWidth, e.pendingHeight = width, height
			e.resized = true
		})
	}

	return e
}

func (e *engine) Window() Window {
	return e.window
}

func (e *engine) Camera() camera.Camera {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.camera
}

func (e *engine) SetCamera(c camera.Camera) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.camera = c
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Frame(deltaTime float32) {
	if e.tickCallback != nil {
		e.tickCallback(deltaTime)
	}
	e.renderFrame(deltaTime)
}

func (e *engine) Run() {
	e.running = true
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	e.running = false
	log.Printf("[Engine] stopped")
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handle launches the engine and render goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] render goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			e.renderFrame(dt)

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

func (e *engine) FreezeVisibility(frozen bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !frozen || e.camera == nil {
		e.cullCam = nil
		return
	}
	c := e.camera
	snapshot := camera.NewCamera(
		camera.WithFov(c.Fov()),
		camera.WithAspect(c.Aspect()),
		camera.WithNear(c.Near()),
		camera.WithFar(c.Far()),
	)
	snapshot.SetWorldMatrix(c.WorldMatrix())
	e.cullCam = snapshot
}

func (e *engine) VisibilityFrozen() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cullCam != nil
}

// renderFrame updates every scene in ascending z-index order, runs its visibility pass from the
// engine camera and submits the surfaces found visible in one batch.
func (e *engine) renderFrame(dt float32) {
	e.mu.Lock()
	keys := lo.Keys(e.scenes)
	slices.Sort(keys)
	scenes := make([]scene.Scene, len(keys))
	for i, k := range keys {
		scenes[i] = e.scenes[k]
	}
	cam := e.camera
	cullCam := lo.Ternary(e.cullCam != nil, e.cullCam, cam)
	items := e.drawItems[:0]

	for _, s := range scenes {
		s.Update()
		if cam == nil {
			continue
		}
		s.UpdateVisibleNodes(cullCam)
		if e.renderer != nil {
			items = s.DrawItems(items)
		}
	}
	if e.renderer != nil {
		if e.resized {
			if sc, ok := e.renderer.Backend().(surfaceConfigurer); ok {
				sc.ConfigureSurface(e.pendingWidth, e.pendingHeight)
			}
			e.resized = false
		}
		if cam != nil {
			e.renderer.SetViewProjection(cam.ViewProjectionMatrix())
		}
		e.submit(items)
	}
	clear(items)
	e.drawItems = items[:0]
	e.mu.Unlock()

	if e.renderCallback != nil {
		e.renderCallback(dt)
	}

	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick()
	}
}

// submit draws the frame items. A presenting backend gets one frame per call even when nothing is
// visible, so the surface is still cleared.
func (e *engine) submit(items []renderer.DrawItem) {
	presenter, ok := e.renderer.Backend().(framePresenter)
	if !ok {
		if len(items) > 0 {
			e.renderer.Submit(items)
		}
		return
	}
	if err := presenter.BeginFrame(); err != nil {
		log.Printf("[Engine] begin frame: %v", err)
		return
	}
	e.renderer.Submit(items)
	presenter.EndFrame()
	presenter.Present()
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.running {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp := make(map[int]scene.Scene, len(e.scenes))
	for k, v := range e.scenes {
		cp[k] = v
	}
	return cp
}
