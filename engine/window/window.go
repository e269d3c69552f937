package window

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// Window is the demo window: a WebGPU surface, keyboard state for fly controls and relative
// cursor motion for mouse look.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the callback for key press events. Repeats are not reported.
	//
	// Parameters:
	//   - callback: function receiving the key code, see the common.Key constants
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetCursorMoveCallback sets the callback for cursor motion.
	//
	// Parameters:
	//   - callback: function receiving the motion since the previous event in pixels
	SetCursorMoveCallback(callback func(dx, dy float32))

	// KeyPressed reports whether a key is currently held. Safe to call from any goroutine.
	//
	// Parameters:
	//   - keyCode: the key code
	//
	// Returns:
	//   - bool: true while the key is down
	KeyPressed(keyCode uint32) bool

	// SetTitle replaces the title bar text. The change is applied on the message loop.
	//
	// Parameters:
	//   - title: the new title
	SetTitle(title string)

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// ProcessMessages runs the window message loop on the calling thread.
	// Blocks until the window is closed. Calls the update callback each iteration.
	ProcessMessages()

	// Width returns the current framebuffer width in pixels.
	//
	// Returns:
	//   - int: width in pixels
	Width() int

	// Height returns the current framebuffer height in pixels.
	//
	// Returns:
	//   - int: height in pixels
	Height() int
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	mu *sync.RWMutex

	title        string
	pendingTitle string
	width        int
	height       int
	minWidth     int
	minHeight    int

	// captureCursor hides and locks the cursor so motion is unbounded.
	captureCursor bool

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	keys map[uint32]bool

	onUpdate     func()
	onResize     func(width, height int)
	onKeyDown    func(keyCode uint32)
	onCursorMove func(dx, dy float32)
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a new Window. It must be called from the main goroutine, which
// later runs ProcessMessages.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the created window
func NewWindow(options ...WindowBuilderOption) Window {
	w := &engineWindow{
		mu:        &sync.RWMutex{},
		title:     "oxy-vis",
		width:     1280,
		height:    720,
		minWidth:  320,
		minHeight: 200,
		keys:      make(map[uint32]bool),
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("failed to create platform window: %v", err))
	}
	return w
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetCursorMoveCallback(callback func(dx, dy float32)) {
	w.onCursorMove = callback
}

func (w *engineWindow) KeyPressed(keyCode uint32) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.keys[keyCode]
}

func (w *engineWindow) setKey(keyCode uint32, down bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if down {
		w.keys[keyCode] = true
	} else {
		delete(w.keys, keyCode)
	}
}

func (w *engineWindow) SetTitle(title string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pendingTitle = title
}

func (w *engineWindow) takeTitle() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pendingTitle == "" || w.pendingTitle == w.title {
		return "", false
	}
	w.title = w.pendingTitle
	return w.title, true
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if ok := platformProcessMessages(w); !ok {
			break
		}
		if title, ok := w.takeTitle(); ok {
			platformSetTitle(w, title)
		}

		if w.onUpdate != nil {
			w.onUpdate()
		}

		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.width
}

func (w *engineWindow) Height() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.height
}

func (w *engineWindow) setSize(width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.width = width
	w.height = height
}
