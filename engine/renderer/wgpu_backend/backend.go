package wgpu_backend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/Carmen-Shannon/oxy-vis/engine/renderer"
	"github.com/Carmen-Shannon/oxy-vis/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// WebGPU guarantees support for 1 (off) and 4; higher values are adapter-dependent.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4x multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4

	// MSAA8x enables 8x multisample anti-aliasing. Adapter-dependent.
	MSAA8x MSAASampleCount = 8

	// MSAA16x enables 16x multisample anti-aliasing. Adapter-dependent.
	MSAA16x MSAASampleCount = 16
)

// uniformSlotAlign is the WebGPU default minUniformBufferOffsetAlignment.
const uniformSlotAlign = 256

var errNoFrame = errors.New("wgpu_backend: no frame in progress")

// TechniqueDescriptor describes a render pipeline registered under a technique name.
// The WGSL source declares its parameter block, if any, as @group(0) @binding(0) uniform
// laid out as Parameters describes. Entry points, Attributes and Parameters left empty are
// reflected from the source.
type TechniqueDescriptor struct {
	Name           string
	Source         string
	VertexEntry    string
	FragmentEntry  string
	Attributes     []common.VertexAttribute
	Primitive      common.PrimitiveType
	Parameters     []renderer.TechniqueParameter
	DepthWrite     bool
	Blend          bool
	CullBackFaces  bool
	MaxDrawsPerSet int // parameter slots per frame; defaults to the backend setting
}

type technique struct {
	desc     TechniqueDescriptor
	pipeline *wgpu.RenderPipeline

	layout     *wgpu.BindGroupLayout
	params     *wgpu.Buffer
	slotBytes  uint64
	bindGroups []*wgpu.BindGroup
	nextSlot   int
	overflowed bool
	scratch    []float32
}

type gpuBuffer struct {
	label string
	size  int
	buf   *wgpu.Buffer
}

func (b *gpuBuffer) Label() string { return b.label }
func (b *gpuBuffer) Size() int     { return b.size }
func (b *gpuBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// Backend is the WebGPU implementation of the render collaborator. It owns the device,
// queue and surface, and wraps every frame's draws in a single render pass.
type Backend interface {
	renderer.Backend
	renderer.Device

	// RegisterTechnique compiles the WGSL source into a render pipeline stored under desc.Name.
	//
	// Parameters:
	//   - desc: the technique descriptor
	//
	// Returns:
	//   - error: an error if shader or pipeline creation fails
	RegisterTechnique(desc TechniqueDescriptor) error

	// ConfigureSurface (re)creates the swapchain, MSAA and depth targets for the given size.
	//
	// Parameters:
	//   - width: surface width in pixels
	//   - height: surface height in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the present mode used by the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// BeginFrame acquires the swapchain texture and begins the main render pass.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// EndFrame ends the render pass and submits the command buffer.
	EndFrame()

	// Present displays the frame submitted by EndFrame.
	Present()

	// Release frees every technique and device object owned by the backend.
	Release()
}

type backendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat        *wgpu.TextureFormat
	msaaTextureView      *wgpu.TextureView
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	forceFallbackAdapter bool
	presentMode          wgpu.PresentMode
	sampleCount          MSAASampleCount
	maxDrawsPerSet       int
	clearColor           wgpu.Color

	techniques map[string]*technique
	current    *technique

	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ Backend = &backendImpl{}

// NewBackend creates the WebGPU instance, adapter, device and queue for the given surface.
// Device creation failures panic, as they leave nothing to render with.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor, typically from window.SurfaceDescriptor
//   - options: functional options to configure the backend
//
// Returns:
//   - Backend: the backend
func NewBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...BackendBuilderOption) Backend {
	if surfaceDescriptor == nil {
		panic("wgpu_backend: surface descriptor must not be nil")
	}
	runtime.LockOSThread()

	b := &backendImpl{
		mu:             &sync.Mutex{},
		presentMode:    wgpu.PresentModeImmediate,
		sampleCount:    MSAA4x,
		maxDrawsPerSet: 1024,
		clearColor:     wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
		techniques:     make(map[string]*technique),
	}
	for _, option := range options {
		option(b)
	}

	b.instance = wgpu.CreateInstance(nil)
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		panic(err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		panic(err)
	}
	b.device = d
	b.queue = d.GetQueue()

	return b
}

func (b *backendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	count := uint32(b.sampleCount)
	msaaEnabled := count > 1

	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if msaaEnabled {
		msaaTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "MSAA Texture",
			Size: wgpu.Extent3D{
				Width:              uint32(width),
				Height:             uint32(height),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        *b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			panic(err)
		}
		b.msaaTextureView, err = msaaTexture.CreateView(nil)
		if err != nil {
			panic(err)
		}
	}

	if b.depthTextureView != nil {
		b.depthTextureView.Release()
	}
	depthTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		panic(err)
	}
	b.depthTextureView, err = depthTexture.CreateView(nil)
	if err != nil {
		panic(err)
	}

	// With MSAA the multisampled view is drawn into and the swapchain view becomes the
	// per-frame resolve target; without it the swapchain view is drawn into directly.
	storeOp := wgpu.StoreOpStore
	if msaaEnabled {
		storeOp = wgpu.StoreOpDiscard
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       b.msaaTextureView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    storeOp,
				ClearValue: b.clearColor,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}
}

func (b *backendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *backendImpl) RegisterTechnique(desc TechniqueDescriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if desc.Name == "" {
		return errors.New("wgpu_backend: technique name must not be empty")
	}
	if b.surfaceFormat == nil {
		return errors.New("wgpu_backend: ConfigureSurface must be called before RegisterTechnique")
	}
	if _, ok := b.techniques[desc.Name]; ok {
		return nil
	}
	if err := reflectTechnique(&desc); err != nil {
		return fmt.Errorf("technique %s: %w", desc.Name, err)
	}
	desc.VertexEntry = common.Coalesce(desc.VertexEntry, "vs_main")
	desc.FragmentEntry = common.Coalesce(desc.FragmentEntry, "fs_main")
	desc.MaxDrawsPerSet = common.Coalesce(desc.MaxDrawsPerSet, b.maxDrawsPerSet)

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Source,
		},
	})
	if err != nil {
		return fmt.Errorf("technique %s: %w", desc.Name, err)
	}
	defer module.Release()

	t := &technique{desc: desc}
	var layouts []*wgpu.BindGroupLayout
	if len(desc.Parameters) > 0 {
		if err := b.createParameterSlots(t); err != nil {
			return fmt.Errorf("technique %s: %w", desc.Name, err)
		}
		layouts = append(layouts, t.layout)
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Name,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return fmt.Errorf("technique %s: %w", desc.Name, err)
	}

	color := wgpu.ColorTargetState{
		Format:    *b.surfaceFormat,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	if desc.Blend {
		color.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}
	cull := wgpu.CullModeNone
	if desc.CullBackFaces {
		cull = wgpu.CullModeBack
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Name + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
			Buffers:    []wgpu.VertexBufferLayout{vertexLayout(desc.Attributes)},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets:    []wgpu.ColorTargetState{color},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology(desc.Primitive),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cull,
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	pipelineLayout.Release()
	if err != nil {
		return fmt.Errorf("technique %s: %w", desc.Name, err)
	}
	t.pipeline = created
	b.techniques[desc.Name] = t
	return nil
}

// reflectTechnique fills the entry points, attributes and parameters the descriptor leaves
// empty from its WGSL source. A fully specified descriptor is not reflected.
func reflectTechnique(desc *TechniqueDescriptor) error {
	if desc.VertexEntry != "" && desc.FragmentEntry != "" && desc.Attributes != nil && desc.Parameters != nil {
		return nil
	}
	r, err := shader.Reflect(desc.Source)
	if err != nil {
		if desc.Attributes == nil {
			return err
		}
		return nil
	}
	desc.VertexEntry = common.Coalesce(desc.VertexEntry, r.VertexEntry)
	desc.FragmentEntry = common.Coalesce(desc.FragmentEntry, r.FragmentEntry)
	if desc.Attributes == nil {
		desc.Attributes = r.Attributes
	}
	if desc.Parameters == nil {
		desc.Parameters = r.Parameters
	}
	return nil
}

// createParameterSlots allocates one uniform buffer holding MaxDrawsPerSet aligned parameter
// blocks and a bind group per block, so every draw in a frame reads its own values.
// Caller must hold the mutex.
func (b *backendImpl) createParameterSlots(t *technique) error {
	blockBytes := uint64(renderer.ParameterBlockSize(t.desc.Parameters) * 4)
	t.slotBytes = (blockBytes + uniformSlotAlign - 1) / uniformSlotAlign * uniformSlotAlign

	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: t.desc.Name + " Parameters",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: blockBytes,
			},
		}},
	})
	if err != nil {
		return err
	}
	t.layout = layout
	return b.allocateSlots(t, t.desc.MaxDrawsPerSet)
}

// allocateSlots (re)creates the parameter buffer and bind groups for n draws.
// Caller must hold the mutex.
func (b *backendImpl) allocateSlots(t *technique, n int) error {
	for _, bg := range t.bindGroups {
		bg.Release()
	}
	if t.params != nil {
		t.params.Release()
	}

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: t.desc.Name + " Parameter Buffer",
		Size:  t.slotBytes * uint64(n),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	t.params = buf
	blockBytes := uint64(renderer.ParameterBlockSize(t.desc.Parameters) * 4)

	t.bindGroups = make([]*wgpu.BindGroup, n)
	for i := range t.bindGroups {
		bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  t.desc.Name + " Parameter Bind Group",
			Layout: t.layout,
			Entries: []wgpu.BindGroupEntry{{
				Binding: 0,
				Buffer:  buf,
				Offset:  uint64(i) * t.slotBytes,
				Size:    blockBytes,
			}},
		})
		if err != nil {
			return err
		}
		t.bindGroups[i] = bg
	}
	t.desc.MaxDrawsPerSet = n
	return nil
}

func (b *backendImpl) CreateVertexBuffer(label string, data []float32) (renderer.Buffer, error) {
	return b.createBuffer(label, common.SliceToBytes(data), wgpu.BufferUsageVertex|wgpu.BufferUsageCopyDst)
}

func (b *backendImpl) CreateIndexBuffer(label string, data []uint32) (renderer.Buffer, error) {
	return b.createBuffer(label, common.SliceToBytes(data), wgpu.BufferUsageIndex|wgpu.BufferUsageCopyDst)
}

func (b *backendImpl) createBuffer(label string, data []byte, usage wgpu.BufferUsage) (renderer.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(data) == 0 {
		return nil, fmt.Errorf("buffer %s: no data", label)
	}
	// WriteBuffer requires a 4-byte aligned size.
	size := (uint64(len(data)) + 3) &^ 3
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("buffer %s: %w", label, err)
	}
	b.queue.WriteBuffer(buf, 0, data)
	return &gpuBuffer{label: label, size: len(data), buf: buf}, nil
}

func (b *backendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.renderPassDescriptor == nil {
		return errors.New("wgpu_backend: ConfigureSurface must be called before BeginFrame")
	}
	if b.frameSurface != nil {
		return errors.New("wgpu_backend: previous frame surface not yet presented")
	}

	// Grow parameter storage for techniques that ran out of slots last frame.
	for _, t := range b.techniques {
		if t.overflowed {
			if err := b.allocateSlots(t, t.desc.MaxDrawsPerSet*2); err != nil {
				return fmt.Errorf("technique %s: %w", t.desc.Name, err)
			}
			t.overflowed = false
		}
		t.nextSlot = 0
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = view
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = view
	}

	b.frameEncoder = encoder
	b.framePass = encoder.BeginRenderPass(b.renderPassDescriptor)
	b.frameSurface = surfaceTexture
	b.frameView = view
	b.current = nil
	return nil
}

func (b *backendImpl) SetTechnique(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return errNoFrame
	}
	t, ok := b.techniques[name]
	if !ok {
		return fmt.Errorf("wgpu_backend: unknown technique %q", name)
	}
	b.current = t
	b.framePass.SetPipeline(t.pipeline)
	return nil
}

func (b *backendImpl) SetTechniqueParameters(params map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.current
	if b.framePass == nil || t == nil || len(t.bindGroups) == 0 {
		return
	}
	slot := t.nextSlot
	if slot >= len(t.bindGroups) {
		// Out of slots: reuse the last block this frame and grow at the next BeginFrame.
		t.overflowed = true
		slot = len(t.bindGroups) - 1
	} else {
		t.nextSlot++
	}

	t.scratch = renderer.PackParameters(t.desc.Parameters, params, t.scratch)
	b.queue.WriteBuffer(t.params, uint64(slot)*t.slotBytes, common.SliceToBytes(t.scratch))
	b.framePass.SetBindGroup(0, t.bindGroups[slot], nil)
}

// SetStream binds the buffer at slot 0. The attribute layout is fixed by the technique's
// pipeline, so attributes is not consulted.
func (b *backendImpl) SetStream(buffer renderer.Buffer, attributes []common.VertexAttribute, offset int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	gb, ok := buffer.(*gpuBuffer)
	if b.framePass == nil || !ok || gb.buf == nil {
		return
	}
	b.framePass.SetVertexBuffer(0, gb.buf, uint64(offset), wgpu.WholeSize)
}

func (b *backendImpl) SetIndexBuffer(buffer renderer.Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	gb, ok := buffer.(*gpuBuffer)
	if b.framePass == nil || !ok || gb.buf == nil {
		return
	}
	b.framePass.SetIndexBuffer(gb.buf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
}

func (b *backendImpl) Draw(primitive common.PrimitiveType, vertexCount, firstVertex int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil || b.current == nil || vertexCount <= 0 {
		return
	}
	b.framePass.Draw(uint32(vertexCount), 1, uint32(firstVertex), 0)
}

func (b *backendImpl) DrawIndexed(primitive common.PrimitiveType, indexCount, firstIndex int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil || b.current == nil || indexCount <= 0 {
		return
	}
	b.framePass.DrawIndexed(uint32(indexCount), 1, uint32(firstIndex), 0, 0)
}

func (b *backendImpl) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.End()
	b.framePass.Release()
	b.framePass = nil
	b.current = nil

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.frameEncoder.Release()
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameEncoder = nil
		b.frameSurface = nil
		b.frameView = nil
		return
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil
}

func (b *backendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
}

func (b *backendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, t := range b.techniques {
		for _, bg := range t.bindGroups {
			bg.Release()
		}
		if t.params != nil {
			t.params.Release()
		}
		if t.layout != nil {
			t.layout.Release()
		}
		t.pipeline.Release()
		delete(b.techniques, name)
	}
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
		b.depthTextureView = nil
	}
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
}

// vertexLayout converts an interleaved float32 attribute layout into a WebGPU buffer layout.
// Attributes are bound to shader locations in declaration order.
func vertexLayout(attrs []common.VertexAttribute) wgpu.VertexBufferLayout {
	out := make([]wgpu.VertexAttribute, 0, len(attrs))
	for i, a := range attrs {
		out = append(out, wgpu.VertexAttribute{
			Format:         vertexFormat(a.Components),
			Offset:         uint64(a.Offset * 4),
			ShaderLocation: uint32(i),
		})
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(renderer.VertexStride(attrs) * 4),
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  out,
	}
}

func vertexFormat(components int) wgpu.VertexFormat {
	switch components {
	case 1:
		return wgpu.VertexFormatFloat32
	case 2:
		return wgpu.VertexFormatFloat32x2
	case 3:
		return wgpu.VertexFormatFloat32x3
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

func topology(p common.PrimitiveType) wgpu.PrimitiveTopology {
	switch p {
	case common.PrimitiveLines:
		return wgpu.PrimitiveTopologyLineList
	case common.PrimitivePoints:
		return wgpu.PrimitiveTopologyPointList
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}
