package graphics

import (
	"errors"
	"time"
)

// Extent2D is a drawable surface size in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

func (e Extent2D) AspectRatio() float32 {
	if e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

// Surface staleness conditions reported by Swapchain.AcquireNextImage and
// Swapchain.Present. Out-of-date means the surface must be resized before any
// further use; suboptimal means presentation still succeeded.
var (
	ErrSurfaceOutOfDate  = errors.New("graphics: presentation surface out of date")
	ErrSurfaceSuboptimal = errors.New("graphics: presentation surface suboptimal")
)

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageIndirect
)

// Fence is a GPU-to-CPU synchronization primitive, signaled when the GPU work
// it was submitted with completes.
type Fence interface {
	// Wait blocks until the fence is signaled or the timeout elapses.
	// A timeout is reported as an error; callers treat it as a device hang.
	Wait(timeout time.Duration) error
	Reset() error
	Signaled() bool
	Destroy()
}

// Semaphore orders GPU work against other GPU work without CPU involvement.
type Semaphore interface {
	Destroy()
}

type Buffer interface {
	Size() uint64
	Destroy()
}

type Pipeline interface {
	Destroy()
}

// RenderTarget is a pass-local offscreen color attachment.
type RenderTarget interface {
	Extent() Extent2D
	Destroy()
}

// QueryPool holds GPU timestamp query slots. Results become readable only
// after the submission that wrote them has completed.
type QueryPool interface {
	Capacity() uint32
	// Results returns raw timestamp ticks for [first, first+count).
	// ok is false while the queries are not yet available.
	Results(first, count uint32) (ticks []uint64, ok bool)
	Destroy()
}

// CommandBuffer records GPU work for one frame. It is reset and re-recorded
// every time its frame slot comes around.
type CommandBuffer interface {
	Reset() error
	Begin() error
	End() error

	BeginRendering(target RenderTarget)
	EndRendering()
	BindPipeline(p Pipeline)
	// BindBuffers attaches bufs to the descriptor slots of the most recently
	// bound pipeline, in the order its PipelineDesc declared them.
	BindBuffers(bufs ...Buffer)
	BindVertexBuffer(buf Buffer)
	BindIndexBuffer(buf Buffer)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	DrawIndexedIndirect(buf Buffer, offset uint64, drawCount, stride uint32)
	Dispatch(x, y, z uint32)
	// BlitToSwapchain copies src into the swapchain image acquired this frame.
	BlitToSwapchain(src RenderTarget)

	ResetQueryPool(pool QueryPool, first, count uint32)
	WriteTimestamp(pool QueryPool, query uint32)
}

// ShaderSet carries precompiled shader blobs. Shader compilation happens in
// the asset pipeline; this core only forwards the bytes to pipeline creation.
type ShaderSet struct {
	Vertex   []byte
	Fragment []byte
	Compute  []byte
}

// BindingKind is one descriptor slot of a pipeline. A PipelineDesc lists its
// slots in binding order; CommandBuffer.BindBuffers fills them in the same
// order.
type BindingKind uint8

const (
	BindingUniform BindingKind = iota
	BindingStorage
)

type PipelineDesc struct {
	Label      string
	Shaders    ShaderSet
	Bindings   []BindingKind
	DepthTest  bool
	AlphaBlend bool
	TargetSwap bool // render into the swapchain format instead of the offscreen format
}

// Device is the narrow GPU contract the renderer core drives. The production
// implementation lives in graphics/vulkan; tests substitute an in-memory fake.
type Device interface {
	CreateFence(signaled bool) (Fence, error)
	CreateSemaphore() (Semaphore, error)
	AllocateCommandBuffer() (CommandBuffer, error)

	CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error)
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	CreateGraphicsPipeline(desc PipelineDesc) (Pipeline, error)
	CreateComputePipeline(desc PipelineDesc) (Pipeline, error)
	CreateRenderTarget(extent Extent2D) (RenderTarget, error)

	// CreateQueryPool returns an error when timestamp queries are
	// unsupported; callers degrade to empty timing data.
	CreateQueryPool(capacity uint32) (QueryPool, error)
	// TimestampPeriod is the duration of one timestamp tick in nanoseconds,
	// 0 when the device cannot timestamp.
	TimestampPeriod() float32

	WaitIdle() error
}

// Swapchain owns the presentation surface images and the present-ready
// semaphore. The frame-slot index and the swap-image index are distinct;
// WaitForImageInFlight bridges the two.
type Swapchain interface {
	Extent() Extent2D
	AspectRatio() float32

	// AcquireNextImage obtains the next presentable image, arranging for
	// imageAvailable to be signaled once the image can be rendered to.
	AcquireNextImage(imageAvailable Semaphore) error
	// WaitForImageInFlight blocks until the frame that previously rendered
	// to the acquired image has finished, then records fence as its new user.
	WaitForImageInFlight(fence Fence) error
	// Submit enqueues cmd gated on imageAvailable, signaling the internal
	// present-ready semaphore and fence on completion.
	Submit(cmd CommandBuffer, imageAvailable Semaphore, fence Fence) error
	Present() error
	Resize(extent Extent2D) error
	Destroy()
}

// Window is the windowing collaborator surface consumed during resize.
type Window interface {
	DrawableExtent() Extent2D
	WasResized() bool
	ResetResizedFlag()
	// WaitEvents blocks until the platform reports an event. Used only by
	// the degenerate-size wait loop.
	WaitEvents()
}

// Logger is the logging collaborator contract; the engine's default logger
// satisfies it.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
