package graphics

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rendererFixture struct {
	r      *Renderer
	device *fakeDevice
	swap   *fakeSwapchain
	window *fakeWindow
	scene  *fakeScene
}

func newRendererFixture(t *testing.T, mode RenderMode, framesInFlight int) *rendererFixture {
	device := newFakeDevice()
	swap := &fakeSwapchain{extent: Extent2D{Width: 800, Height: 600}}
	window := &fakeWindow{extents: []Extent2D{{Width: 800, Height: 600}}}
	scene := newFakeScene()
	scene.add(1, "cube", "stone", false)
	scene.add(2, "cube", "stone", true)

	r := NewRenderer(RendererConfig{
		Device:         device,
		Swapchain:      swap,
		Window:         window,
		Meshes:         newFakeMeshes(),
		Shaders:        fakeShaders{},
		Log:            testLogger{t},
		FramesInFlight: framesInFlight,
		Mode:           mode,
	})
	return &rendererFixture{r: r, device: device, swap: swap, window: window, scene: scene}
}

func newTestRenderer(t *testing.T, mode RenderMode, framesInFlight int) *Renderer {
	return newRendererFixture(t, mode, framesInFlight).r
}

func TestRenderer_FrameLoop(t *testing.T) {
	for _, mode := range []RenderMode{RenderModeCPUDriven, RenderModeGPUDriven} {
		t.Run(mode.String(), func(t *testing.T) {
			fx := newRendererFixture(t, mode, 2)
			fx.r.SceneInitialized(fx.scene)

			// The fake fence panics on any slot reuse that skips the wait,
			// so surviving several ring wraps exercises the invariant.
			for i := 0; i < 6; i++ {
				fx.r.RenderFrame(fx.scene, nil)
			}
			assert.Equal(t, 6, fx.swap.submits)
			assert.Equal(t, 6, fx.swap.presents)
			assert.Equal(t, uint64(6), fx.r.FrameCount())
		})
	}
}

func TestRenderer_RenderFrameBeforeSceneInitializedPanics(t *testing.T) {
	fx := newRendererFixture(t, RenderModeCPUDriven, 2)
	defer func() {
		if recover() == nil {
			t.Fatal("RenderFrame before SceneInitialized did not panic")
		}
	}()
	fx.r.RenderFrame(fx.scene, nil)
}

func TestRenderer_BeginFrameReentrancyPanics(t *testing.T) {
	fx := newRendererFixture(t, RenderModeCPUDriven, 2)
	fx.r.SceneInitialized(fx.scene)
	fx.r.BeginFrame()
	defer func() {
		if recover() == nil {
			t.Fatal("nested BeginFrame did not panic")
		}
	}()
	fx.r.BeginFrame()
}

func TestRenderer_CurrentFrameIndexOutsideFramePanics(t *testing.T) {
	fx := newRendererFixture(t, RenderModeCPUDriven, 2)
	defer func() {
		if recover() == nil {
			t.Fatal("CurrentFrameIndex outside a frame did not panic")
		}
	}()
	fx.r.CurrentFrameIndex()
}

func TestRenderer_OutOfDateAcquireRecreatesAndRetriesOnce(t *testing.T) {
	fx := newRendererFixture(t, RenderModeCPUDriven, 2)
	fx.swap.acquireErrs = []error{ErrSurfaceOutOfDate}
	fx.r.SceneInitialized(fx.scene)

	fx.r.RenderFrame(fx.scene, nil)

	assert.Equal(t, 2, fx.swap.acquires, "acquire must be retried exactly once")
	require.Len(t, fx.swap.resizes, 1)
	assert.Equal(t, Extent2D{Width: 800, Height: 600}, fx.swap.resizes[0])
}

func TestRenderer_RecreateSurfaceWaitsOutDegenerateSize(t *testing.T) {
	fx := newRendererFixture(t, RenderModeCPUDriven, 2)
	fx.r.SceneInitialized(fx.scene)
	fx.window.extents = []Extent2D{{Width: 0, Height: 0}, {Width: 1920, Height: 1080}}

	fx.r.recreateSurface()

	assert.Equal(t, 1, fx.window.waitEvents, "must poll events while the surface is zero-area")
	require.Len(t, fx.swap.resizes, 1, "surface must be resized exactly once")
	assert.Equal(t, Extent2D{Width: 1920, Height: 1080}, fx.swap.resizes[0])
	assert.Equal(t, Extent2D{Width: 1920, Height: 1080}, fx.r.Graph().extent)
}

func TestRenderer_WindowResizeTriggersRecreate(t *testing.T) {
	fx := newRendererFixture(t, RenderModeCPUDriven, 2)
	fx.r.SceneInitialized(fx.scene)
	fx.window.extents = []Extent2D{{Width: 1024, Height: 768}}
	fx.window.resized = true

	fx.r.RenderFrame(fx.scene, nil)

	require.Len(t, fx.swap.resizes, 1)
	assert.Equal(t, Extent2D{Width: 1024, Height: 768}, fx.swap.resizes[0])
	assert.False(t, fx.window.WasResized(), "resized flag must be cleared")
}

func TestRenderer_StalePresentTriggersRecreate(t *testing.T) {
	fx := newRendererFixture(t, RenderModeCPUDriven, 2)
	fx.swap.presentErrs = []error{ErrSurfaceOutOfDate}
	fx.r.SceneInitialized(fx.scene)

	fx.r.RenderFrame(fx.scene, nil)
	fx.r.RenderFrame(fx.scene, nil)

	require.Len(t, fx.swap.resizes, 1, "only the stale present recreates the surface")
}

func TestRenderer_DeferredDestructionWaitsForSlotCycle(t *testing.T) {
	fx := newRendererFixture(t, RenderModeCPUDriven, 2)
	fx.r.SceneInitialized(fx.scene)

	fx.r.RenderFrame(fx.scene, nil) // now on slot 1
	doomed := &fakeBuffer{name: "doomed"}
	fx.r.DeferDestroy(doomed)

	fx.r.RenderFrame(fx.scene, nil) // advances to slot 0, flushes slot 0
	assert.False(t, doomed.destroyed, "resource freed too early")

	fx.r.RenderFrame(fx.scene, nil) // advances to slot 1, flushes slot 1
	assert.True(t, doomed.destroyed, "resource must be freed once its slot cycles back")
}

func TestRenderer_WaitIdleDrainsDeferredDestruction(t *testing.T) {
	fx := newRendererFixture(t, RenderModeCPUDriven, 3)
	fx.r.SceneInitialized(fx.scene)

	doomed := &fakeBuffer{name: "doomed"}
	fx.r.DeferDestroy(doomed)
	fx.r.WaitIdle()

	assert.True(t, doomed.destroyed)
}

// assertOpsInOrder checks that want appears as an ordered subsequence of the
// recorded command stream.
func assertOpsInOrder(t *testing.T, ops []string, want ...string) {
	t.Helper()
	matched := 0
	for _, op := range ops {
		if matched < len(want) && op == want[matched] {
			matched++
		}
	}
	require.Equal(t, len(want), matched, "ops %v missing ordered subsequence %v", ops, want)
}

func TestRenderer_GPUDrivenDrawsDynamicOnlyScene(t *testing.T) {
	fx := newRendererFixture(t, RenderModeGPUDriven, 2)
	fx.scene = newFakeScene()
	fx.scene.add(7, "cube", "stone", true)
	fx.r.SceneInitialized(fx.scene)

	fx.r.RenderFrame(fx.scene, nil)

	// A scene with no static instances still culls and draws: the dynamic
	// range gets its own indirect command.
	assertOpsInOrder(t, fx.device.cmds[0].ops,
		"bindPipeline culling",
		"bindBuffers 3",
		"dispatch 1,1,1",
		"bindPipeline static_mesh_indirect",
		"bindBuffers 3",
		"drawIndirect x1",
	)
}

func TestRenderer_FrameTimeScopeBracketsCommands(t *testing.T) {
	fx := newRendererFixture(t, RenderModeCPUDriven, 2)
	fx.r.SceneInitialized(fx.scene)

	fx.r.RenderFrame(fx.scene, nil)

	ops := fx.device.cmds[0].ops
	reset := slices.Index(ops, "resetQueries")
	require.GreaterOrEqual(t, reset, 0)
	assert.Equal(t, "timestamp 0", ops[reset+1], "whole-frame scope opens before any pass")
	require.Equal(t, "end", ops[len(ops)-1])
	assert.Equal(t, "timestamp 1", ops[len(ops)-2], "whole-frame scope closes last")
}

func TestRenderer_FrameTimeScopeResolves(t *testing.T) {
	fx := newRendererFixture(t, RenderModeCPUDriven, 2)
	fx.r.SceneInitialized(fx.scene)

	fx.r.RenderFrame(fx.scene, nil)
	fx.r.RenderFrame(fx.scene, nil)

	// Queries 0 and 1 bracket the whole frame; 4ms apart at a 1ns period.
	for _, pool := range fx.device.queryPools {
		pool.ready = true
		pool.ticks = make([]uint64, queriesPerSlot)
		pool.ticks[1] = 4_000_000
	}
	fx.r.RenderFrame(fx.scene, nil)

	ms, ok := fx.r.Timers().TimingMs("GPU Frame Time")
	require.True(t, ok)
	assert.InDelta(t, 4.0, ms, 1e-9)
}

type fakeUI struct{ frames int }

func (u *fakeUI) Record(*FrameInfo) { u.frames++ }

func TestRenderer_PerFrameUIOverride(t *testing.T) {
	fx := newRendererFixture(t, RenderModeCPUDriven, 2)
	fx.r.SceneInitialized(fx.scene)

	overlay := &fakeUI{}
	fx.r.RenderFrame(fx.scene, overlay)
	assert.Equal(t, 1, overlay.frames)

	fx.r.RenderFrame(fx.scene, nil)
	assert.Equal(t, 1, overlay.frames, "nil falls back to the configured overlay")
}

func TestRenderer_SceneChangedRebuildsInstanceBuffers(t *testing.T) {
	fx := newRendererFixture(t, RenderModeCPUDriven, 2)
	fx.r.SceneInitialized(fx.scene)
	require.Equal(t, 2, fx.r.Registry().InstanceCount())

	fx.scene.add(3, "sphere", "metal", false)
	fx.r.SceneChanged(fx.scene)

	assert.Equal(t, 3, fx.r.Registry().InstanceCount())
	assert.Equal(t, 2, fx.r.Registry().BatchCount())
}
