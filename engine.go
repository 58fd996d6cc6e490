package forge

import (
	"fmt"
	"time"

	"github.com/forge3d/forge/graphics"
	"github.com/forge3d/forge/graphics/vulkan"
	"github.com/forge3d/forge/scene"
)

// BenchmarkConfig enables the frame benchmark collaborator. After the
// warm-up period, each measured frame is sampled and the table is written
// once the window closes; Run returns right after the write.
type BenchmarkConfig struct {
	WarmupFrames   int
	MeasuredFrames int
	OutputPath     string
}

// Config describes an engine instance. Zero values get defaults.
type Config struct {
	Width          int
	Height         int
	Title          string
	FramesInFlight int
	Mode           graphics.RenderMode
	Debug          bool
	ShaderDir      string
	Benchmark      *BenchmarkConfig

	// Device, Swapchain and Window override the Vulkan backend when set.
	// Tests use this seam; production leaves them nil.
	Device    graphics.Device
	Swapchain graphics.Swapchain
	Window    EngineWindow
}

// EngineWindow is the windowing surface the engine loop drives; WindowState
// is the production implementation.
type EngineWindow interface {
	graphics.Window
	PollEvents()
	ShouldClose() bool
	Destroy()
}

// Engine ties the window, GPU backend, asset server and renderer into a
// runnable application shell.
type Engine struct {
	cfg    Config
	log    Logger
	window EngineWindow

	device    graphics.Device
	swapchain graphics.Swapchain
	assets    *AssetServer
	renderer  *graphics.Renderer

	scene   *scene.Scene
	lastGen uint64
	bench   *graphics.FrameBenchmark
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 720
	}
	if cfg.Title == "" {
		cfg.Title = "Forge"
	}
	if cfg.FramesInFlight <= 0 {
		cfg.FramesInFlight = 2
	}
	log := NewDefaultLogger("forge", cfg.Debug)

	e := &Engine{cfg: cfg, log: log, window: cfg.Window, device: cfg.Device, swapchain: cfg.Swapchain}
	if e.device == nil {
		ws, err := createWindowState(cfg.Width, cfg.Height, cfg.Title)
		if err != nil {
			return nil, err
		}
		device, swapchain, err := vulkan.CreateBackend(cfg.Title, ws.Handle(), log)
		if err != nil {
			ws.Destroy()
			return nil, fmt.Errorf("creating vulkan backend: %w", err)
		}
		e.window = ws
		e.device = device
		e.swapchain = swapchain
	}

	e.assets = NewAssetServer(e.device, log)
	if cfg.ShaderDir != "" {
		if err := e.assets.LoadShaderDir(cfg.ShaderDir); err != nil {
			return nil, err
		}
	}

	e.renderer = graphics.NewRenderer(graphics.RendererConfig{
		Device:         e.device,
		Swapchain:      e.swapchain,
		Window:         e.window,
		Meshes:         e.assets,
		Shaders:        e.assets,
		Log:            log,
		FramesInFlight: cfg.FramesInFlight,
		Mode:           cfg.Mode,
	})

	if cfg.Benchmark != nil {
		e.bench = graphics.NewFrameBenchmark(
			cfg.Benchmark.WarmupFrames,
			cfg.Benchmark.MeasuredFrames,
			cfg.Benchmark.OutputPath,
			graphics.DefaultMetrics(cfg.Mode),
			log,
		)
	}
	return e, nil
}

func (e *Engine) Assets() *AssetServer         { return e.assets }
func (e *Engine) Renderer() *graphics.Renderer { return e.renderer }
func (e *Engine) Logger() Logger               { return e.log }

// LoadScene makes sc the active scene and builds the frame graph for it.
func (e *Engine) LoadScene(sc *scene.Scene) {
	e.scene = sc
	e.renderer.SceneInitialized(sc)
	e.lastGen = sc.Generation()
}

// Run drives the frame loop until the window closes or, when benchmarking,
// until the measurement table is written.
func (e *Engine) Run() error {
	if e.scene == nil {
		return fmt.Errorf("engine: Run without a loaded scene")
	}
	last := time.Now()
	for !e.window.ShouldClose() {
		e.window.PollEvents()

		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now

		e.scene.Update(dt)
		if gen := e.scene.Generation(); gen != e.lastGen {
			e.renderer.SceneChanged(e.scene)
			e.lastGen = gen
		}

		e.renderer.RenderFrame(e.scene, nil)

		if e.bench != nil {
			counts := graphics.InstanceCounts{
				Total:   e.renderer.Registry().InstanceCount(),
				Static:  e.renderer.Registry().StaticInstanceCount(),
				Dynamic: e.renderer.Registry().DynamicInstanceCount(),
			}
			if err := e.bench.RecordFrame(e.sampleMetric, counts); err != nil {
				return err
			}
			if e.bench.Done() {
				break
			}
		}
	}
	e.renderer.WaitIdle()
	return nil
}

// sampleMetric resolves one benchmark column: GPU timer scopes first, CPU
// profiler scopes as the fallback.
func (e *Engine) sampleMetric(name string) float64 {
	if ms, ok := e.renderer.Timers().TimingMs(name); ok {
		return ms
	}
	return e.renderer.Profiler().LastMs(name)
}

// Shutdown releases everything in reverse construction order.
func (e *Engine) Shutdown() {
	e.renderer.WaitIdle()
	e.renderer.Destroy()
	e.assets.Destroy()
	e.swapchain.Destroy()
	if err := e.device.WaitIdle(); err != nil {
		e.log.Warnf("engine: device wait during shutdown: %v", err)
	}
	e.window.Destroy()
}
