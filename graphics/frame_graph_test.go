package graphics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingPass struct {
	basePass
	log      *[]string
	resized  []Extent2D
	compiled int
}

func newRecordingPass(name string, log *[]string) *recordingPass {
	return &recordingPass{basePass: basePass{name: name}, log: log}
}

func (p *recordingPass) Compile(*PassResources) error { p.compiled++; return nil }
func (p *recordingPass) Execute(*FrameInfo)           { *p.log = append(*p.log, p.name) }
func (p *recordingPass) SwapchainResized(e Extent2D)  { p.resized = append(p.resized, e) }

func newTestGraph(t *testing.T) *FrameGraph {
	return NewFrameGraph(newFakeDevice(), newFakeMeshes(), fakeShaders{}, Extent2D{Width: 640, Height: 480}, testLogger{t})
}

func TestFrameGraph_ExecutionOrderIsRegistrationOrder(t *testing.T) {
	var log []string
	g := newTestGraph(t)
	g.Add(newRecordingPass("A", &log))
	g.Add(newRecordingPass("B", &log))
	g.Add(newRecordingPass("C", &log))
	g.Compile()

	fi := &FrameInfo{}
	for frame := 0; frame < 3; frame++ {
		log = log[:0]
		fi.FrameIndex = frame % 2
		g.Execute(fi)
		assert.Equal(t, []string{"A", "B", "C"}, log, "frame %d", frame)
	}
}

func TestFrameGraph_ExecuteBeforeCompilePanics(t *testing.T) {
	var log []string
	g := newTestGraph(t)
	g.Add(newRecordingPass("A", &log))

	defer func() {
		if recover() == nil {
			t.Fatal("Execute before Compile did not panic")
		}
	}()
	g.Execute(&FrameInfo{})
}

func TestFrameGraph_AddAfterCompilePanics(t *testing.T) {
	var log []string
	g := newTestGraph(t)
	g.Add(newRecordingPass("A", &log))
	g.Compile()

	defer func() {
		if recover() == nil {
			t.Fatal("Add after Compile did not panic")
		}
	}()
	g.Add(newRecordingPass("B", &log))
}

func TestFrameGraph_CompileTwicePanics(t *testing.T) {
	var log []string
	g := newTestGraph(t)
	g.Add(newRecordingPass("A", &log))
	g.Compile()

	defer func() {
		if recover() == nil {
			t.Fatal("second Compile did not panic")
		}
	}()
	g.Compile()
}

func TestFrameGraph_ResizeBroadcast(t *testing.T) {
	var log []string
	g := newTestGraph(t)
	a := newRecordingPass("A", &log)
	b := newRecordingPass("B", &log)
	g.Add(a)
	g.Add(b)
	g.Compile()

	extent := Extent2D{Width: 1920, Height: 1080}
	g.SwapchainResized(extent)

	assert.Equal(t, []Extent2D{extent}, a.resized)
	assert.Equal(t, []Extent2D{extent}, b.resized)
}

func TestFrameGraph_ModeExclusivity(t *testing.T) {
	gpuNames := assembledPassNames(t, RenderModeGPUDriven)
	cpuNames := assembledPassNames(t, RenderModeCPUDriven)

	gpuOnly := []string{"Culling", "SceneUpdate", "GPUDrivenGeometry"}
	for _, name := range gpuOnly {
		assert.Contains(t, gpuNames, name)
		assert.NotContains(t, cpuNames, name)
	}
	assert.Contains(t, cpuNames, "Geometry")
	assert.NotContains(t, gpuNames, "Geometry")
}

func assembledPassNames(t *testing.T, mode RenderMode) []string {
	r := newTestRenderer(t, mode, 2)
	r.SceneInitialized(newFakeScene())
	return r.Graph().PassNames()
}
