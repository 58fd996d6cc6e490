package graphics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGPUTimerManager_ResultsLagBySlotCycle(t *testing.T) {
	device := newFakeDevice()
	device.timestampPeriod = 2.0 // ns per tick
	m := NewGPUTimerManager(device, 2, testLogger{t})
	cmd := &fakeCmd{}

	// frame 0, slot 0: first use, nothing to resolve
	m.ResolveTimings(cmd, 0)
	assert.Empty(t, m.Timings())
	m.BeginScope(cmd, "Geometry")
	m.EndScope(cmd, "Geometry")

	// frame 1, slot 1: still nothing, slot 0's queries are not ours
	m.ResolveTimings(cmd, 1)
	assert.Empty(t, m.Timings())

	// slot 0's GPU work completed; 500000 ticks * 2 ns = 1 ms
	pool := device.queryPools[0]
	pool.ticks = []uint64{1000, 501000}
	pool.ready = true

	// frame 2, slot 0: now the frame-0 scope resolves
	m.ResolveTimings(cmd, 0)
	ms, ok := m.TimingMs("Geometry")
	assert.True(t, ok, "Geometry scope should have resolved")
	assert.InDelta(t, 1.0, ms, 1e-9)
	assert.Equal(t, 2, pool.resets, "pool must be reset on every resolve of its slot")
}

func TestGPUTimerManager_DegradesWithoutTimestampSupport(t *testing.T) {
	device := newFakeDevice()
	device.timestampPeriod = 0
	m := NewGPUTimerManager(device, 2, testLogger{t})
	cmd := &fakeCmd{}

	m.ResolveTimings(cmd, 0)
	m.BeginScope(cmd, "Geometry")
	m.EndScope(cmd, "Geometry")
	m.ResolveTimings(cmd, 0)

	assert.Empty(t, m.Timings())
	assert.Empty(t, cmd.ops, "disabled manager must not record GPU commands")
}

func TestGPUTimerManager_DegradesOnQueryPoolFailure(t *testing.T) {
	device := newFakeDevice()
	device.failQueryPool = true
	m := NewGPUTimerManager(device, 2, testLogger{t})
	cmd := &fakeCmd{}

	m.ResolveTimings(cmd, 0)
	m.BeginScope(cmd, "Culling")
	m.EndScope(cmd, "Culling")

	assert.Empty(t, m.Timings())
}

func TestGPUTimerManager_UnmatchedEndScopeIsIgnored(t *testing.T) {
	device := newFakeDevice()
	m := NewGPUTimerManager(device, 2, testLogger{t})
	cmd := &fakeCmd{}

	m.ResolveTimings(cmd, 0)
	m.EndScope(cmd, "Nothing")

	assert.Equal(t, []string{"resetQueries"}, cmd.ops)
}
