package graphics

// ScopeTiming is one resolved GPU timing sample.
type ScopeTiming struct {
	Name string
	Ms   float64
}

type timerScope struct {
	name  string
	begin uint32
	end   uint32
	open  bool
}

const queriesPerSlot = 64

// GPUTimerManager brackets named command-buffer regions with timestamp
// queries and resolves them into milliseconds one slot-cycle later, so
// readback never stalls the pipeline. Results for a slot become available
// only after the GPU finishes that slot's previous submission, which means
// the first N frames of a run report no timings.
type GPUTimerManager struct {
	device Device
	log    Logger

	pools  []QueryPool
	scopes [][]timerScope
	warm   []bool

	current  int
	resolved []ScopeTiming
	period   float32
	disabled bool
}

// NewGPUTimerManager allocates one query pool per frame slot. When the device
// lacks timestamp support the manager stays alive but permanently reports
// empty timings.
func NewGPUTimerManager(device Device, framesInFlight int, log Logger) *GPUTimerManager {
	m := &GPUTimerManager{
		device: device,
		log:    log,
		scopes: make([][]timerScope, framesInFlight),
		warm:   make([]bool, framesInFlight),
		period: device.TimestampPeriod(),
	}
	if m.period == 0 {
		log.Warnf("gpu timers: device reports no timestamp support, timings disabled")
		m.disabled = true
		return m
	}
	m.pools = make([]QueryPool, framesInFlight)
	for i := range m.pools {
		pool, err := device.CreateQueryPool(queriesPerSlot)
		if err != nil {
			log.Warnf("gpu timers: query pool creation failed (%v), timings disabled", err)
			m.destroyPools()
			m.disabled = true
			return m
		}
		m.pools[i] = pool
	}
	return m
}

// ResolveTimings reads back the queries written the last time frameSlot was
// current, publishes them as the latest timing set, and resets the slot's
// pool for this frame's scopes. Call once per frame, right after the slot's
// command buffer begins recording.
func (m *GPUTimerManager) ResolveTimings(cmd CommandBuffer, frameSlot int) {
	if m.disabled {
		return
	}
	m.current = frameSlot

	if m.warm[frameSlot] {
		m.resolved = m.readBack(frameSlot)
	}
	m.warm[frameSlot] = true

	cmd.ResetQueryPool(m.pools[frameSlot], 0, queriesPerSlot)
	m.scopes[frameSlot] = m.scopes[frameSlot][:0]
}

func (m *GPUTimerManager) readBack(slot int) []ScopeTiming {
	recorded := m.scopes[slot]
	if len(recorded) == 0 {
		return nil
	}
	used := uint32(len(recorded) * 2)
	ticks, ok := m.pools[slot].Results(0, used)
	if !ok {
		// Slot fence was waited on before recording, so this only happens
		// on drivers that lost the queries; report nothing rather than stall.
		return nil
	}
	out := make([]ScopeTiming, 0, len(recorded))
	for _, s := range recorded {
		if s.open || int(s.end) >= len(ticks) {
			continue
		}
		delta := ticks[s.end] - ticks[s.begin]
		ms := float64(delta) * float64(m.period) / 1e6
		out = append(out, ScopeTiming{Name: s.name, Ms: ms})
	}
	return out
}

// BeginScope writes the opening timestamp of a named region into the current
// slot's pool. Scopes must be closed with EndScope before the frame ends.
func (m *GPUTimerManager) BeginScope(cmd CommandBuffer, name string) {
	if m.disabled {
		return
	}
	slot := m.current
	query := uint32(len(m.scopes[slot]) * 2)
	if query+1 >= queriesPerSlot {
		m.log.Warnf("gpu timers: query pool exhausted, dropping scope %q", name)
		return
	}
	m.scopes[slot] = append(m.scopes[slot], timerScope{
		name:  name,
		begin: query,
		end:   query + 1,
		open:  true,
	})
	cmd.WriteTimestamp(m.pools[slot], query)
}

func (m *GPUTimerManager) EndScope(cmd CommandBuffer, name string) {
	if m.disabled {
		return
	}
	slot := m.current
	for i := len(m.scopes[slot]) - 1; i >= 0; i-- {
		s := &m.scopes[slot][i]
		if s.name == name && s.open {
			s.open = false
			cmd.WriteTimestamp(m.pools[slot], s.end)
			return
		}
	}
	m.log.Warnf("gpu timers: EndScope(%q) without matching BeginScope", name)
}

// Timings returns the most recently resolved samples. The slice is reused
// across resolves; callers needing retention must copy.
func (m *GPUTimerManager) Timings() []ScopeTiming { return m.resolved }

// TimingMs looks up one named sample from the latest resolve.
func (m *GPUTimerManager) TimingMs(name string) (float64, bool) {
	for _, t := range m.resolved {
		if t.Name == name {
			return t.Ms, true
		}
	}
	return 0, false
}

func (m *GPUTimerManager) destroyPools() {
	for _, p := range m.pools {
		if p != nil {
			p.Destroy()
		}
	}
	m.pools = nil
}

func (m *GPUTimerManager) Destroy() {
	m.destroyPools()
}
