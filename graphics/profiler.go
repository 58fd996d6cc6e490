package graphics

import (
	"fmt"
	"strings"
	"time"
)

// Profiler tracks named CPU scopes on the orchestration thread. Scopes keep
// insertion order so stat dumps stay stable frame to frame.
type Profiler struct {
	scopes     map[string]time.Duration
	startTimes map[string]time.Time
	order      []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		scopes:     make(map[string]time.Duration),
		startTimes: make(map[string]time.Time),
		order:      make([]string, 0),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.startTimes[name] = time.Now()
	found := false
	for _, n := range p.order {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		p.order = append(p.order, name)
	}
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.startTimes[name]; ok {
		p.scopes[name] = time.Since(start)
	}
}

// LastMs returns the most recent duration of a scope in milliseconds,
// 0 when the scope has never closed.
func (p *Profiler) LastMs(name string) float64 {
	return float64(p.scopes[name].Microseconds()) / 1000.0
}

func (p *Profiler) StatsString() string {
	var sb strings.Builder
	sb.WriteString("Timings (CPU):\n")
	for _, name := range p.order {
		sb.WriteString(fmt.Sprintf("  %-24s: %.2f ms\n", name, p.LastMs(name)))
	}
	return sb.String()
}
