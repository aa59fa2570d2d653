// Package observ provides the phase timer behind the CLI's --timings flag.
package observ

import (
	"fmt"
	"strings"
	"time"
)

// Phase records the duration and metadata of one compilation phase.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer tracks the execution time of multiple compilation phases.
type Timer struct {
	phases []Phase
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 8)} }

// Begin starts a new phase and returns its index.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End finishes a phase by its index.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
}

// Summary returns a human-readable string summarizing all tracked phases.
func (t *Timer) Summary() string {
	var b strings.Builder
	var total time.Duration
	for _, p := range t.phases {
		fmt.Fprintf(&b, "%-10s %10s", p.Name, p.Dur.Round(time.Microsecond))
		if p.Note != "" {
			fmt.Fprintf(&b, "  %s", p.Note)
		}
		b.WriteByte('\n')
		total += p.Dur
	}
	fmt.Fprintf(&b, "%-10s %10s\n", "total", total.Round(time.Microsecond))
	return b.String()
}
