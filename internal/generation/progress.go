package generation

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Phase is one leg of simulated progress: From→To over Duration.
type Phase struct {
	From     float64
	To       float64
	Duration time.Duration
}

// DefaultPhases move from 5% to 85% over 27 seconds, then hold.
var DefaultPhases = []Phase{
	{From: 5, To: 30, Duration: 5 * time.Second},
	{From: 30, To: 50, Duration: 8 * time.Second},
	{From: 50, To: 70, Duration: 8 * time.Second},
	{From: 70, To: 85, Duration: 6 * time.Second},
}

const (
	// FinalizingProgress is shown once the remote call has returned.
	FinalizingProgress = 95
	// CompleteProgress marks a confirmed success.
	CompleteProgress = 100

	jitterSpan = 3.0
)

// Progress simulates a progress bar while the remote call is in flight.
// Values never decrease and never pass the ceiling of the current phase.
type Progress struct {
	mu     sync.Mutex
	phases []Phase
	rnd    *rand.Rand
	value  float64
	frozen bool
}

// NewProgress builds a simulator; seed makes jitter reproducible in tests.
func NewProgress(phases []Phase, seed uint64) *Progress {
	if len(phases) == 0 {
		phases = DefaultPhases
	}
	return &Progress{
		phases: phases,
		rnd:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		value:  phases[0].From,
	}
}

// Advance moves the simulation to elapsed time since start and returns the
// displayed percentage.
func (p *Progress) Advance(elapsed time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen {
		return int(p.value)
	}

	ph, frac, hold := p.locate(elapsed)
	target := ph.From + (ph.To-ph.From)*frac
	if !hold {
		target += (p.rnd.Float64()*2 - 1) * jitterSpan
	}
	if target > ph.To {
		target = ph.To
	}
	if target > p.value {
		p.value = target
	}
	return int(p.value)
}

// Finalize jumps to the finalizing value and stops the simulation.
func (p *Progress) Finalize() int {
	return p.jump(FinalizingProgress)
}

// Complete jumps to 100.
func (p *Progress) Complete() int {
	return p.jump(CompleteProgress)
}

// Freeze stops the simulation at its current value.
func (p *Progress) Freeze() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frozen = true
	return int(p.value)
}

// Value returns the current percentage.
func (p *Progress) Value() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.value)
}

func (p *Progress) jump(to float64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frozen = true
	if to > p.value {
		p.value = to
	}
	return int(p.value)
}

// locate returns the phase active at elapsed and how far through it we are.
// Past the last phase it holds at that phase's ceiling.
func (p *Progress) locate(elapsed time.Duration) (Phase, float64, bool) {
	if elapsed < 0 {
		elapsed = 0
	}
	for _, ph := range p.phases {
		if elapsed < ph.Duration {
			return ph, float64(elapsed) / float64(ph.Duration), false
		}
		elapsed -= ph.Duration
	}
	return p.phases[len(p.phases)-1], 1, true
}
