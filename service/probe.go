package service

import (
	"sync"

	"github.com/matenet/pin/core"
	"github.com/matenet/pin/ports"
)

// Probe answers whether a device capability can be used right now.
// Answers are never cached: permissions and devices come and go.
type Probe struct {
	mu       sync.RWMutex
	surfaces map[core.Capability]ports.Availability
}

func NewProbe() *Probe {
	return &Probe{surfaces: make(map[core.Capability]ports.Availability)}
}

// Register binds a capability to the surface that provides it. A nil
// surface unregisters it.
func (p *Probe) Register(c core.Capability, a ports.Availability) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a == nil {
		delete(p.surfaces, c)
		return
	}
	p.surfaces[c] = a
}

// Supports reports false for capabilities nobody provides
func (p *Probe) Supports(c core.Capability) bool {
	p.mu.RLock()
	a := p.surfaces[c]
	p.mu.RUnlock()
	if a == nil {
		return false
	}
	return a.Available()
}
