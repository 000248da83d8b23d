package dcp_test

import (
	dcp "github.com/techmccat/imxrt-dcp"
	"github.com/techmccat/imxrt-dcp/internal/hwsim"
)

// gate is a counting ClockGate stub.
type gate struct {
	on, off int
}

func (g *gate) EnableClock()  { g.on++ }
func (g *gate) DisableClock() { g.off++ }

// newDevice brings up a DCP over a fresh simulator. auto selects whether
// the simulator executes work during the arming register write or waits
// for an explicit Run.
func newDevice(auto bool) (*dcp.DCP, *hwsim.Sim, *gate) {
	sim := hwsim.New()
	sim.Auto = auto
	cg := &gate{}
	d := dcp.NewUnclocked(sim, sim).Clock(cg).Build()
	return d, sim, cg
}

// seq fills a fresh buffer with 0, 1, 2, ...
func seq(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}
