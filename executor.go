package dcp

import (
	"log/slog"
	"runtime"

	"github.com/techmccat/imxrt-dcp/packet"
)

// Executor hands work packets to the hardware. Both implementations return
// ErrNoFreeChannel when no channel can accept the submission; the registers
// are untouched in that case and the caller retries later.
type Executor interface {
	// ExecOne submits a single packet, arming one channel.
	ExecOne(p *Packet) error
	// ExecSlice submits ps as one hardware-followed chain: the channel is
	// armed once with the head packet's address and the rest execute
	// through chain-continuous links, in order.
	ExecSlice(ps []*Packet) error
}

// SingleChannel is an executor bound to exactly one channel. It needs no
// context-switch buffer and holds at most one outstanding chain.
type SingleChannel struct {
	d  *DCP
	ch *Channel
}

// NewSingleChannel takes and enables channel n of d.
func NewSingleChannel(d *DCP, n int) (*SingleChannel, error) {
	ch, err := d.Take(n)
	if err != nil {
		return nil, err
	}
	ch.Enable()
	return &SingleChannel{d: d, ch: ch}, nil
}

// Busy reports whether the channel still has an outstanding chain.
func (s *SingleChannel) Busy() bool { return s.ch.Busy() }

func (s *SingleChannel) ExecOne(p *Packet) error {
	if s.ch.Busy() {
		return ErrNoFreeChannel
	}
	p.ctl0.Set(packet.Ctl0DecrSemaphore)
	s.submit(p)
	return nil
}

func (s *SingleChannel) ExecSlice(ps []*Packet) error {
	if len(ps) == 0 {
		return errEmptyChain
	}
	if s.ch.Busy() {
		return ErrNoFreeChannel
	}
	chain(ps)
	s.submit(ps[0])
	return nil
}

func (s *SingleChannel) submit(head *Packet) {
	addr := head.bind(s.d.must().mem)
	s.d.debug("submit",
		slog.Int("ch", s.ch.n),
		slog.Uint64("cmdptr", uint64(addr)),
		slog.Uint64("tag", uint64(head.ctl0.Tag())),
	)
	s.ch.submit(addr)
}

// Release blocks until the channel drains, disables it and returns the
// channel capability and the peripheral handle. Blocking here is what keeps
// the hardware from racing a reclaimed chain.
func (s *SingleChannel) Release() *DCP {
	for s.ch.Busy() {
		runtime.Gosched()
	}
	s.ch.Disable()
	s.ch.Release()
	d := s.d
	s.d, s.ch = nil, nil
	return d
}
