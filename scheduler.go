package dcp

import (
	"log/slog"
	"runtime"

	"github.com/techmccat/imxrt-dcp/packet"
)

// Scheduler is the multi-channel executor: it owns all four channels plus
// the context-switch buffer the hardware multiplexes per-channel working
// state through whenever more than one channel is live.
type Scheduler struct {
	d     *DCP
	chans [NumChannels]*Channel

	// ctx is registered with the hardware for the scheduler's lifetime
	// and must therefore live inside the (heap-pinned) Scheduler.
	ctx [ContextBufferSize]byte
}

// NewScheduler takes all four channels, enables them, registers the
// context-switch buffer and turns context switching on.
func NewScheduler(d *DCP) (*Scheduler, error) {
	s := &Scheduler{d: d}
	for n := 0; n < NumChannels; n++ {
		ch, err := d.Take(n)
		if err != nil {
			for _, taken := range s.chans[:n] {
				taken.Release()
			}
			return nil, err
		}
		s.chans[n] = ch
	}
	// The context buffer must be registered before a second channel can
	// be armed, so it happens here rather than lazily at submission.
	d.write(RegCONTEXT, d.mapBuf(s.ctx[:]))
	d.write(RegCTRL+RegOffSet, CtrlEnableContextSwitching)
	for _, ch := range s.chans {
		ch.Enable()
	}
	d.info("scheduler up")
	return s, nil
}

// pick returns a free channel, probing in descending index order. The
// descending order matches silicon revisions that serve channel 3 first;
// revisions differ and no priority is implied, but a fixed order keeps
// channel selection deterministic.
func (s *Scheduler) pick() *Channel {
	for n := NumChannels - 1; n >= 0; n-- {
		if !s.chans[n].Busy() {
			return s.chans[n]
		}
	}
	return nil
}

// Busy reports whether any channel has outstanding work.
func (s *Scheduler) Busy() bool {
	for _, ch := range s.chans {
		if ch.Busy() {
			return true
		}
	}
	return false
}

func (s *Scheduler) ExecOne(p *Packet) error {
	ch := s.pick()
	if ch == nil {
		return ErrNoFreeChannel
	}
	p.ctl0.Set(packet.Ctl0DecrSemaphore)
	s.submit(ch, p)
	return nil
}

func (s *Scheduler) ExecSlice(ps []*Packet) error {
	if len(ps) == 0 {
		return errEmptyChain
	}
	ch := s.pick()
	if ch == nil {
		return ErrNoFreeChannel
	}
	chain(ps)
	s.submit(ch, ps[0])
	return nil
}

func (s *Scheduler) submit(ch *Channel, head *Packet) {
	addr := head.bind(s.d.must().mem)
	s.d.debug("submit",
		slog.Int("ch", ch.n),
		slog.Uint64("cmdptr", uint64(addr)),
		slog.Uint64("tag", uint64(head.ctl0.Tag())),
	)
	ch.submit(addr)
}

// Release blocks until every channel drains, turns context switching off,
// disables the channels and returns the peripheral handle.
func (s *Scheduler) Release() *DCP {
	for s.Busy() {
		runtime.Gosched()
	}
	s.d.write(RegCTRL+RegOffClr, CtrlEnableContextSwitching)
	for _, ch := range s.chans {
		ch.Disable()
		ch.Release()
	}
	d := s.d
	s.d = nil
	s.chans = [NumChannels]*Channel{}
	d.info("scheduler down")
	return d
}
