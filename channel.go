package dcp

import "log/slog"

// Channel is one of the four DCP execution contexts. At most one live
// Channel exists per index: Take hands out the capability and Release
// returns it. Two handles aliasing one channel would race the semaphore
// and cmdptr registers, so a second Take fails until Release.
type Channel struct {
	d *DCP
	n int
}

// Take claims channel n. Returns ErrChannelTaken if a handle for n is
// already live.
func (d *DCP) Take(n int) (*Channel, error) {
	hw := d.must()
	if n < 0 || n >= NumChannels {
		return nil, ErrBadChannel
	}
	if hw.taken[n] {
		return nil, ErrChannelTaken
	}
	hw.taken[n] = true
	d.debug("channel taken", slog.Int("ch", n))
	return &Channel{d: d, n: n}, nil
}

// Release returns the channel capability. The channel must be disabled.
func (c *Channel) Release() {
	c.d.must().taken[c.n] = false
	c.d.debug("channel released", slog.Int("ch", c.n))
	c.d = nil
}

// Index returns the hardware channel number.
func (c *Channel) Index() int { return c.n }

// Enable sets the channel's enable bit and discards stale status.
func (c *Channel) Enable() {
	c.d.write(RegCHANNELCTRL+RegOffSet, 1<<uint(c.n))
	c.ClearStatus()
}

// Disable clears the channel's enable bit. Only valid once the channel is
// idle; disabling mid-chain abandons hardware state.
func (c *Channel) Disable() {
	c.ClearStatus()
	c.d.write(RegCHANNELCTRL+RegOffClr, 1<<uint(c.n))
}

// ClearStatus discards completion and error bits left by a previous chain.
func (c *Channel) ClearStatus() {
	c.d.write(RegChStat(c.n)+RegOffClr, 0xffff_ffff)
}

// WriteCmdPtr stores the bus address of the head packet. It does not start
// execution; the semaphore increment does.
func (c *Channel) WriteCmdPtr(addr uint32) {
	c.d.write(RegChCmdPtr(c.n), addr)
}

// IncrSemaphore arms n dispatches and starts the hardware on the chain at
// the command pointer. Status clear and cmdptr write must have completed
// before this; reordering dispatches against a stale pointer.
func (c *Channel) IncrSemaphore(n uint32) {
	c.d.trace("sema increment", slog.Int("ch", c.n), slog.Uint64("n", uint64(n)))
	c.d.write(RegChSema(c.n), n&0xff)
}

// Busy reports whether the channel has outstanding work: the hardware
// decrements the semaphore as packets flagged decrement-semaphore complete.
func (c *Channel) Busy() bool {
	return SemaValue(c.d.read(RegChSema(c.n))) != 0
}

// submit performs the arming sequence for the chain rooted at addr.
func (c *Channel) submit(addr uint32) {
	c.ClearStatus()
	c.WriteCmdPtr(addr)
	c.IncrSemaphore(1)
}
