// Package dcp is a driver for the i.MX RT Data Co-Processor, the
// fixed-function engine that performs memory copies, raster blits, AES-128
// ciphering and SHA-1/CRC-32/SHA-256 hashing on behalf of the CPU.
//
// The driver builds 32-byte work packets (see the packet subpackage), arms
// one of the four hardware channels with the packet address and polls the
// status word the hardware writes back. Completion is strictly poll based;
// nothing in this package blocks except the explicit release paths that
// must outlive in-flight hardware writes.
package dcp

import (
	"encoding/binary"
	"log/slog"
)

// Register file offsets from the DCP base address. Registers marked SCT also
// decode a set alias at +4 and a clear alias at +8.
const (
	RegCTRL        = 0x000 // SCT
	RegSTAT        = 0x010 // SCT
	RegCHANNELCTRL = 0x020 // SCT
	RegCAPABILITY0 = 0x030
	RegCAPABILITY1 = 0x040
	RegCONTEXT     = 0x050
	RegKEY         = 0x060
	RegKEYDATA     = 0x070

	regChBase   = 0x100
	regChStride = 0x40

	// Offsets of the set/clear aliases relative to an SCT register.
	RegOffSet = 0x4
	RegOffClr = 0x8
)

// Per-channel register offsets for channel n in [0,4).
func RegChCmdPtr(n int) uint32 { return regChBase + 0x00 + regChStride*uint32(n) }
func RegChSema(n int) uint32   { return regChBase + 0x10 + regChStride*uint32(n) }
func RegChStat(n int) uint32   { return regChBase + 0x20 + regChStride*uint32(n) } // SCT

// CTRL register bits.
const (
	CtrlSFTRST                 = 1 << 31
	CtrlCLKGATE                = 1 << 30
	CtrlGatherResidualWrites   = 1 << 23
	CtrlEnableContextCaching   = 1 << 22
	CtrlEnableContextSwitching = 1 << 21
)

// StatIRQMask covers the per-channel interrupt bits of the STAT register.
const StatIRQMask = 0xf

// SemaValue extracts the outstanding-work counter from a CHnSEMA read.
func SemaValue(sema uint32) uint8 { return uint8(sema >> 16) }

// NumChannels is the number of independent execution contexts the DCP has.
const NumChannels = 4

// NumKeySlots is the number of write-only key RAM slots.
const NumKeySlots = 4

// ContextBufferSize is the size of the scratch region the hardware uses to
// save and restore per-channel state when more than one channel is active.
const ContextBufferSize = 208

// Bus is the memory-mapped register access the driver needs. Offsets are
// relative to the DCP base address and always word sized. Implemented by
// the platform layer on hardware and by internal/hwsim in tests.
type Bus interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}

// BusMemory pins a driver buffer at a stable address in the bus address
// space the DCP sees and keeps it resolvable until the peripheral is torn
// down. On identity-mapped targets Map is a cast of the slice's data
// pointer; test implementations may relocate the bytes, in which case the
// same backing array must always map to the same address.
type BusMemory interface {
	Map(b []byte) uint32
}

// ClockGate controls the DCP clock in the CCM. External collaborator: the
// driver sequences enable/disable but never touches CCM registers itself.
type ClockGate interface {
	EnableClock()
	DisableClock()
}

type periph struct {
	bus    Bus
	mem    BusMemory
	logger *slog.Logger
	taken  [NumChannels]bool
}

// Unclocked is a DCP whose clock is gated. The zero stage of the ownership
// chain Unclocked -> Config -> DCP; each transition consumes its receiver
// and reusing a consumed handle panics. Keeping a single live stage per
// physical instance is the platform layer's take/release contract.
type Unclocked struct {
	hw *periph
}

// NewUnclocked wraps the register file and bus memory of a DCP instance.
func NewUnclocked(bus Bus, mem BusMemory) *Unclocked {
	return &Unclocked{hw: &periph{bus: bus, mem: mem}}
}

// Clock ungates the peripheral clock and moves to the configuring stage.
func (u *Unclocked) Clock(cg ClockGate) *Config {
	hw := u.take()
	cg.EnableClock()
	return &Config{hw: hw}
}

func (u *Unclocked) take() *periph {
	if u.hw == nil {
		panic("dcp: use of consumed Unclocked handle")
	}
	hw := u.hw
	u.hw = nil
	return hw
}

// Config is a clocked DCP that has not been reset and enabled yet.
type Config struct {
	hw *periph
}

// WithLogger attaches a structured logger used by the driver's trace and
// debug output. A nil logger disables logging.
func (c *Config) WithLogger(l *slog.Logger) *Config {
	c.must().logger = l
	return c
}

func (c *Config) must() *periph {
	if c.hw == nil {
		panic("dcp: use of consumed Config handle")
	}
	return c.hw
}

// Build resets the DCP into a known state and enables operation.
//
// Bring-up ungates the block first (SFTRST has no effect on a gated block),
// pulses SFTRST, then clears SFTRST and CLKGATE together so the block comes
// out of reset running, enables residual write gathering and context
// caching, and discards any pending interrupt status.
func (c *Config) Build() *DCP {
	hw := c.must()
	c.hw = nil
	d := &DCP{hw: hw}
	d.write(RegCTRL+RegOffClr, CtrlCLKGATE)
	d.write(RegCTRL+RegOffSet, CtrlSFTRST)
	d.write(RegCTRL+RegOffClr, CtrlSFTRST|CtrlCLKGATE)
	d.write(RegCTRL+RegOffSet, CtrlGatherResidualWrites|CtrlEnableContextCaching)
	d.write(RegSTAT+RegOffClr, StatIRQMask)
	d.info("dcp up")
	return d
}

// DCP is the active peripheral. It hands out channel capabilities and is
// consumed again by Unclock.
type DCP struct {
	hw *periph
}

func (d *DCP) must() *periph {
	if d.hw == nil {
		panic("dcp: use of consumed DCP handle")
	}
	return d.hw
}

func (d *DCP) read(off uint32) uint32 { return d.must().bus.Read32(off) }
func (d *DCP) write(off, v uint32)    { d.must().bus.Write32(off, v) }
func (d *DCP) mapBuf(b []byte) uint32 { return d.must().mem.Map(b) }

// LoadKey writes a 128-bit key into key RAM slot n through the KEY/KEYDATA
// registers. The slots are write-only; a loaded key is used by ciphering
// with KeyRAMSlot(n) as the key source. The KEY write selects the slot and
// resets the word index, which then auto-increments across the four data
// writes.
func (d *DCP) LoadKey(n int, key *[16]byte) error {
	if n < 0 || n >= NumKeySlots {
		return ErrBadKeySlot
	}
	d.write(RegKEY, uint32(n)<<4)
	for i := 0; i < 4; i++ {
		d.write(RegKEYDATA, binary.LittleEndian.Uint32(key[i*4:]))
	}
	d.debug("key loaded", slog.Int("slot", n))
	return nil
}

// Unclock resets the DCP, gates its clock and returns the unclocked handle.
// All channels must have been released first.
func (d *DCP) Unclock(cg ClockGate) *Unclocked {
	hw := d.must()
	for n, t := range hw.taken {
		if t {
			panic("dcp: Unclock with channel " + string(rune('0'+n)) + " still taken")
		}
	}
	d.write(RegSTAT+RegOffClr, StatIRQMask)
	d.write(RegCTRL+RegOffSet, CtrlSFTRST)
	d.info("dcp down")
	d.hw = nil
	cg.DisableClock()
	return &Unclocked{hw: hw}
}
