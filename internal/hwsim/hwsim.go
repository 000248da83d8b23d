// Package hwsim is a deterministic software model of the DCP used by the
// driver tests. It implements the dcp.Bus and dcp.BusMemory interfaces over
// plain Go memory, executes work packets the way the silicon does (chain
// following, semaphore accounting, context-switch requirements) and backs
// the fixed-function units with reference implementations: crypto/aes and
// crypto/sha* from the standard library and the parametric snksoft/crc for
// the non-reflected CRC-32 variant the DCP computes.
//
// Swap flags are carried in packet images but not modeled; data is treated
// as little-endian throughout.
package hwsim

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"hash"

	"github.com/snksoft/crc"
	"golang.org/x/exp/constraints"

	dcp "github.com/techmccat/imxrt-dcp"
	"github.com/techmccat/imxrt-dcp/packet"
)

// crcParams is the DCP's CRC-32: polynomial 0x04C11DB7, no reflection on
// input or output, initial value all-ones, no final xor.
var crcParams = &crc.Parameters{
	Width:      32,
	Polynomial: 0x04C11DB7,
	ReflectIn:  false,
	ReflectOut: false,
	Init:       0xFFFFFFFF,
	FinalXor:   0,
}

// align rounds val up to the nearest multiple of a.
func align[T constraints.Integer](val, a T) T {
	return (val + a - 1) &^ (a - 1)
}

const memBase = 0x2000_0000 // fake OCRAM; 0 stays an invalid address

type region struct {
	addr uint32
	buf  []byte
}

// Sim is one simulated DCP instance plus the memory the packets live in.
// All execution is synchronous and single-threaded: either immediately on
// the arming semaphore write (Auto) or when the test calls Run/StepChannel.
type Sim struct {
	// Auto executes armed work during the semaphore register write, which
	// makes driver busy-wait loops terminate without a second goroutine.
	Auto bool

	ctrl    uint32
	stat    uint32
	chctrl  uint32
	context uint32
	keySel  uint32

	cmdptr  [dcp.NumChannels]uint32
	pending [dcp.NumChannels]uint32
	chstat  [dcp.NumChannels]uint32

	hashctx [dcp.NumChannels]digester

	keyRAM [4][16]byte
	unique [16]byte
	otp    [16]byte

	next    uint32
	regions []region
	known   map[*byte]uint32

	failArmed bool
	failClass packet.ErrorClass
	failCode  uint8

	// CmdPtrWrites records every cmdptr register write in order, so tests
	// can assert that a chain was submitted through a single address.
	CmdPtrWrites []uint32
}

// New returns an idle simulator with manual stepping.
func New() *Sim {
	s := &Sim{next: memBase, known: make(map[*byte]uint32)}
	s.unique = [16]byte{0: 0x5a, 15: 0xa5}
	s.otp = [16]byte{0: 0x0f, 15: 0xf0}
	return s
}

// SetKeyRAM loads one of the four write-only key slots.
func (s *Sim) SetKeyRAM(slot int, key [16]byte) { s.keyRAM[slot] = key }

// SetUniqueKey sets the device-unique key fixture.
func (s *Sim) SetUniqueKey(key [16]byte) { s.unique = key }

// SetOTPKey sets the one-time-programmable key fixture.
func (s *Sim) SetOTPKey(key [16]byte) { s.otp = key }

// FailNext makes the next executed packet terminate with the given error
// class and opaque code instead of running.
func (s *Sim) FailNext(class packet.ErrorClass, code uint8) {
	s.failArmed, s.failClass, s.failCode = true, class, code
}

// Map pins b at a stable simulated bus address. The same backing array
// always maps to the same address, and the simulator reads and writes the
// slice itself, so hardware effects are visible to the owner immediately.
func (s *Sim) Map(b []byte) uint32 {
	if len(b) == 0 {
		return 0
	}
	if addr, ok := s.known[&b[0]]; ok {
		return addr
	}
	addr := s.next
	s.next = align(s.next+uint32(len(b)), 4)
	s.regions = append(s.regions, region{addr: addr, buf: b})
	s.known[&b[0]] = addr
	return addr
}

// mem resolves a mapped address range back to driver memory.
func (s *Sim) mem(addr uint32, n int) []byte {
	for _, r := range s.regions {
		if addr >= r.addr && addr+uint32(n) <= r.addr+uint32(len(r.buf)) {
			off := addr - r.addr
			return r.buf[off : off+uint32(n)]
		}
	}
	return nil
}

// ReadMem copies n bytes out of the simulated address space, for test
// assertions against raw packet images.
func (s *Sim) ReadMem(addr uint32, n int) []byte {
	b := s.mem(addr, n)
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (s *Sim) Read32(off uint32) uint32 {
	switch off {
	case dcp.RegCTRL:
		return s.ctrl
	case dcp.RegSTAT:
		return s.stat
	case dcp.RegCHANNELCTRL:
		return s.chctrl
	case dcp.RegCONTEXT:
		return s.context
	case dcp.RegCAPABILITY0:
		return 4<<8 | 4 // 4 key slots, 4 channels
	}
	for n := 0; n < dcp.NumChannels; n++ {
		switch off {
		case dcp.RegChCmdPtr(n):
			return s.cmdptr[n]
		case dcp.RegChSema(n):
			return s.pending[n] << 16
		case dcp.RegChStat(n):
			return s.chstat[n]
		}
	}
	return 0
}

func (s *Sim) Write32(off, v uint32) {
	switch off {
	case dcp.RegCTRL:
		s.ctrl = v
		return
	case dcp.RegCTRL + dcp.RegOffSet:
		s.ctrl |= v
		return
	case dcp.RegCTRL + dcp.RegOffClr:
		s.ctrl &^= v
		return
	case dcp.RegSTAT + dcp.RegOffSet:
		s.stat |= v
		return
	case dcp.RegSTAT + dcp.RegOffClr:
		s.stat &^= v
		return
	case dcp.RegCHANNELCTRL:
		s.chctrl = v
		return
	case dcp.RegCHANNELCTRL + dcp.RegOffSet:
		s.chctrl |= v
		return
	case dcp.RegCHANNELCTRL + dcp.RegOffClr:
		s.chctrl &^= v
		return
	case dcp.RegCONTEXT:
		s.context = v
		return
	case dcp.RegKEY:
		s.keySel = v
		return
	case dcp.RegKEYDATA:
		slot := s.keySel >> 4 & 3
		sub := s.keySel & 3
		binary.LittleEndian.PutUint32(s.keyRAM[slot][sub*4:], v)
		s.keySel = s.keySel&^3 | (sub+1)&3
		return
	}
	for n := 0; n < dcp.NumChannels; n++ {
		switch off {
		case dcp.RegChCmdPtr(n):
			s.cmdptr[n] = v
			s.CmdPtrWrites = append(s.CmdPtrWrites, v)
			return
		case dcp.RegChSema(n):
			s.pending[n] += v & 0xff
			if s.Auto && s.enabled(n) {
				s.runChannel(n)
			}
			return
		case dcp.RegChStat(n) + dcp.RegOffClr:
			s.chstat[n] &^= v
			return
		case dcp.RegChStat(n) + dcp.RegOffSet:
			s.chstat[n] |= v
			return
		}
	}
}

// Run executes until every armed channel drains or stops making progress.
func (s *Sim) Run() {
	for {
		progress := false
		for n := 0; n < dcp.NumChannels; n++ {
			if s.pending[n] != 0 && s.enabled(n) {
				before := s.pending[n]
				s.runChannel(n)
				progress = progress || s.pending[n] != before
			}
		}
		if !progress {
			return
		}
	}
}

// StepChannel executes one chain on channel n, if armed.
func (s *Sim) StepChannel(n int) {
	if s.pending[n] != 0 && s.enabled(n) {
		s.runChannel(n)
	}
}

func (s *Sim) enabled(n int) bool { return s.chctrl&(1<<uint(n)) != 0 }

func (s *Sim) busyChannels() int {
	c := 0
	for n := 0; n < dcp.NumChannels; n++ {
		if s.pending[n] != 0 {
			c++
		}
	}
	return c
}

// runChannel walks one chain starting at the channel's command pointer.
func (s *Sim) runChannel(n int) {
	addr := s.cmdptr[n]
	for addr != 0 {
		img := s.mem(addr, packet.Size)
		if img == nil {
			return // dangling cmdptr, hardware would fault
		}
		cp := packet.DecodeControlPacket(img)
		st := s.exec(n, &cp)
		binary.LittleEndian.PutUint32(img[28:], uint32(st))
		s.chstat[n] = uint32(st)
		if cp.Control0.Has(packet.Ctl0InterruptEnable) {
			s.stat |= 1 << uint(n)
		}
		if cp.Control0.Has(packet.Ctl0DecrSemaphore) && s.pending[n] > 0 {
			s.pending[n]--
		}
		if cp.Control0.Has(packet.Ctl0ChainContinuous) && cp.Next != 0 {
			addr = cp.Next
			continue
		}
		return
	}
}

// exec performs one packet's worth of work and returns its status word.
func (s *Sim) exec(n int, cp *packet.ControlPacket) packet.Status {
	tag := cp.Control0.Tag()
	if s.failArmed {
		s.failArmed = false
		return packet.StatusFor(s.failClass, false, s.failCode, tag)
	}
	// Any second live channel needs the context-switch buffer registered.
	if s.busyChannels() > 1 &&
		(s.ctrl&dcp.CtrlEnableContextSwitching == 0 || s.context == 0) {
		return packet.StatusFor(packet.ErrClassSetup, false, 0xc0, tag)
	}

	var (
		doCopy   = cp.Control0.Has(packet.Ctl0EnableMemcopy)
		doCipher = cp.Control0.Has(packet.Ctl0EnableCipher)
		doHash   = cp.Control0.Has(packet.Ctl0EnableHash)
		doBlit   = cp.Control0.Has(packet.Ctl0EnableBlit)
	)
	switch {
	case doBlit && (doCopy || doCipher || doHash),
		doCopy && doCipher,
		!doCopy && !doCipher && !doHash && !doBlit:
		return packet.StatusFor(packet.ErrClassPacket, false, 0x01, tag)
	}

	size := int(cp.BufSize)
	if doBlit {
		w, h := packet.SplitBlitSize(cp.BufSize)
		size = int(w) * int(h)
	}
	input, st := s.gatherInput(cp, size, tag)
	if st != 0 {
		return st
	}

	output := input
	if doCipher {
		var err packet.Status
		output, err = s.runCipher(cp, input, tag)
		if err != 0 {
			return err
		}
	}
	if doCopy || doCipher {
		dst := s.mem(cp.Dest, size)
		if dst == nil {
			return packet.StatusFor(packet.ErrClassDest, false, 0x02, tag)
		}
		copy(dst, output)
	}
	if doBlit {
		if st := s.runBlit(cp, input, tag); st != 0 {
			return st
		}
	}
	if doHash {
		data := input
		if cp.Control0.Has(packet.Ctl0HashOutput) {
			data = output
		}
		if st := s.runHash(n, cp, data, tag); st != 0 {
			return st
		}
	}
	return packet.StatusFor(0, true, 0, tag)
}

func (s *Sim) gatherInput(cp *packet.ControlPacket, size int, tag uint8) ([]byte, packet.Status) {
	if cp.Control0.Has(packet.Ctl0ConstantFill) {
		var word [4]byte
		binary.LittleEndian.PutUint32(word[:], cp.Source)
		in := make([]byte, size)
		for i := range in {
			in[i] = word[i%4]
		}
		return in, 0
	}
	src := s.mem(cp.Source, size)
	if src == nil {
		return nil, packet.StatusFor(packet.ErrClassSource, false, 0x02, tag)
	}
	in := make([]byte, size)
	copy(in, src)
	return in, 0
}

func (s *Sim) runBlit(cp *packet.ControlPacket, input []byte, tag uint8) packet.Status {
	w, h := packet.SplitBlitSize(cp.BufSize)
	stride := int(cp.Control1.BlitWidth())
	if stride < int(w) {
		stride = int(w)
	}
	fb := s.mem(cp.Dest, stride*int(h))
	if fb == nil {
		return packet.StatusFor(packet.ErrClassDest, false, 0x02, tag)
	}
	for line := 0; line < int(h); line++ {
		copy(fb[line*stride:line*stride+int(w)], input[line*int(w):])
	}
	return 0
}

func (s *Sim) runCipher(cp *packet.ControlPacket, input []byte, tag uint8) ([]byte, packet.Status) {
	if len(input)%aes.BlockSize != 0 {
		return nil, packet.StatusFor(packet.ErrClassSetup, false, 0x03, tag)
	}
	key, ivOff, st := s.cipherKey(cp, tag)
	if st != 0 {
		return nil, st
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, packet.StatusFor(packet.ErrClassSetup, false, 0x04, tag)
	}
	out := make([]byte, len(input))
	switch cp.Control1.CipherMode() {
	case 0: // ECB
		for i := 0; i < len(input); i += aes.BlockSize {
			if cp.Control0.Has(packet.Ctl0CipherEncrypt) {
				block.Encrypt(out[i:], input[i:])
			} else {
				block.Decrypt(out[i:], input[i:])
			}
		}
	case 1: // CBC
		iv := s.mem(cp.Payload+ivOff, aes.BlockSize)
		if iv == nil || !cp.Control0.Has(packet.Ctl0CipherInit) {
			return nil, packet.StatusFor(packet.ErrClassSetup, false, 0x05, tag)
		}
		if cp.Control0.Has(packet.Ctl0CipherEncrypt) {
			cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, input)
		} else {
			cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, input)
		}
	default:
		return nil, packet.StatusFor(packet.ErrClassSetup, false, 0x06, tag)
	}
	return out, 0
}

// cipherKey resolves the key source and returns the payload offset at which
// the IV starts (the key occupies the payload front only for payload keys).
func (s *Sim) cipherKey(cp *packet.ControlPacket, tag uint8) (key []byte, ivOff uint32, st packet.Status) {
	switch {
	case cp.Control0.Has(packet.Ctl0PayloadKey):
		k := s.mem(cp.Payload, 16)
		if k == nil {
			return nil, 0, packet.StatusFor(packet.ErrClassSetup, false, 0x07, tag)
		}
		return k, 16, 0
	case cp.Control0.Has(packet.Ctl0OTPKey):
		if cp.Control1.KeySelect() == 0xfe {
			return s.unique[:], 0, 0
		}
		return s.otp[:], 0, 0
	default:
		slot := cp.Control1.KeySelect()
		if slot >= 4 {
			return nil, 0, packet.StatusFor(packet.ErrClassSetup, false, 0x08, tag)
		}
		return s.keyRAM[slot][:], 0, 0
	}
}

// digester is the running hash context a channel keeps between chained
// packets.
type digester interface {
	update(b []byte)
	sum() []byte
}

type shaDigest struct{ h hash.Hash }

func (d shaDigest) update(b []byte) { d.h.Write(b) }
func (d shaDigest) sum() []byte     { return d.h.Sum(nil) }

type crcDigest struct{ h *crc.Hash }

func (d crcDigest) update(b []byte) { d.h.Update(b) }
func (d crcDigest) sum() []byte {
	var out [4]byte
	binary.LittleEndian.PutUint32(out[:], uint32(d.h.CRC()))
	return out[:]
}

func newDigester(sel uint8) digester {
	switch sel {
	case 0:
		return shaDigest{h: sha1.New()}
	case 1:
		return crcDigest{h: crc.NewHash(crcParams)}
	case 2:
		return shaDigest{h: sha256.New()}
	}
	return nil
}

func (s *Sim) runHash(n int, cp *packet.ControlPacket, data []byte, tag uint8) packet.Status {
	if cp.Control0.Has(packet.Ctl0HashInit) {
		s.hashctx[n] = newDigester(cp.Control1.HashSelect())
	}
	ctx := s.hashctx[n]
	if ctx == nil {
		return packet.StatusFor(packet.ErrClassSetup, false, 0x09, tag)
	}
	ctx.update(data)
	if !cp.Control0.Has(packet.Ctl0HashTerm) {
		return 0
	}
	s.hashctx[n] = nil
	digest := ctx.sum()
	off := s.digestOffset(cp)
	payl := s.mem(cp.Payload+off, len(digest))
	if payl == nil {
		return packet.StatusFor(packet.ErrClassPacket, false, 0x0a, tag)
	}
	if cp.Control0.Has(packet.Ctl0HashCheck) {
		for i := range digest {
			if payl[i] != digest[i] {
				return packet.StatusFor(packet.ErrClassHashMismatch, false, 0x0b, tag)
			}
		}
		return 0
	}
	copy(payl, digest)
	return 0
}

// digestOffset places the digest after whatever cipher material occupies
// the payload front in combined cipher+hash packets.
func (s *Sim) digestOffset(cp *packet.ControlPacket) uint32 {
	if !cp.Control0.Has(packet.Ctl0EnableCipher) {
		return 0
	}
	var off uint32
	if cp.Control0.Has(packet.Ctl0PayloadKey) {
		off += 16
	}
	if cp.Control1.CipherMode() == 1 && cp.Control0.Has(packet.Ctl0CipherInit) {
		off += 16
	}
	return off
}
