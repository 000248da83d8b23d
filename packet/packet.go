// Package packet defines the work packet layout consumed by the DCP
// coprocessor and the raw bits that make it up.
//
// A work packet is 8 little-endian 32-bit words handed to the hardware by
// address. Everything here is part of the public API to allow finer control
// over packets and the use of DCP features not covered by the driver layer,
// but direct use is discouraged: a wrong bit here is silent hardware
// misbehavior, not an error return.
package packet

import "encoding/binary"

// Size is the size of an encoded ControlPacket in bytes.
const Size = 32

// ControlPacket is the descriptor read by the DCP at the start of an
// operation. Field order and offsets are the hardware contract.
//
// Source holds either the bus address of the input buffer or a 32-bit fill
// constant (when Ctl0ConstantFill is set). BufSize holds either a linear
// byte count or a packed blit width/height (see BlitSize). Neither case is
// tagged in the packet itself; the driver layer keeps the tagged form.
type ControlPacket struct {
	Next     uint32 // bus address of the next packet in a chain, 0 if none
	Control0 Control0
	Control1 Control1
	Source   uint32
	Dest     uint32 // 0 when the operation has no buffer output
	BufSize  uint32
	Payload  uint32 // key/IV material in, digests in or out
	Status   Status // written by hardware on completion
}

// Put encodes the packet into dst. Panics if dst is shorter than Size bytes.
func (p *ControlPacket) Put(dst []byte) {
	_ = dst[Size-1]
	binary.LittleEndian.PutUint32(dst[0:], p.Next)
	binary.LittleEndian.PutUint32(dst[4:], uint32(p.Control0))
	binary.LittleEndian.PutUint32(dst[8:], uint32(p.Control1))
	binary.LittleEndian.PutUint32(dst[12:], p.Source)
	binary.LittleEndian.PutUint32(dst[16:], p.Dest)
	binary.LittleEndian.PutUint32(dst[20:], p.BufSize)
	binary.LittleEndian.PutUint32(dst[24:], p.Payload)
	binary.LittleEndian.PutUint32(dst[28:], uint32(p.Status))
}

// DecodeControlPacket decodes a packet image. Panics if b is shorter than
// Size bytes.
func DecodeControlPacket(b []byte) (p ControlPacket) {
	_ = b[Size-1]
	p.Next = binary.LittleEndian.Uint32(b[0:])
	p.Control0 = Control0(binary.LittleEndian.Uint32(b[4:]))
	p.Control1 = Control1(binary.LittleEndian.Uint32(b[8:]))
	p.Source = binary.LittleEndian.Uint32(b[12:])
	p.Dest = binary.LittleEndian.Uint32(b[16:])
	p.BufSize = binary.LittleEndian.Uint32(b[20:])
	p.Payload = binary.LittleEndian.Uint32(b[24:])
	p.Status = Status(binary.LittleEndian.Uint32(b[28:]))
	return p
}

// Control0Flag is one of the operation/behavior bits in the low 24 bits of
// the control0 word. Modifier flags are only meaningful while their owning
// enable flag is set.
type Control0Flag uint32

const (
	Ctl0InterruptEnable Control0Flag = 1 << 0 // raise DCP IRQ on completion
	Ctl0DecrSemaphore   Control0Flag = 1 << 1 // decrement channel semaphore when done
	Ctl0Chain           Control0Flag = 1 << 2 // next field points at another packet
	Ctl0ChainContinuous Control0Flag = 1 << 3 // keep processing the chain without re-arming
	Ctl0EnableMemcopy   Control0Flag = 1 << 4
	Ctl0EnableCipher    Control0Flag = 1 << 5
	Ctl0EnableHash      Control0Flag = 1 << 6
	Ctl0EnableBlit      Control0Flag = 1 << 7
	Ctl0CipherEncrypt   Control0Flag = 1 << 8 // cleared means decrypt
	Ctl0CipherInit      Control0Flag = 1 << 9 // load key/IV state before ciphering
	Ctl0OTPKey          Control0Flag = 1 << 10
	Ctl0PayloadKey      Control0Flag = 1 << 11
	Ctl0HashInit        Control0Flag = 1 << 12
	Ctl0HashTerm        Control0Flag = 1 << 13
	Ctl0HashCheck       Control0Flag = 1 << 14 // compare digest against payload instead of writing it
	Ctl0HashOutput      Control0Flag = 1 << 15 // hash the output data instead of the input
	Ctl0ConstantFill    Control0Flag = 1 << 16 // source holds a fill word, not an address
	Ctl0TestSemaIRQ     Control0Flag = 1 << 17
	Ctl0KeyByteSwap     Control0Flag = 1 << 18
	Ctl0KeyWordSwap     Control0Flag = 1 << 19
	Ctl0InputByteSwap   Control0Flag = 1 << 20
	Ctl0InputWordSwap   Control0Flag = 1 << 21
	Ctl0OutputByteSwap  Control0Flag = 1 << 22
	Ctl0OutputWordSwap  Control0Flag = 1 << 23
)

// Control0 is the first control word: 24 flag bits plus the caller-chosen
// tag in the top byte. The hardware echoes the tag in the status word.
type Control0 uint32

func (c *Control0) Set(f Control0Flag)     { *c |= Control0(f) }
func (c Control0) Has(f Control0Flag) bool { return c&Control0(f) != 0 }

// Tag returns the correlation byte in bits 24..31.
func (c Control0) Tag() uint8 { return uint8(c >> 24) }

// WithTag returns c with the tag byte replaced.
func (c Control0) WithTag(tag uint8) Control0 {
	return c&0x00ff_ffff | Control0(tag)<<24
}

// Control1 carries the operation-specific configuration: cipher and hash
// selectors for crypto work, the framebuffer line width for blits.
type Control1 uint32

func (c Control1) WithCipherSelect(v uint8) Control1 {
	return c&^0x0000_000f | Control1(v&0x0f)
}

func (c Control1) WithCipherMode(v uint8) Control1 {
	return c&^0x0000_00f0 | Control1(v&0x0f)<<4
}

func (c Control1) WithKeySelect(v uint8) Control1 {
	return c&^0x0000_ff00 | Control1(v)<<8
}

func (c Control1) WithHashSelect(v uint8) Control1 {
	return c&^0x000f_0000 | Control1(v&0x0f)<<16
}

func (c Control1) WithCipherConfig(v uint8) Control1 {
	return c&^0xff00_0000 | Control1(v)<<24
}

// BlitControl1 returns the control1 word for a blit: the framebuffer line
// width in bytes in the low 16 bits.
func BlitControl1(width uint16) Control1 { return Control1(width) }

func (c Control1) CipherSelect() uint8 { return uint8(c & 0x0f) }
func (c Control1) CipherMode() uint8   { return uint8(c>>4) & 0x0f }
func (c Control1) KeySelect() uint8    { return uint8(c >> 8) }
func (c Control1) HashSelect() uint8   { return uint8(c>>16) & 0x0f }
func (c Control1) BlitWidth() uint16   { return uint16(c) }

// BlitSize packs a framebuffer width (bytes) and height (lines) into the
// bufsize word of a blit packet.
func BlitSize(width, height uint16) uint32 {
	return uint32(width) | uint32(height)<<16
}

// SplitBlitSize is the inverse of BlitSize.
func SplitBlitSize(bufsize uint32) (width, height uint16) {
	return uint16(bufsize), uint16(bufsize >> 16)
}
