package dcp

import "github.com/techmccat/imxrt-dcp/packet"

// SwapConfig selects the endian transform a DCP FIFO applies to data moving
// through it. The input, output and key FIFOs are configured independently.
type SwapConfig uint8

const (
	// SwapKeep passes data through untouched (little-endian data).
	SwapKeep SwapConfig = iota
	// SwapWord swaps 4-byte words.
	SwapWord
	// SwapByte swaps bytes within each word.
	SwapByte
	// SwapWordByte swaps both (big-endian data).
	SwapWordByte
)

// flags maps the swap mode onto its word/byte flag pair.
func (s SwapConfig) flags(word, byteswap packet.Control0Flag) (f packet.Control0Flag) {
	switch s {
	case SwapWord:
		f = word
	case SwapByte:
		f = byteswap
	case SwapWordByte:
		f = word | byteswap
	}
	return f
}

// HashAlgo selects the digest function of a hash-capable operation.
type HashAlgo struct {
	sel  uint8
	size int
	name string
}

var (
	SHA1   = HashAlgo{sel: 0, size: 20, name: "sha1"}
	CRC32  = HashAlgo{sel: 1, size: 4, name: "crc32"}
	SHA256 = HashAlgo{sel: 2, size: 32, name: "sha256"}
)

// DigestSize returns the number of payload bytes the algorithm needs for
// its digest.
func (h HashAlgo) DigestSize() int { return h.size }

// Select returns the hash-select code written into control1.
func (h HashAlgo) Select() uint8 { return h.sel }

func (h HashAlgo) String() string { return h.name }

// CipherAlgo selects the block cipher and mode of a crypto-capable
// operation.
type CipherAlgo struct {
	sel, mode uint8
	payload   int
	name      string
}

var (
	// AES128ECB needs a 16-byte key in the payload.
	AES128ECB = CipherAlgo{sel: 0, mode: 0, payload: 16, name: "aes128-ecb"}
	// AES128CBC needs a 16-byte key followed by a 16-byte IV.
	AES128CBC = CipherAlgo{sel: 0, mode: 1, payload: 32, name: "aes128-cbc"}
)

// PayloadSize returns the key/IV bytes the cipher reads from the payload
// when the key source is the payload.
func (c CipherAlgo) PayloadSize() int { return c.payload }

func (c CipherAlgo) String() string { return c.name }

// KeySource selects where the cipher key comes from.
type KeySource struct {
	code uint8
	flag packet.Control0Flag
}

// PayloadKey reads the key from the packet payload buffer.
func PayloadKey() KeySource {
	return KeySource{code: 0x00, flag: packet.Ctl0PayloadKey}
}

// KeyRAMSlot uses one of the write-only key RAM slots loaded through the
// KEY/KEYDATA registers.
func KeyRAMSlot(n uint8) KeySource { return KeySource{code: n} }

// UniqueKey uses the device-unique hardware key.
func UniqueKey() KeySource {
	return KeySource{code: 0xfe, flag: packet.Ctl0OTPKey}
}

// OTPKey uses the one-time-programmable key.
func OTPKey() KeySource {
	return KeySource{code: 0xff, flag: packet.Ctl0OTPKey}
}

// Source is the input of a copy or blit operation: either a borrowed buffer
// or a 32-bit constant the hardware replicates over the destination.
type Source struct {
	buf    []byte
	fill   uint32
	isFill bool
}

// BufferSource borrows b as operation input. b must stay put and unmodified
// until the operation completes.
func BufferSource(b []byte) Source { return Source{buf: b} }

// FillSource fills the destination with the 32-bit constant v.
func FillSource(v uint32) Source { return Source{fill: v, isFill: true} }

// Framebuffer is the destination of a blit: a buffer carved into lines of
// Width bytes.
type Framebuffer struct {
	Buf   []byte
	Width uint16
}

// Height returns the number of whole lines in the buffer.
func (f Framebuffer) Height() uint16 {
	return uint16(len(f.Buf) / int(f.Width))
}
