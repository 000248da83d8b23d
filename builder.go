package dcp

import "github.com/techmccat/imxrt-dcp/packet"

// op is the builder stage shared by every operation kind. Concrete builder
// types embed it and add only the methods their capability set allows, so
// e.g. HashTerm is not reachable from a plain copy.
type op struct {
	p Packet
}

func (o *op) setFlag(f packet.Control0Flag) { o.p.ctl0.Set(f) }

// SetTag sets the correlation byte echoed back in the status word.
func (o *op) SetTag(tag uint8) { o.p.ctl0 = o.p.ctl0.WithTag(tag) }

// SetInputSwap configures the endian transform on the input FIFO.
func (o *op) SetInputSwap(s SwapConfig) {
	o.setFlag(s.flags(packet.Ctl0InputWordSwap, packet.Ctl0InputByteSwap))
}

// SetOutputSwap configures the endian transform on the output FIFO.
func (o *op) SetOutputSwap(s SwapConfig) {
	o.setFlag(s.flags(packet.Ctl0OutputWordSwap, packet.Ctl0OutputByteSwap))
}

// EnableInterrupt asks the hardware to raise the DCP interrupt on
// completion. The driver itself never unmasks it; polling still works.
func (o *op) EnableInterrupt() { o.setFlag(packet.Ctl0InterruptEnable) }

// Packet returns the underlying work packet for direct use with an
// executor's ExecOne/ExecSlice. The builder must not be reused after the
// packet has been submitted.
func (o *op) Packet() *Packet { return &o.p }

// Freeze binds the packet to an executor and returns the pollable task.
// The builder must not be touched afterwards.
func (o *op) Freeze(ex Executor) *Task {
	return &Task{ex: ex, pkt: &o.p}
}

// MemcopyBuilder configures a plain memory copy or constant fill.
type MemcopyBuilder struct{ op }

// NewMemcopy copies len(dst) bytes from src into dst, or fills dst with a
// constant. A buffer source shorter than dst is rejected up front: the
// hardware would read past its end.
func NewMemcopy(src Source, dst []byte) (*MemcopyBuilder, error) {
	b := &MemcopyBuilder{}
	b.p.ctl0.Set(packet.Ctl0EnableMemcopy)
	if src.isFill {
		b.p.ctl0.Set(packet.Ctl0ConstantFill)
	} else if len(src.buf) < len(dst) {
		return nil, &SizeError{What: "copy source", Need: len(dst), Got: len(src.buf)}
	}
	b.p.src = src
	b.p.dst = dst
	b.p.bufsize = uint32(len(dst))
	return b, nil
}

// BlitBuilder configures a raster blit into a framebuffer.
type BlitBuilder struct{ op }

// NewBlit copies Height runs of Width bytes into the framebuffer. The
// framebuffer length must be a whole number of lines.
func NewBlit(src Source, fb Framebuffer) (*BlitBuilder, error) {
	if fb.Width == 0 {
		return nil, &SizeError{What: "blit line width", Need: 1, Got: 0}
	}
	if len(fb.Buf)%int(fb.Width) != 0 {
		need := (len(fb.Buf)/int(fb.Width) + 1) * int(fb.Width)
		return nil, &SizeError{What: "blit framebuffer", Need: need, Got: len(fb.Buf)}
	}
	b := &BlitBuilder{}
	b.p.ctl0.Set(packet.Ctl0EnableBlit)
	if src.isFill {
		b.p.ctl0.Set(packet.Ctl0ConstantFill)
	} else if len(src.buf) < len(fb.Buf) {
		return nil, &SizeError{What: "blit source", Need: len(fb.Buf), Got: len(src.buf)}
	}
	b.p.ctl1 = packet.BlitControl1(fb.Width)
	b.p.src = src
	b.p.dst = fb.Buf
	b.p.bufsize = packet.BlitSize(fb.Width, fb.Height())
	return b, nil
}

// HashBuilder configures a digest-only operation.
type HashBuilder struct{ op }

// NewHash hashes src, reading or writing the digest in digest per the
// hash-term/hash-check flags. digest must hold the algorithm's full digest.
func NewHash(algo HashAlgo, src, digest []byte) (*HashBuilder, error) {
	if len(digest) < algo.size {
		return nil, &SizeError{What: algo.name + " payload", Need: algo.size, Got: len(digest)}
	}
	b := &HashBuilder{}
	b.p.ctl0.Set(packet.Ctl0EnableHash)
	b.p.ctl1 = b.p.ctl1.WithHashSelect(algo.sel)
	b.p.src = BufferSource(src)
	b.p.bufsize = uint32(len(src))
	b.p.payload = digest
	return b, nil
}

func (b *HashBuilder) HashInit()   { b.setFlag(packet.Ctl0HashInit) }
func (b *HashBuilder) HashTerm()   { b.setFlag(packet.Ctl0HashTerm) }
func (b *HashBuilder) HashCheck()  { b.setFlag(packet.Ctl0HashCheck) }
func (b *HashBuilder) HashOutput() { b.setFlag(packet.Ctl0HashOutput) }

// CipherBuilder configures an AES operation. The default key source is the
// payload buffer and the default direction is decrypt.
type CipherBuilder struct{ op }

// NewCipher ciphers src into dst. Pass the same slice for both to run in
// place. payload must hold the algorithm's key (and IV for CBC) when the
// key source is the payload.
func NewCipher(algo CipherAlgo, src, dst, payload []byte) (*CipherBuilder, error) {
	if len(payload) < algo.payload {
		return nil, &SizeError{What: algo.name + " payload", Need: algo.payload, Got: len(payload)}
	}
	if len(src) != len(dst) {
		return nil, &SizeError{What: "cipher dest", Need: len(src), Got: len(dst)}
	}
	b := &CipherBuilder{}
	b.p.ctl0.Set(packet.Ctl0EnableCipher | packet.Ctl0PayloadKey)
	b.p.ctl1 = b.p.ctl1.WithCipherSelect(algo.sel).WithCipherMode(algo.mode)
	b.p.src = BufferSource(src)
	b.p.dst = dst
	b.p.bufsize = uint32(len(src))
	b.p.payload = payload
	return b, nil
}

func (b *CipherBuilder) Encrypt()                { b.setFlag(packet.Ctl0CipherEncrypt) }
func (b *CipherBuilder) CipherInit()             { b.setFlag(packet.Ctl0CipherInit) }
func (b *CipherBuilder) SetKey(k KeySource)      { b.op.setKey(k) }
func (b *CipherBuilder) SetKeySwap(s SwapConfig) { b.op.setKeySwap(s) }

// MemcopyHashBuilder copies and hashes the data in one pass.
type MemcopyHashBuilder struct{ op }

// NewMemcopyHash copies src into dst while running it through the hash
// unit, leaving the digest handling to the hash-term/hash-check flags.
func NewMemcopyHash(algo HashAlgo, src Source, dst, digest []byte) (*MemcopyHashBuilder, error) {
	if len(digest) < algo.size {
		return nil, &SizeError{What: algo.name + " payload", Need: algo.size, Got: len(digest)}
	}
	b := &MemcopyHashBuilder{}
	b.p.ctl0.Set(packet.Ctl0EnableMemcopy | packet.Ctl0EnableHash)
	if src.isFill {
		b.p.ctl0.Set(packet.Ctl0ConstantFill)
	} else if len(src.buf) < len(dst) {
		return nil, &SizeError{What: "copy source", Need: len(dst), Got: len(src.buf)}
	}
	b.p.ctl1 = b.p.ctl1.WithHashSelect(algo.sel)
	b.p.src = src
	b.p.dst = dst
	b.p.bufsize = uint32(len(dst))
	b.p.payload = digest
	return b, nil
}

func (b *MemcopyHashBuilder) HashInit()   { b.setFlag(packet.Ctl0HashInit) }
func (b *MemcopyHashBuilder) HashTerm()   { b.setFlag(packet.Ctl0HashTerm) }
func (b *MemcopyHashBuilder) HashCheck()  { b.setFlag(packet.Ctl0HashCheck) }
func (b *MemcopyHashBuilder) HashOutput() { b.setFlag(packet.Ctl0HashOutput) }

// CipherHashBuilder ciphers and hashes in one pass. The payload carries the
// cipher key/IV first and the digest after it.
type CipherHashBuilder struct{ op }

// NewCipherHash ciphers src into dst and hashes the stream. payload needs
// the cipher material followed by room for the digest.
func NewCipherHash(ca CipherAlgo, ha HashAlgo, src, dst, payload []byte) (*CipherHashBuilder, error) {
	need := ca.payload + ha.size
	if len(payload) < need {
		return nil, &SizeError{What: ca.name + "+" + ha.name + " payload", Need: need, Got: len(payload)}
	}
	if len(src) != len(dst) {
		return nil, &SizeError{What: "cipher dest", Need: len(src), Got: len(dst)}
	}
	b := &CipherHashBuilder{}
	b.p.ctl0.Set(packet.Ctl0EnableCipher | packet.Ctl0EnableHash | packet.Ctl0PayloadKey)
	b.p.ctl1 = b.p.ctl1.WithCipherSelect(ca.sel).WithCipherMode(ca.mode).WithHashSelect(ha.sel)
	b.p.src = BufferSource(src)
	b.p.dst = dst
	b.p.bufsize = uint32(len(src))
	b.p.payload = payload
	return b, nil
}

func (b *CipherHashBuilder) HashInit()               { b.setFlag(packet.Ctl0HashInit) }
func (b *CipherHashBuilder) HashTerm()               { b.setFlag(packet.Ctl0HashTerm) }
func (b *CipherHashBuilder) HashCheck()              { b.setFlag(packet.Ctl0HashCheck) }
func (b *CipherHashBuilder) HashOutput()             { b.setFlag(packet.Ctl0HashOutput) }
func (b *CipherHashBuilder) Encrypt()                { b.setFlag(packet.Ctl0CipherEncrypt) }
func (b *CipherHashBuilder) CipherInit()             { b.setFlag(packet.Ctl0CipherInit) }
func (b *CipherHashBuilder) SetKey(k KeySource)      { b.op.setKey(k) }
func (b *CipherHashBuilder) SetKeySwap(s SwapConfig) { b.op.setKeySwap(s) }

// setKey replaces the key source: the select byte in control1 plus the
// matching source flag, clearing whichever one a previous call set.
func (o *op) setKey(k KeySource) {
	o.p.ctl0 &^= packet.Control0(packet.Ctl0PayloadKey | packet.Ctl0OTPKey)
	o.p.ctl0.Set(k.flag)
	o.p.ctl1 = o.p.ctl1.WithKeySelect(k.code)
}

func (o *op) setKeySwap(s SwapConfig) {
	o.setFlag(s.flags(packet.Ctl0KeyWordSwap, packet.Ctl0KeyByteSwap))
}
