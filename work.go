package dcp

import (
	"encoding/binary"

	"github.com/techmccat/imxrt-dcp/packet"
)

// Packet is the driver-side form of a work packet: the tagged source and
// bufsize variants plus the borrowed buffers, lowered into the untagged
// 32-byte wire image when an executor submits it. From that moment until
// the status word reports done, the image and every referenced buffer are
// shared with the hardware and must not move or change.
type Packet struct {
	ctl0    packet.Control0
	ctl1    packet.Control1
	src     Source
	dst     []byte
	payload []byte
	bufsize uint32
	next    *Packet

	// img is the encoded packet the hardware reads, and the status word
	// at its tail is where the hardware reports back. It lives inside
	// Packet so the address stays stable for the packet's lifetime.
	img [packet.Size]byte
}

// Control0 returns the current control0 word. Useful for inspecting the
// flags an executor set before submission.
func (p *Packet) Control0() packet.Control0 { return p.ctl0 }

// Control1 returns the operation configuration word.
func (p *Packet) Control1() packet.Control1 { return p.ctl1 }

// Status rereads the status word the hardware writes into the packet
// image. Valid after submission; before that it is zero.
func (p *Packet) Status() packet.Status {
	return packet.Status(binary.LittleEndian.Uint32(p.img[28:]))
}

// bind pins the packet's buffers into the bus address space, lowers the
// tagged fields and encodes the image. Chained packets bind depth-first so
// every next pointer resolves. Returns the bus address of the image.
func (p *Packet) bind(mem BusMemory) uint32 {
	var cp packet.ControlPacket
	cp.Control0 = p.ctl0
	cp.Control1 = p.ctl1
	cp.BufSize = p.bufsize
	if p.src.isFill {
		cp.Source = p.src.fill
	} else if p.src.buf != nil {
		cp.Source = mem.Map(p.src.buf)
	}
	if p.dst != nil {
		cp.Dest = mem.Map(p.dst)
	}
	if p.payload != nil {
		cp.Payload = mem.Map(p.payload)
	}
	if p.next != nil {
		cp.Next = p.next.bind(mem)
	}
	cp.Put(p.img[:])
	return mem.Map(p.img[:])
}

// drop releases the buffer references once no hardware access is possible.
func (p *Packet) drop() {
	p.src = Source{}
	p.dst = nil
	p.payload = nil
	p.next = nil
}

// chain links ps into a hardware-followed sequence: the chain and
// chain-continuous flags on every packet but the last, next pointers head to
// tail, and the semaphore decrement on the last packet only, so the channel
// goes idle exactly when the whole chain has run.
func chain(ps []*Packet) {
	for i, p := range ps[:len(ps)-1] {
		p.ctl0.Set(packet.Ctl0Chain | packet.Ctl0ChainContinuous)
		p.next = ps[i+1]
	}
	ps[len(ps)-1].ctl0.Set(packet.Ctl0DecrSemaphore)
}
