package packet

import (
	"encoding/binary"
	"testing"
)

func TestControlPacketPut(t *testing.T) {
	p := ControlPacket{
		Next:     0x2000_0020,
		Control0: Control0(Ctl0EnableMemcopy | Ctl0DecrSemaphore).WithTag(0xab),
		Control1: Control1(0).WithHashSelect(2),
		Source:   0x2000_1000,
		Dest:     0x2000_2000,
		BufSize:  64,
		Payload:  0x2000_3000,
		Status:   0,
	}
	var buf [Size]byte
	p.Put(buf[:])

	words := []struct {
		off  int
		want uint32
	}{
		{0, 0x2000_0020},
		{4, 0xab00_0012},
		{8, 0x0002_0000},
		{12, 0x2000_1000},
		{16, 0x2000_2000},
		{20, 64},
		{24, 0x2000_3000},
		{28, 0},
	}
	for _, w := range words {
		got := binary.LittleEndian.Uint32(buf[w.off:])
		if got != w.want {
			t.Errorf("word at offset %d: got %#08x, want %#08x", w.off, got, w.want)
		}
	}

	back := DecodeControlPacket(buf[:])
	if back != p {
		t.Errorf("decode mismatch: got %+v, want %+v", back, p)
	}
}

func TestControl0FlagBits(t *testing.T) {
	bits := map[Control0Flag]uint{
		Ctl0InterruptEnable: 0,
		Ctl0DecrSemaphore:   1,
		Ctl0Chain:           2,
		Ctl0ChainContinuous: 3,
		Ctl0EnableMemcopy:   4,
		Ctl0EnableCipher:    5,
		Ctl0EnableHash:      6,
		Ctl0EnableBlit:      7,
		Ctl0CipherEncrypt:   8,
		Ctl0CipherInit:      9,
		Ctl0OTPKey:          10,
		Ctl0PayloadKey:      11,
		Ctl0HashInit:        12,
		Ctl0HashTerm:        13,
		Ctl0HashCheck:       14,
		Ctl0HashOutput:      15,
		Ctl0ConstantFill:    16,
		Ctl0TestSemaIRQ:     17,
		Ctl0KeyByteSwap:     18,
		Ctl0KeyWordSwap:     19,
		Ctl0InputByteSwap:   20,
		Ctl0InputWordSwap:   21,
		Ctl0OutputByteSwap:  22,
		Ctl0OutputWordSwap:  23,
	}
	for flag, pos := range bits {
		if uint32(flag) != 1<<pos {
			t.Errorf("flag %#06x: want bit %d", uint32(flag), pos)
		}
	}
}

func TestControl0Tag(t *testing.T) {
	var c Control0
	c.Set(Ctl0EnableHash)
	c = c.WithTag(0x5a)
	if c.Tag() != 0x5a {
		t.Errorf("tag: got %#02x", c.Tag())
	}
	if !c.Has(Ctl0EnableHash) {
		t.Error("tag write clobbered flags")
	}
	c = c.WithTag(0x01)
	if uint32(c) != 0x0100_0040 {
		t.Errorf("control0: got %#08x", uint32(c))
	}
}

func TestControl1Fields(t *testing.T) {
	c := Control1(0).
		WithCipherSelect(0).
		WithCipherMode(1).
		WithKeySelect(0xfe).
		WithHashSelect(2)
	if uint32(c) != 0x0002_fe10 {
		t.Errorf("control1: got %#08x", uint32(c))
	}
	if c.CipherMode() != 1 || c.KeySelect() != 0xfe || c.HashSelect() != 2 {
		t.Error("field readback mismatch")
	}
	if w := BlitControl1(320); w.BlitWidth() != 320 {
		t.Errorf("blit width: got %d", w.BlitWidth())
	}
}

func TestBlitSizePack(t *testing.T) {
	bs := BlitSize(320, 240)
	if bs != 240<<16|320 {
		t.Errorf("blitsize: got %#08x", bs)
	}
	w, h := SplitBlitSize(bs)
	if w != 320 || h != 240 {
		t.Errorf("split: got %dx%d", w, h)
	}
}

func TestStatusDecode(t *testing.T) {
	cases := []struct {
		status uint32
		class  ErrorClass
		ok     bool
	}{
		{0x0000_0001, 0, true},
		{0x0000_0003, ErrClassHashMismatch, false},
		{0x0000_0005, ErrClassSetup, false},
		{0x0000_0009, ErrClassPacket, false},
		{0x0000_0011, ErrClassSource, false},
		{0x0000_0021, ErrClassDest, false},
		{0x0000_0041, ErrClassOther, false},
	}
	for _, c := range cases {
		s := Status(c.status | 0x13<<16 | 0x7c<<24)
		if !s.Done() {
			t.Fatalf("status %#02x: done bit not seen", c.status)
		}
		tag, err := s.Result()
		if tag != 0x7c {
			t.Errorf("status %#02x: tag %#02x", c.status, tag)
		}
		if c.ok {
			if err != nil {
				t.Errorf("status %#02x: unexpected error %v", c.status, err)
			}
			continue
		}
		hwerr, isHW := err.(*HardwareError)
		if !isHW {
			t.Fatalf("status %#02x: error %T", c.status, err)
		}
		if hwerr.Class != c.class || hwerr.Code != 0x13 {
			t.Errorf("status %#02x: got class %v code %#02x", c.status, hwerr.Class, hwerr.Code)
		}
	}
	if Status(0).Done() {
		t.Error("zero status reads as done")
	}
}

func TestStatusForRoundTrip(t *testing.T) {
	for class := ErrClassHashMismatch; class <= ErrClassOther; class++ {
		s := StatusFor(class, false, 0x42, 9)
		if !s.Done() {
			t.Fatalf("class %v: not done", class)
		}
		_, err := s.Result()
		hwerr, isHW := err.(*HardwareError)
		if !isHW || hwerr.Class != class || hwerr.Code != 0x42 {
			t.Errorf("class %v: decoded %v", class, err)
		}
	}
	tag, err := StatusFor(0, true, 0, 33).Result()
	if err != nil || tag != 33 {
		t.Errorf("success status: tag %d err %v", tag, err)
	}
}
