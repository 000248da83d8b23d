package packet

import "strconv"

// Status is the last word of a work packet, written by the hardware when the
// operation terminates. Bit 0 is the done bit; at most one of the error bits
// accompanies it. Bits 16..23 carry the opaque hardware error code and bits
// 24..31 echo the packet tag.
type Status uint32

const (
	statusDone         Status = 1 << 0
	statusHashMismatch Status = 1 << 1
	statusSetupError   Status = 1 << 2
	statusPacketError  Status = 1 << 3
	statusSourceError  Status = 1 << 4
	statusDestError    Status = 1 << 5

	statusErrMask Status = 0xfe
)

// Done reports whether the hardware has terminated the operation, with or
// without error.
func (s Status) Done() bool { return s&statusDone != 0 }

// Code returns the raw 8-bit hardware error code. Its meaning beyond the
// error class is undocumented; treat it as diagnostic data.
func (s Status) Code() uint8 { return uint8(s >> 16) }

// Tag returns the tag echoed from control0.
func (s Status) Tag() uint8 { return uint8(s >> 24) }

// Result decodes a terminal status into the echoed tag or a hardware error.
// Calling Result on a status whose done bit is clear returns the zero tag
// and nil; callers must check Done first.
func (s Status) Result() (tag uint8, err error) {
	switch s & statusErrMask {
	case 0:
		return s.Tag(), nil
	case statusHashMismatch:
		err = &HardwareError{Class: ErrClassHashMismatch, Code: s.Code()}
	case statusSetupError:
		err = &HardwareError{Class: ErrClassSetup, Code: s.Code()}
	case statusPacketError:
		err = &HardwareError{Class: ErrClassPacket, Code: s.Code()}
	case statusSourceError:
		err = &HardwareError{Class: ErrClassSource, Code: s.Code()}
	case statusDestError:
		err = &HardwareError{Class: ErrClassDest, Code: s.Code()}
	default:
		err = &HardwareError{Class: ErrClassOther, Code: s.Code()}
	}
	return s.Tag(), err
}

// ErrorClass identifies which of the mutually exclusive hardware error bits
// was set in a terminal status.
type ErrorClass uint8

const (
	ErrClassHashMismatch ErrorClass = iota
	ErrClassSetup
	ErrClassPacket
	ErrClassSource
	ErrClassDest
	ErrClassOther
)

func (c ErrorClass) String() string {
	switch c {
	case ErrClassHashMismatch:
		return "hash mismatch"
	case ErrClassSetup:
		return "setup error"
	case ErrClassPacket:
		return "packet error"
	case ErrClassSource:
		return "source error"
	case ErrClassDest:
		return "dest error"
	default:
		return "other error"
	}
}

// StatusFor builds the status word the hardware writes for a terminal
// outcome: done bit, one optional error class bit, code and echoed tag.
// The driver never writes status; this is for hardware models and tests.
func StatusFor(class ErrorClass, ok bool, code, tag uint8) Status {
	s := statusDone | Status(code)<<16 | Status(tag)<<24
	if ok {
		return s
	}
	switch class {
	case ErrClassHashMismatch:
		s |= statusHashMismatch
	case ErrClassSetup:
		s |= statusSetupError
	case ErrClassPacket:
		s |= statusPacketError
	case ErrClassSource:
		s |= statusSourceError
	case ErrClassDest:
		s |= statusDestError
	default:
		s |= statusHashMismatch | statusSetupError // unrecognized combination
	}
	return s
}

// HardwareError is a failure reported by the DCP through the status word of
// a work packet.
type HardwareError struct {
	Class ErrorClass
	Code  uint8
}

func (e *HardwareError) Error() string {
	return "dcp: " + e.Class.String() + " (code 0x" + strconv.FormatUint(uint64(e.Code), 16) + ")"
}
