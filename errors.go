package dcp

import (
	"errors"
	"strconv"
)

var (
	// ErrNotComplete is the non-terminal poll result: the operation is
	// submitted or waiting to be submitted and the caller should poll
	// again. It is never a failure.
	ErrNotComplete = errors.New("dcp: operation not complete")

	// ErrNoFreeChannel is returned when a submission finds no idle
	// channel. Recoverable: retry once outstanding work drains.
	ErrNoFreeChannel = errors.New("dcp: all channels busy")

	// ErrChannelTaken is returned by Take when a live handle for the
	// requested channel already exists.
	ErrChannelTaken = errors.New("dcp: channel already taken")

	// ErrBadChannel is returned by Take for an index outside [0,4).
	ErrBadChannel = errors.New("dcp: channel index out of range")

	// ErrBadKeySlot is returned by LoadKey for an index outside [0,4).
	ErrBadKeySlot = errors.New("dcp: key slot index out of range")

	errEmptyChain = errors.New("dcp: empty packet slice")
)

// SizeError reports a buffer that cannot hold what the operation requires.
// It is produced before submission and depends only on input lengths.
type SizeError struct {
	What string // which buffer, e.g. "hash payload"
	Need int
	Got  int
}

func (e *SizeError) Error() string {
	return "dcp: " + e.What + " too short: need " + strconv.Itoa(e.Need) +
		" bytes, got " + strconv.Itoa(e.Got)
}
