package dcp

import (
	"errors"
	"runtime"
)

type taskState uint8

const (
	taskIdle taskState = iota
	taskRunning
	taskDone
)

// Task tracks one in-flight hardware operation without ever blocking on it.
// States run Idle -> Running -> Done and never backwards.
//
// A Running task shares its packet image and buffers with the hardware.
// Release is mandatory before reusing any of them: finalizer timing gives no
// guarantee here, so the driver provides none.
type Task struct {
	ex    Executor
	pkt   *Packet
	state taskState
	tag   uint8
	err   error
}

// Poll advances the task state machine by one step and never blocks.
//
// Idle: tries to submit. ErrNoFreeChannel is swallowed as backpressure (the
// task stays Idle and the next poll retries); success moves to Running.
// Both report ErrNotComplete. Running: decodes the status word; a terminal
// outcome moves to Done and is returned. Done: re-returns the decoded
// result without touching hardware.
func (t *Task) Poll() (tag uint8, err error) {
	switch t.state {
	case taskIdle:
		err := t.ex.ExecOne(t.pkt)
		switch {
		case err == nil:
			t.state = taskRunning
		case errors.Is(err, ErrNoFreeChannel):
			// Backpressure. Retry on the next poll.
		default:
			t.state = taskDone
			t.err = err
			return 0, err
		}
		return 0, ErrNotComplete
	case taskRunning:
		st := t.pkt.Status()
		if !st.Done() {
			return 0, ErrNotComplete
		}
		t.tag, t.err = st.Result()
		t.state = taskDone
		return t.tag, t.err
	default:
		return t.tag, t.err
	}
}

// Wait polls until the task reaches a terminal outcome, yielding the
// scheduler between polls.
func (t *Task) Wait() (tag uint8, err error) {
	for {
		tag, err = t.Poll()
		if !errors.Is(err, ErrNotComplete) {
			return tag, err
		}
		runtime.Gosched()
	}
}

// Done reports whether the task has reached its terminal state.
func (t *Task) Done() bool { return t.state == taskDone }

// Release drops the task's buffer references so they may be reused. If the
// operation is still running it busy-waits for completion first; releasing
// early would hand the hardware dangling memory. An Idle task is released
// without ever being submitted.
func (t *Task) Release() {
	for t.state == taskRunning {
		if _, err := t.Poll(); errors.Is(err, ErrNotComplete) {
			runtime.Gosched()
		}
	}
	t.state = taskDone
	t.pkt.drop()
	t.ex = nil
}
