package dcp_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dcp "github.com/techmccat/imxrt-dcp"
	"github.com/techmccat/imxrt-dcp/packet"
)

func TestChannelTakeOnce(t *testing.T) {
	d, _, _ := newDevice(false)
	ex, err := dcp.NewSingleChannel(d, 1)
	require.NoError(t, err)

	_, err = dcp.NewSingleChannel(d, 1)
	assert.ErrorIs(t, err, dcp.ErrChannelTaken)
	_, err = d.Take(1)
	assert.ErrorIs(t, err, dcp.ErrChannelTaken)
	_, err = d.Take(4)
	assert.ErrorIs(t, err, dcp.ErrBadChannel)

	ex.Release()
	ex2, err := dcp.NewSingleChannel(d, 1)
	require.NoError(t, err, "released channel must be takeable again")
	ex2.Release()
}

func TestSingleChannelBusy(t *testing.T) {
	d, sim, _ := newDevice(false)
	ex, err := dcp.NewSingleChannel(d, 0)
	require.NoError(t, err)

	first, err := dcp.NewMemcopy(dcp.BufferSource(seq(16)), make([]byte, 16))
	require.NoError(t, err)
	require.NoError(t, ex.ExecOne(first.Packet()))
	require.True(t, ex.Busy())

	cmdptr := sim.Read32(dcp.RegChCmdPtr(0))
	sema := sim.Read32(dcp.RegChSema(0))
	writes := len(sim.CmdPtrWrites)

	second, err := dcp.NewMemcopy(dcp.BufferSource(seq(16)), make([]byte, 16))
	require.NoError(t, err)
	err = ex.ExecOne(second.Packet())
	assert.ErrorIs(t, err, dcp.ErrNoFreeChannel)

	// A refused submission must leave the channel registers alone.
	assert.Equal(t, cmdptr, sim.Read32(dcp.RegChCmdPtr(0)))
	assert.Equal(t, sema, sim.Read32(dcp.RegChSema(0)))
	assert.Equal(t, writes, len(sim.CmdPtrWrites))

	sim.Run()
	assert.False(t, ex.Busy())
	assert.NoError(t, ex.ExecOne(second.Packet()))
	sim.Run()
	ex.Release()
}

func TestSchedulerSelectionDeterministic(t *testing.T) {
	d, sim, _ := newDevice(false)
	sched, err := dcp.NewScheduler(d)
	require.NoError(t, err)

	for round := 0; round < 3; round++ {
		b, err := dcp.NewMemcopy(dcp.BufferSource(seq(16)), make([]byte, 16))
		require.NoError(t, err)
		require.NoError(t, sched.ExecOne(b.Packet()))
		// Highest index first, every time.
		assert.NotZero(t, sim.Read32(dcp.RegChSema(3))>>16, "round %d", round)
		for n := 0; n < 3; n++ {
			assert.Zero(t, sim.Read32(dcp.RegChSema(n))>>16, "round %d ch%d", round, n)
		}
		sim.Run()
	}
	sched.Release()
}

func TestSchedulerExhaustion(t *testing.T) {
	d, sim, _ := newDevice(false)
	sched, err := dcp.NewScheduler(d)
	require.NoError(t, err)

	packets := make([]*dcp.Packet, 0, dcp.NumChannels)
	for i := 0; i < dcp.NumChannels; i++ {
		b, err := dcp.NewMemcopy(dcp.BufferSource(seq(16)), make([]byte, 16))
		require.NoError(t, err)
		b.SetTag(uint8(i))
		require.NoError(t, sched.ExecOne(b.Packet()), "channel free, submission %d must succeed", i)
		packets = append(packets, b.Packet())
	}
	require.True(t, sched.Busy())

	b, err := dcp.NewMemcopy(dcp.BufferSource(seq(16)), make([]byte, 16))
	require.NoError(t, err)
	assert.ErrorIs(t, sched.ExecOne(b.Packet()), dcp.ErrNoFreeChannel,
		"exhaustion reported exactly when all four channels are busy")

	sim.Run()
	assert.False(t, sched.Busy())
	for i, p := range packets {
		st := p.Status()
		require.True(t, st.Done(), "packet %d", i)
		tag, err := st.Result()
		assert.NoError(t, err)
		assert.EqualValues(t, i, tag)
	}

	assert.NoError(t, sched.ExecOne(b.Packet()), "drained scheduler accepts again")
	sim.Run()
	sched.Release()
}

func TestExecSliceChaining(t *testing.T) {
	d, sim, _ := newDevice(false)
	ex, err := dcp.NewSingleChannel(d, 2)
	require.NoError(t, err)

	srcs := [][]byte{seq(16), seq(32), seq(8)}
	dsts := [][]byte{make([]byte, 16), make([]byte, 32), make([]byte, 8)}
	ps := make([]*dcp.Packet, 3)
	for i := range ps {
		b, err := dcp.NewMemcopy(dcp.BufferSource(srcs[i]), dsts[i])
		require.NoError(t, err)
		b.SetTag(uint8(10 + i))
		ps[i] = b.Packet()
	}

	writes := len(sim.CmdPtrWrites)
	require.NoError(t, ex.ExecSlice(ps))
	require.Equal(t, writes+1, len(sim.CmdPtrWrites), "only the head address is submitted")

	// Walk the chain the way the hardware does.
	addrA := sim.CmdPtrWrites[len(sim.CmdPtrWrites)-1]
	cpA := packet.DecodeControlPacket(sim.ReadMem(addrA, packet.Size))
	require.NotZero(t, cpA.Next)
	cpB := packet.DecodeControlPacket(sim.ReadMem(cpA.Next, packet.Size))
	require.NotZero(t, cpB.Next)
	cpC := packet.DecodeControlPacket(sim.ReadMem(cpB.Next, packet.Size))

	assert.True(t, cpA.Control0.Has(packet.Ctl0Chain))
	assert.True(t, cpA.Control0.Has(packet.Ctl0ChainContinuous))
	assert.True(t, cpB.Control0.Has(packet.Ctl0Chain))
	assert.True(t, cpB.Control0.Has(packet.Ctl0ChainContinuous))
	assert.False(t, cpC.Control0.Has(packet.Ctl0Chain))
	assert.False(t, cpC.Control0.Has(packet.Ctl0ChainContinuous))
	assert.Zero(t, cpC.Next)
	assert.False(t, cpA.Control0.Has(packet.Ctl0DecrSemaphore))
	assert.False(t, cpB.Control0.Has(packet.Ctl0DecrSemaphore))
	assert.True(t, cpC.Control0.Has(packet.Ctl0DecrSemaphore))

	sim.Run()
	assert.False(t, ex.Busy(), "one semaphore decrement retires the whole chain")
	for i := range ps {
		st := ps[i].Status()
		require.True(t, st.Done(), "packet %d", i)
		assert.Equal(t, srcs[i], dsts[i], "packet %d executed in chain order", i)
	}
	ex.Release()
}

func TestExecSliceEmpty(t *testing.T) {
	d, _, _ := newDevice(false)
	ex, err := dcp.NewSingleChannel(d, 0)
	require.NoError(t, err)
	assert.Error(t, ex.ExecSlice(nil))
	ex.Release()
}

func TestSingleChannelReleaseWaitsForDrain(t *testing.T) {
	d, sim, _ := newDevice(false)
	ex, err := dcp.NewSingleChannel(d, 0)
	require.NoError(t, err)

	src, dst := seq(16), make([]byte, 16)
	b, err := dcp.NewMemcopy(dcp.BufferSource(src), dst)
	require.NoError(t, err)
	require.NoError(t, ex.ExecOne(b.Packet()))

	released := make(chan *dcp.DCP, 1)
	go func() { released <- ex.Release() }()

	for i := 0; i < 200; i++ {
		select {
		case <-released:
			t.Fatal("Release returned with work still in flight")
		default:
		}
		runtime.Gosched()
	}

	sim.StepChannel(0)
	select {
	case got := <-released:
		assert.Same(t, d, got)
	case <-time.After(5 * time.Second):
		t.Fatal("Release did not return after the channel drained")
	}
	assert.Equal(t, src, dst)
}

func TestSchedulerReleaseWaitsForDrain(t *testing.T) {
	d, sim, _ := newDevice(false)
	sched, err := dcp.NewScheduler(d)
	require.NoError(t, err)

	b, err := dcp.NewMemcopy(dcp.BufferSource(seq(16)), make([]byte, 16))
	require.NoError(t, err)
	require.NoError(t, sched.ExecOne(b.Packet()))

	released := make(chan *dcp.DCP, 1)
	go func() { released <- sched.Release() }()

	for i := 0; i < 200; i++ {
		select {
		case <-released:
			t.Fatal("Release returned with work still in flight")
		default:
		}
		runtime.Gosched()
	}

	sim.StepChannel(3)
	select {
	case got := <-released:
		assert.Same(t, d, got)
	case <-time.After(5 * time.Second):
		t.Fatal("Release did not return after the channels drained")
	}
}

func TestReleaseReturnsPeripheral(t *testing.T) {
	d, sim, cg := newDevice(true)
	sched, err := dcp.NewScheduler(d)
	require.NoError(t, err)
	require.NotZero(t, sim.Read32(dcp.RegCONTEXT), "context buffer registered")
	require.NotZero(t, sim.Read32(dcp.RegCTRL)&dcp.CtrlEnableContextSwitching)

	got := sched.Release()
	assert.Same(t, d, got)
	assert.Zero(t, sim.Read32(dcp.RegCHANNELCTRL)&0xf, "all channels disabled")
	assert.Zero(t, sim.Read32(dcp.RegCTRL)&dcp.CtrlEnableContextSwitching)

	// The handle chain closes: active -> unclocked.
	got.Unclock(cg)
	assert.Equal(t, 1, cg.off)
}
