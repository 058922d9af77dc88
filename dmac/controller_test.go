package dmac

import (
	"errors"
	"sync"
	"testing"
	"unsafe"

	"github.com/ardnew/samdma/dmac/hal"
	"github.com/ardnew/samdma/dmac/hal/sim"
	"github.com/ardnew/samdma/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController(t *testing.T, v hal.Variant, n int) (*Controller, *sim.Bus) {
	t.Helper()
	storage, err := NewStorage(n)
	require.NoError(t, err)
	bus := sim.New(v)
	c, err := NewController(bus, v, storage)
	require.NoError(t, err)
	return c, bus
}

func takeChannel(t *testing.T, c *Controller, id uint8) *Channel {
	t.Helper()
	ch, err := c.TakeChannel(id)
	require.NoError(t, err)
	return ch
}

func TestNewController_BindsStorage(t *testing.T) {
	for _, v := range []hal.Variant{hal.SAMD5x, hal.SAMD21} {
		t.Run(v.Name(), func(t *testing.T) {
			storage, err := NewStorage(4)
			require.NoError(t, err)
			bus := sim.New(v)
			_, err = NewController(bus, v, storage)
			require.NoError(t, err)

			assert.Equal(t, uint32(storage.BaseAddress()), bus.PeekGlobal(hal.BaseAddr))
			assert.Equal(t, uint32(storage.WriteBackAddress()), bus.PeekGlobal(hal.WrbAddr))
		})
	}
}

func TestNewController_Errors(t *testing.T) {
	storage, err := NewStorage(13)
	require.NoError(t, err)
	_, err = NewController(sim.New(hal.SAMD21), hal.SAMD21, storage)
	assert.ErrorIs(t, err, pkg.ErrStorageSize)

	_, err = NewController(nil, hal.SAMD21, storage)
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)

	buf := make([]TransferDescriptor, 4)
	base := unsafe.Pointer(&buf[0])
	off := 4
	if isAligned(unsafe.Add(base, off)) {
		off = 8
	}
	p := unsafe.Add(base, off)
	_, err = NewController(sim.New(hal.SAMD5x), hal.SAMD5x, NewUnsafeStorage(p, p, 1))
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
}

func TestController_InitialAvailability(t *testing.T) {
	tests := []struct {
		variant hal.Variant
		n       int
	}{
		{hal.SAMD5x, 1},
		{hal.SAMD5x, 4},
		{hal.SAMD5x, 31},
		{hal.SAMD5x, 32},
		{hal.SAMD21, 1},
		{hal.SAMD21, 12},
	}
	for _, tt := range tests {
		t.Run(tt.variant.Name(), func(t *testing.T) {
			c, _ := newController(t, tt.variant, tt.n)
			want := Channels(uint64(1)<<tt.n - 1)
			assert.Equal(t, want, c.Available())
			assert.Equal(t, tt.n, c.Available().Len())
			assert.Equal(t, tt.n, c.NumChannels())
		})
	}
}

func TestController_TakeChannelTwice(t *testing.T) {
	c, _ := newController(t, hal.SAMD5x, 8)
	for id := uint8(0); id < 8; id++ {
		ch := takeChannel(t, c, id)
		assert.Equal(t, id, ch.ID())
		assert.False(t, c.Available().Has(id))

		_, err := c.TakeChannel(id)
		assert.ErrorIs(t, err, pkg.ErrChannelUnavailable)
	}
	assert.Zero(t, c.Available())
}

func TestController_TakeChannelOutOfRange(t *testing.T) {
	c, _ := newController(t, hal.SAMD5x, 4)
	_, err := c.TakeChannel(4)
	assert.ErrorIs(t, err, pkg.ErrInvalidChannel)
	_, err = c.TakeChannel(255)
	assert.ErrorIs(t, err, pkg.ErrInvalidChannel)
}

func TestController_ReturnThenTake(t *testing.T) {
	c, _ := newController(t, hal.SAMD5x, 4)
	ch := takeChannel(t, c, 2)
	first, wb := ch.FirstDescriptor(), ch.WriteBackDescriptor()

	require.NoError(t, c.ReturnChannel(ch))
	assert.True(t, c.Available().Has(2))

	again := takeChannel(t, c, 2)
	assert.Same(t, first, again.FirstDescriptor())
	assert.Equal(t, wb, again.WriteBackDescriptor())
}

func TestController_ReturnResetsChannel(t *testing.T) {
	for _, v := range []hal.Variant{hal.SAMD5x, hal.SAMD21} {
		t.Run(v.Name(), func(t *testing.T) {
			c, bus := newController(t, v, 4)
			ch := takeChannel(t, c, 3)
			require.NoError(t, ch.SetPriority(PriorityLevel2))
			require.NoError(t, ch.SetTriggerAction(TriggerTransaction))
			ch.SetRunStandby(true)
			ch.EnableInterrupts(InterruptAll)
			validWord(ch.FirstDescriptor())
			ch.Enable()

			require.NoError(t, c.ReturnChannel(ch))
			assert.Zero(t, bus.Peek(3, hal.ChCtrlA))
			assert.Zero(t, bus.Peek(3, hal.ChCtrlB))
			assert.Zero(t, bus.Peek(3, hal.ChIntEnSet))
			assert.Equal(t, TransferDescriptor{}, *c.storage.Base(3))
		})
	}
}

func TestController_ReturnInvalid(t *testing.T) {
	c, _ := newController(t, hal.SAMD5x, 4)
	other, _ := newController(t, hal.SAMD5x, 4)

	ch := takeChannel(t, c, 1)
	foreign := takeChannel(t, other, 1)

	assert.ErrorIs(t, c.ReturnChannel(foreign), pkg.ErrInvalidState)
	assert.ErrorIs(t, c.ReturnChannel(nil), pkg.ErrInvalidState)
	assert.False(t, c.Available().Has(1))

	require.NoError(t, c.ReturnChannel(ch))
	assert.ErrorIs(t, c.ReturnChannel(ch), pkg.ErrInvalidState)

	// a second handle exists only after a fresh take
	fresh := takeChannel(t, c, 1)
	assert.ErrorIs(t, c.ReturnChannel(ch), pkg.ErrInvalidState)
	assert.False(t, c.Available().Has(1))
	require.NoError(t, c.ReturnChannel(fresh))
}

func TestController_ConcurrentTake(t *testing.T) {
	c, _ := newController(t, hal.SAMD5x, 32)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners = map[uint8]int{}
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := uint8(0); id < 32; id++ {
				ch, err := c.TakeChannel(id)
				if err != nil {
					if !errors.Is(err, pkg.ErrChannelUnavailable) {
						t.Errorf("take %d: %v", id, err)
					}
					continue
				}
				mu.Lock()
				winners[ch.ID()]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, winners, 32)
	for id, n := range winners {
		assert.Equal(t, 1, n, "channel %d", id)
	}
	assert.Zero(t, c.Available())
}

func TestController_EnableDisable(t *testing.T) {
	c, bus := newController(t, hal.SAMD5x, 2)
	assert.False(t, c.IsEnabled())
	c.Enable()
	assert.True(t, c.IsEnabled())
	assert.Equal(t, uint32(1<<hal.CtrlDMAEnable), bus.PeekGlobal(hal.Ctrl))
	c.Disable()
	assert.False(t, c.IsEnabled())
}

func TestController_PriorityLevels(t *testing.T) {
	for _, v := range []hal.Variant{hal.SAMD5x, hal.SAMD21} {
		t.Run(v.Name(), func(t *testing.T) {
			c, bus := newController(t, v, 2)
			c.Enable()
			for l := PriorityLevel0; l <= PriorityLevel3; l++ {
				require.NoError(t, c.EnablePriorityLevel(l))
				assert.True(t, c.PriorityLevelEnabled(l))
				assert.NotZero(t, bus.PeekGlobal(hal.Ctrl)&(1<<(hal.CtrlLvlEn0+uint(l))))

				require.NoError(t, c.SetRoundRobin(l, true))
				assert.True(t, c.RoundRobin(l))
				assert.NotZero(t, bus.PeekGlobal(hal.PriCtrl0)&(1<<(8*uint(l)+7)))
			}
			assert.True(t, c.IsEnabled())

			require.NoError(t, c.DisablePriorityLevel(PriorityLevel1))
			assert.False(t, c.PriorityLevelEnabled(PriorityLevel1))
			assert.True(t, c.PriorityLevelEnabled(PriorityLevel2))
			require.NoError(t, c.SetRoundRobin(PriorityLevel3, false))
			assert.False(t, c.RoundRobin(PriorityLevel3))
			assert.True(t, c.RoundRobin(PriorityLevel2))

			assert.ErrorIs(t, c.EnablePriorityLevel(4), pkg.ErrInvalidParameter)
			assert.ErrorIs(t, c.SetRoundRobin(4, true), pkg.ErrInvalidParameter)
			assert.False(t, c.PriorityLevelEnabled(4))
		})
	}
}

func TestController_LevelQoS(t *testing.T) {
	c, bus := newController(t, hal.SAMD5x, 2)
	for l := PriorityLevel0; l <= PriorityLevel3; l++ {
		for _, q := range qosTable.values() {
			require.NoError(t, c.SetLevelQoS(l, q))
			got, err := c.LevelQoS(l)
			require.NoError(t, err)
			assert.Equal(t, q, got)
		}
	}
	require.NoError(t, c.SetLevelQoS(PriorityLevel0, QoSDisable))
	require.NoError(t, c.SetLevelQoS(PriorityLevel1, QoSDisable))
	require.NoError(t, c.SetLevelQoS(PriorityLevel3, QoSDisable))
	require.NoError(t, c.SetLevelQoS(PriorityLevel2, QoSMedium))
	assert.Equal(t, uint32(QoSMedium)<<21, bus.PeekGlobal(hal.PriCtrl0)&(0x3<<21))
	assert.ErrorIs(t, c.SetLevelQoS(PriorityLevel0, QoS(4)), pkg.ErrInvalidParameter)

	d21, _ := newController(t, hal.SAMD21, 2)
	assert.ErrorIs(t, d21.SetLevelQoS(PriorityLevel0, QoSLow), pkg.ErrNotSupported)
	_, err := d21.LevelQoS(PriorityLevel0)
	assert.ErrorIs(t, err, pkg.ErrNotSupported)
}

func TestController_BusQoS(t *testing.T) {
	c, bus := newController(t, hal.SAMD21, 2)
	for _, target := range busTargetTable.values() {
		for _, q := range qosTable.values() {
			require.NoError(t, c.SetBusQoS(target, q))
			got, err := c.BusQoS(target)
			require.NoError(t, err)
			assert.Equal(t, q, got)
		}
	}
	require.NoError(t, c.SetBusQoS(BusWriteBack, QoSLow))
	require.NoError(t, c.SetBusQoS(BusFetch, QoSMedium))
	require.NoError(t, c.SetBusQoS(BusData, QoSCritical))
	assert.Equal(t, uint32(0x39), bus.PeekGlobal(hal.QoSCtrl))

	assert.ErrorIs(t, c.SetBusQoS(BusTarget(3), QoSLow), pkg.ErrInvalidParameter)

	d5x, _ := newController(t, hal.SAMD5x, 2)
	assert.ErrorIs(t, d5x.SetBusQoS(BusData, QoSLow), pkg.ErrNotSupported)
	_, err := d5x.BusQoS(BusData)
	assert.ErrorIs(t, err, pkg.ErrNotSupported)
}

func TestController_DebugRun(t *testing.T) {
	c, bus := newController(t, hal.SAMD21, 1)
	assert.False(t, c.DebugRun())
	c.SetDebugRun(true)
	assert.True(t, c.DebugRun())
	assert.Equal(t, uint32(1), bus.PeekGlobal(hal.DbgCtrl))
	c.SetDebugRun(false)
	assert.False(t, c.DebugRun())
}

func TestController_ChannelSets(t *testing.T) {
	c, bus := newController(t, hal.SAMD5x, 4)
	bus.SetGlobal(hal.PendCh, 0xFFFF0005)
	bus.SetGlobal(hal.BusyCh, 0x2)
	bus.SetGlobal(hal.IntStatus, 0x18)

	assert.Equal(t, ChannelsOf(0, 2), c.PendingChannels())
	assert.Equal(t, ChannelsOf(1), c.BusyChannels())
	assert.Equal(t, ChannelsOf(3), c.InterruptStatus())
}

func TestController_Active(t *testing.T) {
	c, bus := newController(t, hal.SAMD5x, 4)
	bus.SetGlobal(hal.Active, 0x00108305)
	assert.Equal(t, ActiveChannel{Levels: 0x5, ID: 3, Busy: true, BlockCount: 16}, c.Active())

	bus.SetGlobal(hal.Active, 0)
	assert.Equal(t, ActiveChannel{}, c.Active())
}

func TestController_TriggerChannel(t *testing.T) {
	c, bus := newController(t, hal.SAMD5x, 4)
	var m sim.Masker

	WithCriticalSection(&m, func(cs *CriticalSection) {
		require.NoError(t, c.TriggerChannel(cs, 2))
		require.NoError(t, c.TriggerChannel(cs, 0))
		assert.ErrorIs(t, c.TriggerChannel(cs, 4), pkg.ErrInvalidChannel)
	})
	assert.Equal(t, uint32(0x5), bus.PeekGlobal(hal.SwTrigCtrl))

	bus.AcknowledgeTrigger(2)
	assert.Equal(t, uint32(0x1), bus.PeekGlobal(hal.SwTrigCtrl))

	assert.Panics(t, func() { _ = c.TriggerChannel(nil, 0) })
}

func TestController_ChannelQueries(t *testing.T) {
	for _, v := range []hal.Variant{hal.SAMD5x, hal.SAMD21} {
		t.Run(v.Name(), func(t *testing.T) {
			c, bus := newController(t, v, 4)
			bus.Raise(2, uint8(InterruptTransferComplete|InterruptSuspend))
			bus.SetStatus(2, uint8(StatusBusy|StatusFetchError))
			bus.Raise(1, uint8(InterruptTransferError))

			flags, err := c.ChannelInterruptFlags(2)
			require.NoError(t, err)
			assert.Equal(t, InterruptTransferComplete|InterruptSuspend, flags)

			status, err := c.ChannelStatus(2)
			require.NoError(t, err)
			assert.Equal(t, StatusBusy|StatusFetchError, status)

			p := c.PendingInterrupt()
			assert.Equal(t, uint8(2), p.ID)
			assert.Equal(t, InterruptTransferComplete|InterruptSuspend, p.Flags)

			// selecting does not clear
			assert.Equal(t, uint32(InterruptTransferComplete|InterruptSuspend), bus.Peek(2, hal.ChIntFlag))

			flags, err = c.ChannelInterruptFlags(1)
			require.NoError(t, err)
			assert.Equal(t, InterruptTransferError, flags)

			_, err = c.ChannelStatus(4)
			assert.ErrorIs(t, err, pkg.ErrInvalidChannel)
		})
	}
}
