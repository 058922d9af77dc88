package dmac

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/ardnew/samdma/dmac/hal"
	"github.com/ardnew/samdma/pkg"
)

// Controller owns the DMAC global registers, the descriptor storage and the
// pool of available channels.
type Controller struct {
	bus     hal.Bus
	variant hal.Variant
	storage Storage
	n       int

	// available has bit i set while channel i can be taken.
	available atomic.Uint32
}

// NewController binds storage to the engine by writing BASEADDR and WRBADDR,
// and makes the first storage.Len() channels available. It must run before
// any channel is enabled, and storage must outlive the controller.
func NewController(bus hal.Bus, variant hal.Variant, storage Storage) (*Controller, error) {
	if bus == nil || variant == nil || storage == nil {
		return nil, fmt.Errorf("%w: nil bus, variant or storage", pkg.ErrInvalidParameter)
	}
	n := storage.Len()
	if n < 1 || n > variant.MaxChannels() {
		return nil, fmt.Errorf("%w: %d channels, %s has %d",
			pkg.ErrStorageSize, n, variant.Name(), variant.MaxChannels())
	}
	if !isAligned(unsafe.Pointer(storage.Base(0))) || !isAligned(unsafe.Pointer(storage.WriteBack(0))) {
		return nil, fmt.Errorf("%w: descriptor storage not %d-byte aligned",
			pkg.ErrInvalidParameter, DescriptorAlign)
	}

	c := &Controller{
		bus:     bus,
		variant: variant,
		storage: storage,
		n:       n,
	}
	c.global(hal.BaseAddr).Write(bus, uint32(storage.BaseAddress()))
	c.global(hal.WrbAddr).Write(bus, uint32(storage.WriteBackAddress()))
	c.available.Store(c.mask())

	pkg.LogInfo(pkg.ComponentController, "controller initialized",
		"variant", variant.Name(),
		"channels", n,
		"base", storage.BaseAddress(),
		"writeback", storage.WriteBackAddress())
	return c, nil
}

// Variant returns the device family.
func (c *Controller) Variant() hal.Variant { return c.variant }

// NumChannels returns the number of channels backed by storage.
func (c *Controller) NumChannels() int { return c.n }

func (c *Controller) mask() uint32 {
	return ^uint32(0) >> (32 - c.n)
}

func (c *Controller) global(r hal.GlobalRegister) hal.Register {
	reg, _ := c.variant.Global(r)
	return reg
}

func (c *Controller) ctrlBit(bit uint8) hal.Field {
	return hal.Field{Register: c.global(hal.Ctrl), Shift: bit, Width: 1}
}

// Enable turns on the DMA system.
func (c *Controller) Enable() {
	c.ctrlBit(hal.CtrlDMAEnable).SetBit(c.bus, true)
	pkg.LogDebug(pkg.ComponentController, "enabled")
}

// Disable turns off the DMA system, aborting every channel once its
// ongoing burst completes.
func (c *Controller) Disable() {
	c.ctrlBit(hal.CtrlDMAEnable).SetBit(c.bus, false)
	pkg.LogDebug(pkg.ComponentController, "disabled")
}

// IsEnabled reports CTRL.DMAENABLE.
func (c *Controller) IsEnabled() bool {
	return c.ctrlBit(hal.CtrlDMAEnable).Bit(c.bus)
}

// TakeChannel claims channel id. Concurrent calls for the same id have
// exactly one winner; the rest get pkg.ErrChannelUnavailable.
func (c *Controller) TakeChannel(id uint8) (*Channel, error) {
	if int(id) >= c.n {
		return nil, fmt.Errorf("%w: %d of %d", pkg.ErrInvalidChannel, id, c.n)
	}
	bit := uint32(1) << id
	for {
		cur := c.available.Load()
		if cur&bit == 0 {
			return nil, fmt.Errorf("%w: %d", pkg.ErrChannelUnavailable, id)
		}
		if c.available.CompareAndSwap(cur, cur&^bit) {
			break
		}
	}
	pkg.LogDebug(pkg.ComponentController, "channel taken", "id", id)
	return &Channel{
		id:      id,
		bus:     c.bus,
		variant: c.variant,
		first:   c.storage.Base(int(id)),
		wb:      c.storage.WriteBack(int(id)),
		owner:   c,
	}, nil
}

// ReturnChannel disables and resets ch, clears its first descriptor and
// puts the channel back in the pool. ch must not be used afterwards.
func (c *Controller) ReturnChannel(ch *Channel) error {
	if ch == nil || ch.owner != c {
		return fmt.Errorf("%w: channel not taken from this controller", pkg.ErrInvalidState)
	}
	if !ch.returned.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: channel %d already returned", pkg.ErrInvalidState, ch.id)
	}
	ch.Disable()
	ch.Reset()
	ch.first.Reset()

	bit := uint32(1) << ch.id
	for {
		cur := c.available.Load()
		if c.available.CompareAndSwap(cur, cur|bit) {
			break
		}
	}
	pkg.LogDebug(pkg.ComponentController, "channel returned", "id", ch.id)
	return nil
}

// Available returns the channels that can be taken.
func (c *Controller) Available() Channels {
	return Channels(c.available.Load())
}

func checkLevel(l Priority) error {
	if !l.Valid() {
		return fmt.Errorf("%w: %s", pkg.ErrInvalidParameter, l)
	}
	return nil
}

// EnablePriorityLevel lets channels at level l take part in arbitration.
func (c *Controller) EnablePriorityLevel(l Priority) error {
	return c.setPriorityLevel(l, true)
}

// DisablePriorityLevel excludes channels at level l from arbitration.
func (c *Controller) DisablePriorityLevel(l Priority) error {
	return c.setPriorityLevel(l, false)
}

func (c *Controller) setPriorityLevel(l Priority, on bool) error {
	if err := checkLevel(l); err != nil {
		return err
	}
	c.variant.LevelEnable(uint8(l)).SetBit(c.bus, on)
	return nil
}

// PriorityLevelEnabled reports whether level l takes part in arbitration.
func (c *Controller) PriorityLevelEnabled(l Priority) bool {
	return checkLevel(l) == nil && c.variant.LevelEnable(uint8(l)).Bit(c.bus)
}

// SetRoundRobin selects round-robin (true) or static (false) arbitration
// among the channels at level l.
func (c *Controller) SetRoundRobin(l Priority, on bool) error {
	if err := checkLevel(l); err != nil {
		return err
	}
	c.variant.RoundRobin(uint8(l)).SetBit(c.bus, on)
	return nil
}

// RoundRobin reports whether level l uses round-robin arbitration.
func (c *Controller) RoundRobin(l Priority) bool {
	return checkLevel(l) == nil && c.variant.RoundRobin(uint8(l)).Bit(c.bus)
}

// SetLevelQoS sets the QoS of channels at level l. SAMD5x only.
func (c *Controller) SetLevelQoS(l Priority, q QoS) error {
	if err := checkLevel(l); err != nil {
		return err
	}
	if !q.Valid() {
		return fmt.Errorf("%w: %s", pkg.ErrInvalidParameter, q)
	}
	fld, ok := c.variant.LevelQoS(uint8(l))
	if !ok {
		return fmt.Errorf("%w: level qos on %s", pkg.ErrNotSupported, c.variant.Name())
	}
	fld.Set(c.bus, uint32(q))
	return nil
}

// LevelQoS returns the QoS of channels at level l.
func (c *Controller) LevelQoS(l Priority) (QoS, error) {
	if err := checkLevel(l); err != nil {
		return 0, err
	}
	fld, ok := c.variant.LevelQoS(uint8(l))
	if !ok {
		return 0, fmt.Errorf("%w: level qos on %s", pkg.ErrNotSupported, c.variant.Name())
	}
	return QoS(fld.Get(c.bus)), nil
}

// SetBusQoS sets the QoS of one kind of DMA bus access. SAMD21 only.
func (c *Controller) SetBusQoS(t BusTarget, q QoS) error {
	if !t.Valid() || !q.Valid() {
		return fmt.Errorf("%w: %s %s", pkg.ErrInvalidParameter, t, q)
	}
	fld, ok := c.variant.BusQoS(hal.BusTarget(t))
	if !ok {
		return fmt.Errorf("%w: bus qos on %s", pkg.ErrNotSupported, c.variant.Name())
	}
	fld.Set(c.bus, uint32(q))
	return nil
}

// BusQoS returns the QoS of one kind of DMA bus access.
func (c *Controller) BusQoS(t BusTarget) (QoS, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %s", pkg.ErrInvalidParameter, t)
	}
	fld, ok := c.variant.BusQoS(hal.BusTarget(t))
	if !ok {
		return 0, fmt.Errorf("%w: bus qos on %s", pkg.ErrNotSupported, c.variant.Name())
	}
	return QoS(fld.Get(c.bus)), nil
}

func (c *Controller) debugRun() hal.Field {
	return hal.Field{Register: c.global(hal.DbgCtrl), Shift: hal.DbgCtrlDbgRun, Width: 1}
}

// SetDebugRun sets whether the DMAC keeps running while the CPU is halted
// by a debugger.
func (c *Controller) SetDebugRun(on bool) { c.debugRun().SetBit(c.bus, on) }

// DebugRun reports DBGCTRL.DBGRUN.
func (c *Controller) DebugRun() bool { return c.debugRun().Bit(c.bus) }

func (c *Controller) channels(r hal.GlobalRegister) Channels {
	return Channels(c.global(r).Read(c.bus) & c.mask())
}

// PendingChannels returns the channels with a pending trigger.
func (c *Controller) PendingChannels() Channels { return c.channels(hal.PendCh) }

// BusyChannels returns the channels currently transferring.
func (c *Controller) BusyChannels() Channels { return c.channels(hal.BusyCh) }

// InterruptStatus returns the channels with an interrupt pending.
func (c *Controller) InterruptStatus() Channels { return c.channels(hal.IntStatus) }

// ActiveChannel is the decoded ACTIVE register.
type ActiveChannel struct {
	// Levels has bit l set while a channel at priority level l is pending
	// or busy.
	Levels uint8
	// ID is the channel being transferred when Busy.
	ID   uint8
	Busy bool
	// BlockCount is the live BTCNT of the active channel.
	BlockCount uint16
}

// Active returns the decoded ACTIVE register.
func (c *Controller) Active() ActiveChannel {
	raw := c.global(hal.Active).Read(c.bus)
	return ActiveChannel{
		Levels:     uint8(raw>>hal.ActiveLvlExShift) & 0xF,
		ID:         uint8(raw>>hal.ActiveIDShift) & 0x1F,
		Busy:       raw&(1<<hal.ActiveABusy) != 0,
		BlockCount: uint16(raw >> hal.ActiveBtCntShift),
	}
}

// PendingInterrupt is the decoded INTPEND register.
type PendingInterrupt struct {
	ID     uint8
	Flags  Interrupts
	Status Status
}

func (c *Controller) decodePending(raw uint32) PendingInterrupt {
	p := PendingInterrupt{
		ID:    uint8(c.variant.PendingID().Extract(raw)),
		Flags: Interrupts(raw>>hal.IntPendTERR) & InterruptAll,
	}
	for _, m := range []struct {
		bit uint
		s   Status
	}{
		{hal.IntPendPend, StatusPending},
		{hal.IntPendBusy, StatusBusy},
		{hal.IntPendFErr, StatusFetchError},
		{hal.IntPendCRCErr, StatusCRCError},
	} {
		if raw&(1<<m.bit) != 0 {
			p.Status |= m.s
		}
	}
	return p
}

// PendingInterrupt returns the decoded INTPEND register, which reports the
// lowest-numbered channel with a pending interrupt.
func (c *Controller) PendingInterrupt() PendingInterrupt {
	return c.decodePending(c.global(hal.IntPend).Read(c.bus))
}

// TriggerChannel sets channel id's software trigger bit without a handle.
func (c *Controller) TriggerChannel(cs *CriticalSection, id uint8) error {
	cs.check("trigger")
	if int(id) >= c.n {
		return fmt.Errorf("%w: %d of %d", pkg.ErrInvalidChannel, id, c.n)
	}
	trigger(c.bus, c.variant, id)
	return nil
}

// selectPending points INTPEND at channel id and reads it back. The write
// and read are not atomic with respect to other callers selecting a
// different channel.
func (c *Controller) selectPending(id uint8) (PendingInterrupt, error) {
	if int(id) >= c.n {
		return PendingInterrupt{}, fmt.Errorf("%w: %d of %d", pkg.ErrInvalidChannel, id, c.n)
	}
	reg := c.global(hal.IntPend)
	reg.Write(c.bus, c.variant.PendingID().Insert(0, uint32(id)))
	return c.decodePending(reg.Read(c.bus)), nil
}

// ChannelStatus returns channel id's status bits through INTPEND.
func (c *Controller) ChannelStatus(id uint8) (Status, error) {
	p, err := c.selectPending(id)
	return p.Status, err
}

// ChannelInterruptFlags returns channel id's interrupt flags through
// INTPEND.
func (c *Controller) ChannelInterruptFlags(id uint8) (Interrupts, error) {
	p, err := c.selectPending(id)
	return p.Flags, err
}
