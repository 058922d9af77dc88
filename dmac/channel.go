package dmac

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/ardnew/samdma/dmac/hal"
	"github.com/ardnew/samdma/pkg"
)

// Channel is exclusive access to one DMA channel, obtained from
// Controller.TakeChannel. Configuration setters are meant for a disabled
// channel or the gap between transactions; the hardware behavior of
// reconfiguring an active channel is undefined and not prevented here.
type Channel struct {
	id       uint8
	bus      hal.Bus
	variant  hal.Variant
	first    *TransferDescriptor
	wb       *TransferDescriptor
	owner    *Controller
	returned atomic.Bool
}

// ID returns the channel number.
func (ch *Channel) ID() uint8 { return ch.id }

func (ch *Channel) register(r hal.ChannelRegister) (hal.Register, bool) {
	return hal.SelectChannel(ch.bus, ch.variant, ch.id, r)
}

func (ch *Channel) field(f hal.ChannelField) (hal.Field, bool) {
	return hal.SelectChannelField(ch.bus, ch.variant, ch.id, f)
}

func (ch *Channel) bit(f hal.ChannelField) bool {
	fld, ok := ch.field(f)
	return ok && fld.Bit(ch.bus)
}

func (ch *Channel) setBit(f hal.ChannelField, on bool) {
	if fld, ok := ch.field(f); ok {
		fld.SetBit(ch.bus, on)
	}
}

// Enable lets the channel take part in arbitration.
func (ch *Channel) Enable() { ch.setBit(hal.ChannelEnable, true) }

// Disable requests the channel stop. An ongoing burst completes first, so
// the channel reads as enabled until then.
func (ch *Channel) Disable() { ch.setBit(hal.ChannelEnable, false) }

// IsEnabled reports CHCTRLA.ENABLE.
func (ch *Channel) IsEnabled() bool { return ch.bit(hal.ChannelEnable) }

// Reset restores the channel registers to their reset values. The
// hardware ignores the reset while the channel is enabled or still
// disabling.
func (ch *Channel) Reset() { ch.setBit(hal.ChannelReset, true) }

// Trigger sets the channel's software trigger bit. SWTRIGCTRL is shared by
// all channels.
func (ch *Channel) Trigger(cs *CriticalSection) {
	cs.check("trigger")
	trigger(ch.bus, ch.variant, ch.id)
}

func trigger(b hal.Bus, v hal.Variant, id uint8) {
	if reg, ok := v.Global(hal.SwTrigCtrl); ok {
		reg.Modify(b, func(raw uint32) uint32 { return raw | 1<<id })
	}
}

// Suspend issues a suspend command. It returns true if another command is
// still pending, in which case nothing is written and the caller should
// retry; false means the command was accepted.
func (ch *Channel) Suspend(cs *CriticalSection) bool {
	cs.check("suspend")
	return ch.command(hal.CmdSuspend, "suspend")
}

// Resume issues a resume command with the same return convention as
// Suspend.
func (ch *Channel) Resume(cs *CriticalSection) bool {
	cs.check("resume")
	return ch.command(hal.CmdResume, "resume")
}

func (ch *Channel) command(cmd uint32, name string) bool {
	fld, ok := ch.field(hal.ChannelCommand)
	if !ok {
		return true
	}
	if pending := fld.Get(ch.bus); pending != hal.CmdNoAct {
		pkg.LogDebug(pkg.ComponentChannel, "command rejected",
			"id", ch.id, "command", name, "pending", pending)
		return true
	}
	fld.Set(ch.bus, cmd)
	return false
}

// SetPriority sets the channel's arbitration level.
func (ch *Channel) SetPriority(p Priority) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %s", pkg.ErrInvalidParameter, p)
	}
	return ch.setField(hal.ChannelPriority, uint32(p), "priority")
}

// Priority returns the channel's arbitration level.
func (ch *Channel) Priority() Priority {
	v, _ := ch.getField(hal.ChannelPriority, "priority")
	return Priority(v)
}

// SetSource sets the peripheral trigger. Codes wider than the family's
// trigger field are rejected.
func (ch *Channel) SetSource(s TriggerSource) error {
	spec, ok := ch.variant.ChannelField(hal.ChannelTriggerSource)
	if !ok {
		return fmt.Errorf("%w: trigger source", pkg.ErrNotSupported)
	}
	if uint32(s) >= 1<<spec.Width {
		return fmt.Errorf("%w: trigger source %s on %s", pkg.ErrInvalidParameter, s, ch.variant.Name())
	}
	return ch.setField(hal.ChannelTriggerSource, uint32(s), "trigger source")
}

// Source returns the peripheral trigger.
func (ch *Channel) Source() TriggerSource {
	v, _ := ch.getField(hal.ChannelTriggerSource, "trigger source")
	return TriggerSource(v)
}

// SetTriggerAction sets what one trigger transfers.
func (ch *Channel) SetTriggerAction(a TriggerAction) error {
	if !a.Valid() {
		return fmt.Errorf("%w: %s", pkg.ErrInvalidParameter, a)
	}
	return ch.setField(hal.ChannelTriggerAction, uint32(a), "trigger action")
}

// TriggerAction returns what one trigger transfers.
func (ch *Channel) TriggerAction() TriggerAction {
	v, _ := ch.getField(hal.ChannelTriggerAction, "trigger action")
	return TriggerAction(v)
}

// SetRunStandby sets whether the channel keeps running in standby sleep.
func (ch *Channel) SetRunStandby(on bool) { ch.setBit(hal.ChannelRunStandby, on) }

// RunStandby reports whether the channel runs in standby sleep.
func (ch *Channel) RunStandby() bool { return ch.bit(hal.ChannelRunStandby) }

// SetBurstLength sets the beats per burst. Not available on SAMD21.
func (ch *Channel) SetBurstLength(l BurstLength) error {
	if !l.Valid() {
		return fmt.Errorf("%w: %s", pkg.ErrInvalidParameter, l)
	}
	return ch.setField(hal.ChannelBurstLength, uint32(l), "burst length")
}

// BurstLength returns the beats per burst.
func (ch *Channel) BurstLength() (BurstLength, error) {
	v, err := ch.getField(hal.ChannelBurstLength, "burst length")
	return BurstLength(v), err
}

// SetFifoThreshold sets the destination write threshold. Not available on
// SAMD21.
func (ch *Channel) SetFifoThreshold(t FifoThreshold) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %s", pkg.ErrInvalidParameter, t)
	}
	return ch.setField(hal.ChannelThreshold, uint32(t), "fifo threshold")
}

// FifoThreshold returns the destination write threshold.
func (ch *Channel) FifoThreshold() (FifoThreshold, error) {
	v, err := ch.getField(hal.ChannelThreshold, "fifo threshold")
	return FifoThreshold(v), err
}

func (ch *Channel) setField(f hal.ChannelField, v uint32, name string) error {
	fld, ok := ch.field(f)
	if !ok {
		return fmt.Errorf("%w: %s on %s", pkg.ErrNotSupported, name, ch.variant.Name())
	}
	fld.Set(ch.bus, v)
	return nil
}

func (ch *Channel) getField(f hal.ChannelField, name string) (uint32, error) {
	fld, ok := ch.field(f)
	if !ok {
		return 0, fmt.Errorf("%w: %s on %s", pkg.ErrNotSupported, name, ch.variant.Name())
	}
	return fld.Get(ch.bus), nil
}

// FirstDescriptor returns the descriptor the engine starts from on every
// trigger.
func (ch *Channel) FirstDescriptor() *TransferDescriptor { return ch.first }

// WriteBackDescriptor returns the raw address of the descriptor the engine
// updates while the channel runs. The engine writes it at any time without
// synchronization; never write through it, and expect reads to tear.
func (ch *Channel) WriteBackDescriptor() unsafe.Pointer {
	return unsafe.Pointer(ch.wb)
}

// WriteBackSnapshot copies the write-back descriptor one 32-bit word at a
// time. Fields within a word are consistent; the words may come from
// different engine updates.
func (ch *Channel) WriteBackSnapshot() TransferDescriptor {
	return ch.wb.snapshot()
}

// InterruptFlags returns the pending interrupt flags.
func (ch *Channel) InterruptFlags() Interrupts {
	reg, ok := ch.register(hal.ChIntFlag)
	if !ok {
		return InterruptNone
	}
	return Interrupts(reg.Read(ch.bus)) & InterruptAll
}

// ClearInterruptFlags clears the pending interrupt flags and returns them.
// Flags raised after the read are kept.
func (ch *Channel) ClearInterruptFlags() Interrupts {
	reg, ok := ch.register(hal.ChIntFlag)
	if !ok {
		return InterruptNone
	}
	flags := Interrupts(reg.Read(ch.bus)) & InterruptAll
	if flags != 0 {
		reg.Write(ch.bus, uint32(flags))
	}
	return flags
}

// EnableInterrupts enables exactly the interrupts in set and disables the
// rest.
func (ch *Channel) EnableInterrupts(set Interrupts) {
	set &= InterruptAll
	if reg, ok := ch.register(hal.ChIntEnClr); ok {
		reg.Write(ch.bus, uint32(InterruptAll&^set))
	}
	if reg, ok := ch.register(hal.ChIntEnSet); ok {
		reg.Write(ch.bus, uint32(set))
	}
}

// EnabledInterrupts returns the enabled interrupts.
func (ch *Channel) EnabledInterrupts() Interrupts {
	reg, ok := ch.register(hal.ChIntEnSet)
	if !ok {
		return InterruptNone
	}
	return Interrupts(reg.Read(ch.bus)) & InterruptAll
}

// Status returns CHSTATUS.
func (ch *Channel) Status() Status {
	reg, ok := ch.register(hal.ChStatus)
	if !ok {
		return 0
	}
	return channelStatus(ch.variant, reg.Read(ch.bus))
}

// IsPending reports whether the channel has a trigger waiting for
// arbitration.
func (ch *Channel) IsPending() bool { return ch.Status().Has(StatusPending) }

// IsBusy reports whether the channel is transferring.
func (ch *Channel) IsBusy() bool { return ch.Status().Has(StatusBusy) }

// PollStatus reads and clears the channel's interrupt flags and classifies
// the transaction. Call it once per interrupt: the flags it clears are not
// raised again.
//
// Hardware failures are returned as a *TransactionError.
func (ch *Channel) PollStatus() (WaitResult, error) {
	flags := ch.InterruptFlags()
	status := ch.Status()
	if flags != 0 {
		if reg, ok := ch.register(hal.ChIntFlag); ok {
			reg.Write(ch.bus, uint32(flags))
		}
	}
	return result(ch.id, classify(ch.IsEnabled(), flags, status))
}

// channelStatus maps a raw CHSTATUS value to Status using the family's bit
// positions.
func channelStatus(v hal.Variant, raw uint32) Status {
	var s Status
	for _, m := range []struct {
		field hal.ChannelField
		bit   Status
	}{
		{hal.ChannelPending, StatusPending},
		{hal.ChannelBusy, StatusBusy},
		{hal.ChannelFetchError, StatusFetchError},
		{hal.ChannelCRCError, StatusCRCError},
	} {
		if spec, ok := v.ChannelField(m.field); ok && raw&(1<<spec.Shift) != 0 {
			s |= m.bit
		}
	}
	return s
}
