// Package dmac drives the descriptor-based DMA controller (DMAC) of SAM
// D5x/E5x and SAM D21 microcontrollers.
//
// The engine moves data on its own once a channel is armed. It walks a
// chain of [TransferDescriptor] records, starting at the channel's first
// descriptor, and reports progress through per-channel interrupt flags and
// a write-back descriptor it keeps current. This package builds those
// records, owns the channel pool, and turns the flags into a transaction
// state.
//
// # Setup
//
// Descriptor memory is allocated once and registered with the engine:
//
//	storage, _ := dmac.NewStorage(4)
//	ctrl, err := dmac.NewController(bus, hal.SAMD5x, storage)
//	if err != nil {
//		return err
//	}
//	ctrl.EnablePriorityLevel(dmac.PriorityLevel0)
//	ctrl.Enable()
//
// The bus comes from a backend in dmac/hal: mmio on TinyGo targets, mmap on
// Linux, sim for host tests.
//
// # Channels
//
// [Controller.TakeChannel] hands out at most one [Channel] per ID until it
// is returned with [Controller.ReturnChannel]:
//
//	ch, err := ctrl.TakeChannel(0)
//	if err != nil {
//		return err // pkg.ErrChannelUnavailable when already taken
//	}
//	d := ch.FirstDescriptor()
//	d.SetBeatSize(dmac.BeatByte)
//	d.SetBlockCount(uint16(len(src)))
//	d.SetSourceIncrement(true)
//	d.SetDestinationIncrement(true)
//	d.SetSourceBlock(dmac.AddressOf(unsafe.Pointer(&src[0])))
//	d.SetDestinationBlock(dmac.AddressOf(unsafe.Pointer(&dst[0])))
//	d.SetValid()
//	ch.EnableInterrupts(dmac.InterruptTransferComplete | dmac.InterruptTransferError)
//	ch.Enable()
//	dmac.WithCriticalSection(masker, func(cs *dmac.CriticalSection) {
//		ch.Trigger(cs)
//	})
//
// # Chains
//
// Descriptors after the first come from a [DescriptorTable] and are linked
// by index. Linking the last entry back to an earlier one makes a circular
// chain the engine repeats until the channel is disabled.
//
// # Polling
//
// [Channel.PollStatus] reads and clears the channel's flags and reports
// [Ongoing], [Suspended] or [Done], or a *[TransactionError] wrapping
// pkg.ErrInvalidDescriptor, pkg.ErrTransfer or pkg.ErrCRC. Call it once per
// interrupt.
//
// # Concurrency
//
// The channel pool is safe for concurrent use. Registers shared between
// channels (SWTRIGCTRL, CHCTRLB.CMD, CHID, INTPEND.ID) are not serialized;
// operations on them take a [CriticalSection] token, which only
// [WithCriticalSection] creates.
package dmac
