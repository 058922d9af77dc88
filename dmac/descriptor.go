package dmac

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Address is a 32-bit bus address as the DMA engine sees it.
type Address uint32

// AddressOf returns the bus address of p. On 32-bit targets this is the
// exact address. On 64-bit hosts the upper bits are discarded and the
// result is only an opaque token.
func AddressOf(p unsafe.Pointer) Address {
	return Address(uintptr(p))
}

func (a Address) String() string {
	return fmt.Sprintf("0x%08x", uint32(a))
}

// DescriptorSize is the size of a TransferDescriptor in bytes.
const DescriptorSize = 16

// DescriptorAlign is the alignment the engine requires of descriptor memory.
const DescriptorAlign = 16

// BTCTRL bit positions.
const (
	btctrlValid      = 0
	btctrlEvosel     = 1
	btctrlBlockAct   = 3
	btctrlBeatSize   = 8
	btctrlSrcInc     = 10
	btctrlDstInc     = 11
	btctrlStepSel    = 12
	btctrlStepSize   = 13
	btctrlWidth2Mask = 0x3
	btctrlWidth3Mask = 0x7
)

// TransferDescriptor describes one block transfer. Its memory layout is the
// one the engine fetches, so it must live in 16-byte aligned memory; use
// [NewStorage] or [NewDescriptorTable] to allocate descriptors the engine
// will see.
//
// The zero value is an empty, invalid descriptor with no next link.
type TransferDescriptor struct {
	btctrl   uint16
	btcnt    uint16
	srcaddr  Address
	dstaddr  Address
	descaddr Address
}

// NewTransferDescriptor returns an empty descriptor.
func NewTransferDescriptor() TransferDescriptor {
	return TransferDescriptor{}
}

func (d *TransferDescriptor) bits(pos uint, mask uint16) uint16 {
	return (d.btctrl >> pos) & mask
}

func (d *TransferDescriptor) setBits(pos uint, mask, value uint16) {
	d.btctrl = d.btctrl&^(mask<<pos) | (value&mask)<<pos
}

func (d *TransferDescriptor) flag(pos uint) bool {
	return d.bits(pos, 1) != 0
}

func (d *TransferDescriptor) setFlag(pos uint, on bool) {
	var v uint16
	if on {
		v = 1
	}
	d.setBits(pos, 1, v)
}

// Reset zeroes the descriptor.
func (d *TransferDescriptor) Reset() {
	*d = TransferDescriptor{}
}

// SourceAddress returns SRCADDR.
func (d *TransferDescriptor) SourceAddress() Address { return d.srcaddr }

// SetSourceAddress sets SRCADDR. For incrementing sources this must be
// the address one past the end of the block; see SetSourceBlock.
func (d *TransferDescriptor) SetSourceAddress(a Address) { d.srcaddr = a }

// DestinationAddress returns DSTADDR.
func (d *TransferDescriptor) DestinationAddress() Address { return d.dstaddr }

// SetDestinationAddress sets DSTADDR. For incrementing destinations this
// must be the address one past the end of the block; see
// SetDestinationBlock.
func (d *TransferDescriptor) SetDestinationAddress(a Address) { d.dstaddr = a }

// BlockCount returns the number of beats in the block.
func (d *TransferDescriptor) BlockCount() uint16 { return d.btcnt }

// SetBlockCount sets the number of beats in the block.
func (d *TransferDescriptor) SetBlockCount(n uint16) { d.btcnt = n }

// StepSize returns the address increment multiplier.
func (d *TransferDescriptor) StepSize() StepSize {
	return StepSize(d.bits(btctrlStepSize, btctrlWidth3Mask))
}

// SetStepSize sets the address increment multiplier.
func (d *TransferDescriptor) SetStepSize(s StepSize) {
	d.setBits(btctrlStepSize, btctrlWidth3Mask, uint16(s))
}

// StepSelection reports whether the step size applies to the source (true)
// or the destination (false).
func (d *TransferDescriptor) StepSelection() bool { return d.flag(btctrlStepSel) }

// SetStepSelection selects the side the step size applies to.
func (d *TransferDescriptor) SetStepSelection(source bool) { d.setFlag(btctrlStepSel, source) }

// DestinationIncrement reports whether DSTADDR increments per beat.
func (d *TransferDescriptor) DestinationIncrement() bool { return d.flag(btctrlDstInc) }

func (d *TransferDescriptor) SetDestinationIncrement(on bool) { d.setFlag(btctrlDstInc, on) }

// SourceIncrement reports whether SRCADDR increments per beat.
func (d *TransferDescriptor) SourceIncrement() bool { return d.flag(btctrlSrcInc) }

func (d *TransferDescriptor) SetSourceIncrement(on bool) { d.setFlag(btctrlSrcInc, on) }

// BeatSize returns the beat width.
func (d *TransferDescriptor) BeatSize() BeatSize {
	return BeatSize(d.bits(btctrlBeatSize, btctrlWidth2Mask))
}

func (d *TransferDescriptor) SetBeatSize(s BeatSize) {
	d.setBits(btctrlBeatSize, btctrlWidth2Mask, uint16(s))
}

// BlockAction returns the action taken when the block completes.
func (d *TransferDescriptor) BlockAction() BlockAction {
	return BlockAction(d.bits(btctrlBlockAct, btctrlWidth2Mask))
}

func (d *TransferDescriptor) SetBlockAction(a BlockAction) {
	d.setBits(btctrlBlockAct, btctrlWidth2Mask, uint16(a))
}

// EventOutput returns the event output selection (EVOSEL).
func (d *TransferDescriptor) EventOutput() EventOutput {
	return EventOutput(d.bits(btctrlEvosel, btctrlWidth2Mask))
}

func (d *TransferDescriptor) SetEventOutput(e EventOutput) {
	d.setBits(btctrlEvosel, btctrlWidth2Mask, uint16(e))
}

// IsValid reports whether the engine may fetch the descriptor.
func (d *TransferDescriptor) IsValid() bool { return d.flag(btctrlValid) }

// SetValid marks the descriptor fetchable.
func (d *TransferDescriptor) SetValid() { d.setFlag(btctrlValid, true) }

// SetInvalid marks the descriptor unfetchable. The engine reports a fetch
// error if it reaches an invalid descriptor mid-chain.
func (d *TransferDescriptor) SetInvalid() { d.setFlag(btctrlValid, false) }

// Link sets the next descriptor address. The descriptor at next must stay
// in place for as long as the engine may walk the chain.
func (d *TransferDescriptor) Link(next Address) { d.descaddr = next }

// LinkTo links d to next by address.
func (d *TransferDescriptor) LinkTo(next *TransferDescriptor) {
	d.Link(AddressOf(unsafe.Pointer(next)))
}

// Unlink clears the next descriptor address and returns its previous value.
func (d *TransferDescriptor) Unlink() Address {
	prev := d.descaddr
	d.descaddr = 0
	return prev
}

// Next returns the next descriptor address, zero at the end of a chain.
func (d *TransferDescriptor) Next() Address { return d.descaddr }

// BlockBytes returns the number of bytes moved by the block.
func (d *TransferDescriptor) BlockBytes() int {
	return int(d.btcnt) * d.BeatSize().Bytes()
}

// span returns the number of bytes an address on one side advances over the
// block, taking the step size into account when it applies to that side.
func (d *TransferDescriptor) span(source bool) Address {
	n := Address(d.BlockBytes())
	if d.StepSelection() == source {
		n *= Address(d.StepSize().Factor())
	}
	return n
}

// SetSourceBlock sets SRCADDR from the start of the source block. The
// engine expects the end address for incrementing sources, so the block
// count, beat size and step settings must already be set.
func (d *TransferDescriptor) SetSourceBlock(start Address) {
	if d.SourceIncrement() {
		start += d.span(true)
	}
	d.srcaddr = start
}

// SetDestinationBlock sets DSTADDR from the start of the destination block.
// The same ordering rule as SetSourceBlock applies.
func (d *TransferDescriptor) SetDestinationBlock(start Address) {
	if d.DestinationIncrement() {
		start += d.span(false)
	}
	d.dstaddr = start
}

// words views d as four 32-bit words.
func (d *TransferDescriptor) words() *[DescriptorSize / 4]uint32 {
	return (*[DescriptorSize / 4]uint32)(unsafe.Pointer(d))
}

// snapshot copies d one word at a time with atomic loads. Each word is read
// whole, but the engine may update d between words.
func (d *TransferDescriptor) snapshot() TransferDescriptor {
	var out TransferDescriptor
	src, dst := d.words(), out.words()
	for i := range src {
		dst[i] = atomic.LoadUint32(&src[i])
	}
	return out
}

func (d *TransferDescriptor) String() string {
	return fmt.Sprintf("{valid:%t beat:%s count:%d src:%s dst:%s next:%s}",
		d.IsValid(), d.BeatSize(), d.btcnt, d.srcaddr, d.dstaddr, d.descaddr)
}
