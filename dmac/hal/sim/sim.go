package sim

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"

	"github.com/ardnew/samdma/dmac/hal"
)

const numBankRegisters = int(hal.ChStatus) + 1

// Channel flag bits mirrored into INTPEND.
const flagMask = 0x7

type channel struct {
	regs  [numBankRegisters]uint32
	inten uint32
}

type bankRegister struct {
	reg hal.ChannelRegister
	id  int // -1 when selected through CHID
}

// Bus is a simulated DMAC register block.
type Bus struct {
	mutex sync.Mutex

	variant hal.Variant
	global  map[uintptr]uint32
	kinds   map[uintptr]hal.GlobalRegister
	bank    map[uintptr]bankRegister
	chans   []channel

	chid     uint8
	pendID   uint8
	indexed  bool
	selector hal.Register

	enable hal.ChannelFieldSpec
	reset  hal.ChannelFieldSpec
	cmd    hal.ChannelFieldSpec
	status [4]int // pend, busy, ferr, crcerr bit positions, -1 if absent
}

// New creates a simulated register block for the given family with all
// registers cleared.
func New(v hal.Variant) *Bus {
	b := &Bus{
		variant: v,
		global:  make(map[uintptr]uint32),
		kinds:   make(map[uintptr]hal.GlobalRegister),
		bank:    make(map[uintptr]bankRegister),
		chans:   make([]channel, v.MaxChannels()),
	}

	for r := hal.Ctrl; r <= hal.WrbAddr; r++ {
		if reg, ok := v.Global(r); ok {
			b.kinds[reg.Offset] = r
		}
	}

	b.selector, b.indexed = v.ChannelSelect()
	for id := 0; id < v.MaxChannels(); id++ {
		for r := hal.ChCtrlA; r <= hal.ChStatus; r++ {
			reg, ok := v.Channel(uint8(id), r)
			if !ok {
				continue
			}
			if b.indexed {
				b.bank[reg.Offset] = bankRegister{reg: r, id: -1}
			} else {
				b.bank[reg.Offset] = bankRegister{reg: r, id: id}
			}
		}
	}

	b.enable, _ = v.ChannelField(hal.ChannelEnable)
	b.reset, _ = v.ChannelField(hal.ChannelReset)
	b.cmd, _ = v.ChannelField(hal.ChannelCommand)
	for i, f := range []hal.ChannelField{
		hal.ChannelPending, hal.ChannelBusy, hal.ChannelFetchError, hal.ChannelCRCError,
	} {
		b.status[i] = -1
		if spec, ok := v.ChannelField(f); ok {
			b.status[i] = int(spec.Shift)
		}
	}
	return b
}

// Variant returns the simulated family.
func (b *Bus) Variant() hal.Variant {
	return b.variant
}

// Load8 implements hal.Bus.
func (b *Bus) Load8(offset uintptr) uint8 { return uint8(b.load(offset)) }

// Load16 implements hal.Bus.
func (b *Bus) Load16(offset uintptr) uint16 { return uint16(b.load(offset)) }

// Load32 implements hal.Bus.
func (b *Bus) Load32(offset uintptr) uint32 { return b.load(offset) }

// Store8 implements hal.Bus.
func (b *Bus) Store8(offset uintptr, value uint8) { b.store(offset, uint32(value)) }

// Store16 implements hal.Bus.
func (b *Bus) Store16(offset uintptr, value uint16) { b.store(offset, uint32(value)) }

// Store32 implements hal.Bus.
func (b *Bus) Store32(offset uintptr, value uint32) { b.store(offset, value) }

func (b *Bus) load(offset uintptr) uint32 {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.indexed && offset == b.selector.Offset {
		return uint32(b.chid)
	}
	if br, ok := b.bank[offset]; ok {
		ch := b.channelLocked(br)
		if ch == nil {
			return 0
		}
		switch br.reg {
		case hal.ChIntEnSet, hal.ChIntEnClr:
			return ch.inten
		default:
			return ch.regs[br.reg]
		}
	}
	if kind, ok := b.kinds[offset]; ok && kind == hal.IntPend {
		return b.intpendLocked()
	}
	return b.global[offset]
}

func (b *Bus) store(offset uintptr, value uint32) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.indexed && offset == b.selector.Offset {
		b.chid = uint8(value)
		return
	}
	if br, ok := b.bank[offset]; ok {
		if ch := b.channelLocked(br); ch != nil {
			b.storeChannelLocked(ch, br.reg, value)
		}
		return
	}
	kind, ok := b.kinds[offset]
	if !ok {
		return
	}
	switch kind {
	case hal.Ctrl:
		cur := b.global[offset]
		if value&(1<<hal.CtrlSWRST) != 0 {
			if cur&(1<<hal.CtrlDMAEnable) == 0 {
				b.resetLocked()
			}
			return
		}
		b.global[offset] = value
	case hal.IntPend:
		id := b.variant.PendingID()
		b.pendID = uint8(id.Extract(value))
		if int(b.pendID) < len(b.chans) {
			b.chans[b.pendID].regs[hal.ChIntFlag] &^= (value >> hal.IntPendTERR) & flagMask
		}
	case hal.IntStatus, hal.BusyCh, hal.PendCh, hal.Active, hal.CRCStatus:
		// read-only
	default:
		b.global[offset] = value
	}
}

func (b *Bus) storeChannelLocked(ch *channel, reg hal.ChannelRegister, value uint32) {
	switch reg {
	case hal.ChIntFlag:
		ch.regs[reg] &^= value
	case hal.ChIntEnSet:
		ch.inten |= value & flagMask
	case hal.ChIntEnClr:
		ch.inten &^= value
	case hal.ChStatus:
		// read-only
	case hal.ChCtrlA:
		if value&(1<<b.reset.Shift) != 0 {
			if ch.regs[hal.ChCtrlA]&(1<<b.enable.Shift) == 0 {
				*ch = channel{}
			}
			return
		}
		ch.regs[reg] = value
	default:
		ch.regs[reg] = value
	}
}

func (b *Bus) channelLocked(br bankRegister) *channel {
	id := br.id
	if id < 0 {
		id = int(b.chid)
	}
	if id >= len(b.chans) {
		return nil
	}
	return &b.chans[id]
}

func (b *Bus) intpendLocked() uint32 {
	id := uint32(b.pendID)
	if int(id) >= len(b.chans) {
		return id
	}
	ch := &b.chans[id]
	v := id | (ch.regs[hal.ChIntFlag]&flagMask)<<hal.IntPendTERR
	for i, bit := range []int{hal.IntPendPend, hal.IntPendBusy, hal.IntPendFErr, hal.IntPendCRCErr} {
		if b.status[i] >= 0 && ch.regs[hal.ChStatus]&(1<<b.status[i]) != 0 {
			v |= 1 << bit
		}
	}
	return v
}

func (b *Bus) resetLocked() {
	clear(b.global)
	for i := range b.chans {
		b.chans[i] = channel{}
	}
	b.chid = 0
	b.pendID = 0
}

// Raise sets interrupt flags on a channel, as the engine does on transfer
// error, block completion or suspension.
func (b *Bus) Raise(id uint8, flags uint8) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if int(id) < len(b.chans) {
		b.chans[id].regs[hal.ChIntFlag] |= uint32(flags) & flagMask
	}
}

// SetStatus replaces a channel's CHSTATUS value.
func (b *Bus) SetStatus(id uint8, status uint8) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if int(id) < len(b.chans) {
		b.chans[id].regs[hal.ChStatus] = uint32(status)
	}
}

// SetEnabled sets or clears a channel's CHCTRLA.ENABLE bit, as the engine
// does when it disables a channel after the last block or on error.
func (b *Bus) SetEnabled(id uint8, on bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if int(id) >= len(b.chans) {
		return
	}
	bit := uint32(1) << b.enable.Shift
	if on {
		b.chans[id].regs[hal.ChCtrlA] |= bit
	} else {
		b.chans[id].regs[hal.ChCtrlA] &^= bit
	}
}

// CompleteCommand clears a channel's pending command, as the engine does
// once a suspend or resume takes effect.
func (b *Bus) CompleteCommand(id uint8) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if int(id) >= len(b.chans) {
		return
	}
	mask := (uint32(1)<<b.cmd.Width - 1) << b.cmd.Shift
	b.chans[id].regs[b.cmd.Register] &^= mask
}

// AcknowledgeTrigger clears a channel's software trigger bit, as the
// engine does when it services the trigger.
func (b *Bus) AcknowledgeTrigger(id uint8) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if reg, ok := b.variant.Global(hal.SwTrigCtrl); ok {
		b.global[reg.Offset] &^= 1 << id
	}
}

// SetGlobal replaces the value of a global register, including the
// read-only status registers.
func (b *Bus) SetGlobal(r hal.GlobalRegister, value uint32) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if reg, ok := b.variant.Global(r); ok {
		b.global[reg.Offset] = value
	}
}

// Peek returns a channel register without selecting the channel.
func (b *Bus) Peek(id uint8, r hal.ChannelRegister) uint32 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if int(id) >= len(b.chans) || int(r) >= numBankRegisters {
		return 0
	}
	if r == hal.ChIntEnSet || r == hal.ChIntEnClr {
		return b.chans[id].inten
	}
	return b.chans[id].regs[r]
}

// PeekGlobal returns a global register.
func (b *Bus) PeekGlobal(r hal.GlobalRegister) uint32 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	reg, ok := b.variant.Global(r)
	if !ok {
		return 0
	}
	if r == hal.IntPend {
		return b.intpendLocked()
	}
	return b.global[reg.Offset]
}

// Masker serializes critical sections across goroutines. Sections nest
// within one goroutine the way interrupt masking nests on the target: only
// the outermost Restore lets other goroutines in.
type Masker struct {
	mutex sync.Mutex
	free  *sync.Cond
	owner uint64
	depth int
}

// Disable implements hal.InterruptMasker. It blocks while another goroutine
// holds the mask and returns the nesting depth before the call.
func (m *Masker) Disable() uintptr {
	id := goroutineID()
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.free == nil {
		m.free = sync.NewCond(&m.mutex)
	}
	for m.depth > 0 && m.owner != id {
		m.free.Wait()
	}
	prev := m.depth
	m.owner = id
	m.depth++
	return uintptr(prev)
}

// Restore implements hal.InterruptMasker, returning to the depth Disable
// reported.
func (m *Masker) Restore(state uintptr) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.depth = int(state)
	if m.depth == 0 {
		m.owner = 0
		if m.free != nil {
			m.free.Broadcast()
		}
	}
}

// goroutineID parses the current goroutine's number from its stack header,
// "goroutine N [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
