package hal

import "strings"

// GlobalRegister identifies a register shared by all channels.
type GlobalRegister uint8

// Global registers.
const (
	Ctrl GlobalRegister = iota
	CRCCtrl
	CRCStatus
	DbgCtrl
	QoSCtrl
	SwTrigCtrl
	PriCtrl0
	IntPend
	IntStatus
	BusyCh
	PendCh
	Active
	BaseAddr
	WrbAddr
	numGlobalRegisters
)

// ChannelRegister identifies a per-channel register.
type ChannelRegister uint8

// Channel registers.
const (
	ChCtrlA ChannelRegister = iota
	ChCtrlB
	ChPriLvl
	ChEvCtrl
	ChIntEnClr
	ChIntEnSet
	ChIntFlag
	ChStatus
	numChannelRegisters
)

// ChannelField identifies a bit field within a channel register.
type ChannelField uint8

// Channel fields.
const (
	ChannelReset ChannelField = iota
	ChannelEnable
	ChannelRunStandby
	ChannelTriggerSource
	ChannelTriggerAction
	ChannelBurstLength
	ChannelThreshold
	ChannelPriority
	ChannelCommand
	ChannelPending
	ChannelBusy
	ChannelFetchError
	ChannelCRCError
	numChannelFields
)

// ChannelFieldSpec locates a channel field relative to its register.
type ChannelFieldSpec struct {
	Register ChannelRegister
	Shift    uint8
	Width    uint8
}

// BusTarget selects one of the DMAC bus masters with a separate QoS setting.
type BusTarget uint8

// Bus QoS targets (SAMD21 QOSCTRL).
const (
	BusWriteBack BusTarget = iota
	BusFetch
	BusData
)

// Bit positions shared by all supported families.
const (
	CtrlSWRST     = 0
	CtrlDMAEnable = 1
	CtrlLvlEn0    = 8

	DbgCtrlDbgRun = 0

	IntPendTERR   = 8
	IntPendTCMPL  = 9
	IntPendSUSP   = 10
	IntPendCRCErr = 12
	IntPendFErr   = 13
	IntPendBusy   = 14
	IntPendPend   = 15

	ActiveLvlExShift = 0
	ActiveIDShift    = 8
	ActiveABusy      = 15
	ActiveBtCntShift = 16
)

// Channel command codes (CHCTRLB.CMD).
const (
	CmdNoAct   = 0
	CmdSuspend = 1
	CmdResume  = 2
)

// Variant describes the register map of a DMAC device family.
type Variant interface {
	// Name returns the family name.
	Name() string
	// BaseAddress returns the physical address of the DMAC register block.
	BaseAddress() uintptr
	// MaxChannels returns the number of channels the family implements.
	MaxChannels() int
	// Global returns a global register, or false if the family lacks it.
	Global(r GlobalRegister) (Register, bool)
	// ChannelSelect returns the channel index register of families that
	// multiplex one channel bank, or false if every channel has its own.
	ChannelSelect() (Register, bool)
	// Channel returns register r of channel id, or false if the family
	// lacks it or id is out of range.
	Channel(id uint8, r ChannelRegister) (Register, bool)
	// ChannelField locates a channel field, or false if the family lacks it.
	ChannelField(f ChannelField) (ChannelFieldSpec, bool)
	// LevelEnable returns CTRL.LVLENx for a priority level.
	LevelEnable(level uint8) Field
	// RoundRobin returns PRICTRL0.RRLVLENx for a priority level.
	RoundRobin(level uint8) Field
	// LevelQoS returns PRICTRL0.QOSx, or false if QoS is not per level.
	LevelQoS(level uint8) (Field, bool)
	// BusQoS returns the QOSCTRL field for a bus master, or false if QoS is
	// not per bus master.
	BusQoS(t BusTarget) (Field, bool)
	// PendingID returns INTPEND.ID.
	PendingID() Field
}

// SelectChannel returns register r of channel id, first writing the channel
// index register on families that multiplex one bank.
func SelectChannel(b Bus, v Variant, id uint8, r ChannelRegister) (Register, bool) {
	reg, ok := v.Channel(id, r)
	if !ok {
		return Register{}, false
	}
	if sel, indexed := v.ChannelSelect(); indexed {
		sel.Write(b, uint32(id))
	}
	return reg, true
}

// SelectChannelField resolves field f of channel id, selecting the channel
// on indexed families.
func SelectChannelField(b Bus, v Variant, id uint8, f ChannelField) (Field, bool) {
	spec, ok := v.ChannelField(f)
	if !ok {
		return Field{}, false
	}
	reg, ok := SelectChannel(b, v, id, spec.Register)
	if !ok {
		return Field{}, false
	}
	return Field{Register: reg, Shift: spec.Shift, Width: spec.Width}, true
}

// Lookup returns the variant for a family or part name such as "samd51",
// "same54" or "samd21".
func Lookup(name string) (Variant, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "samd5x", "samd51", "same5x", "same51", "same53", "same54":
		return SAMD5x, true
	case "samd21":
		return SAMD21, true
	}
	return nil, false
}
