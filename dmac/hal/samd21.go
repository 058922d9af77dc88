package hal

// SAMD21 is the register map of SAMD21 devices: 12 channels sharing one
// register bank selected through CHID, QoS per bus master.
var SAMD21 Variant = samd21{}

type samd21 struct{}

var samd21Global = [numGlobalRegisters]Register{
	Ctrl:       {0x00, Size16},
	CRCCtrl:    {0x02, Size16},
	CRCStatus:  {0x0C, Size8},
	DbgCtrl:    {0x0D, Size8},
	QoSCtrl:    {0x0E, Size8},
	SwTrigCtrl: {0x10, Size32},
	PriCtrl0:   {0x14, Size32},
	IntPend:    {0x20, Size16},
	IntStatus:  {0x24, Size32},
	BusyCh:     {0x28, Size32},
	PendCh:     {0x2C, Size32},
	Active:     {0x30, Size32},
	BaseAddr:   {0x34, Size32},
	WrbAddr:    {0x38, Size32},
}

var samd21ChID = Register{0x3F, Size8}

// The bank has no CHPRILVL or CHEVCTRL; both live in CHCTRLB.
var samd21Bank = [numChannelRegisters]Register{
	ChCtrlA:    {0x40, Size8},
	ChCtrlB:    {0x44, Size32},
	ChIntEnClr: {0x4C, Size8},
	ChIntEnSet: {0x4D, Size8},
	ChIntFlag:  {0x4E, Size8},
	ChStatus:   {0x4F, Size8},
}

var samd21Fields = [numChannelFields]ChannelFieldSpec{
	ChannelReset:         {ChCtrlA, 0, 1},
	ChannelEnable:        {ChCtrlA, 1, 1},
	ChannelRunStandby:    {ChCtrlA, 6, 1},
	ChannelTriggerSource: {ChCtrlB, 8, 6},
	ChannelTriggerAction: {ChCtrlB, 22, 2},
	ChannelPriority:      {ChCtrlB, 5, 2},
	ChannelCommand:       {ChCtrlB, 24, 2},
	ChannelPending:       {ChStatus, 0, 1},
	ChannelBusy:          {ChStatus, 1, 1},
	ChannelFetchError:    {ChStatus, 2, 1},
}

func (samd21) Name() string         { return "samd21" }
func (samd21) BaseAddress() uintptr { return 0x41004800 }
func (samd21) MaxChannels() int     { return 12 }

func (samd21) Global(r GlobalRegister) (Register, bool) {
	if r >= numGlobalRegisters {
		return Register{}, false
	}
	return samd21Global[r], true
}

func (samd21) ChannelSelect() (Register, bool) { return samd21ChID, true }

func (samd21) Channel(id uint8, r ChannelRegister) (Register, bool) {
	if id >= 12 || r >= numChannelRegisters || r == ChPriLvl || r == ChEvCtrl {
		return Register{}, false
	}
	return samd21Bank[r], true
}

func (samd21) ChannelField(f ChannelField) (ChannelFieldSpec, bool) {
	switch f {
	case ChannelBurstLength, ChannelThreshold, ChannelCRCError:
		return ChannelFieldSpec{}, false
	}
	if f >= numChannelFields {
		return ChannelFieldSpec{}, false
	}
	return samd21Fields[f], true
}

func (samd21) LevelEnable(level uint8) Field {
	return Field{Register: samd21Global[Ctrl], Shift: CtrlLvlEn0 + level, Width: 1}
}

func (samd21) RoundRobin(level uint8) Field {
	return Field{Register: samd21Global[PriCtrl0], Shift: 8*level + 7, Width: 1}
}

func (samd21) LevelQoS(uint8) (Field, bool) { return Field{}, false }

func (samd21) BusQoS(t BusTarget) (Field, bool) {
	if t > BusData {
		return Field{}, false
	}
	return Field{Register: samd21Global[QoSCtrl], Shift: 2 * uint8(t), Width: 2}, true
}

func (samd21) PendingID() Field {
	return Field{Register: samd21Global[IntPend], Shift: 0, Width: 4}
}
