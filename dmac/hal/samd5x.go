package hal

// SAMD5x is the register map of SAMD51 and SAME5x devices: 32 channels,
// each with its own 16-byte register bank, QoS per priority level.
var SAMD5x Variant = samd5x{}

type samd5x struct{}

var samd5xGlobal = [numGlobalRegisters]Register{
	Ctrl:       {0x00, Size16},
	CRCCtrl:    {0x02, Size16},
	CRCStatus:  {0x0C, Size8},
	DbgCtrl:    {0x0D, Size8},
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

const (
	samd5xBankBase   = 0x40
	samd5xBankStride = 0x10
)

var samd5xBank = [numChannelRegisters]Register{
	ChCtrlA:    {0x0, Size32},
	ChCtrlB:    {0x4, Size8},
	ChPriLvl:   {0x5, Size8},
	ChEvCtrl:   {0x6, Size8},
	ChIntEnClr: {0xC, Size8},
	ChIntEnSet: {0xD, Size8},
	ChIntFlag:  {0xE, Size8},
	ChStatus:   {0xF, Size8},
}

var samd5xFields = [numChannelFields]ChannelFieldSpec{
	ChannelReset:         {ChCtrlA, 0, 1},
	ChannelEnable:        {ChCtrlA, 1, 1},
	ChannelRunStandby:    {ChCtrlA, 6, 1},
	ChannelTriggerSource: {ChCtrlA, 8, 7},
	ChannelTriggerAction: {ChCtrlA, 20, 2},
	ChannelBurstLength:   {ChCtrlA, 24, 4},
	ChannelThreshold:     {ChCtrlA, 28, 2},
	ChannelPriority:      {ChPriLvl, 0, 2},
	ChannelCommand:       {ChCtrlB, 0, 2},
	ChannelPending:       {ChStatus, 0, 1},
	ChannelBusy:          {ChStatus, 1, 1},
	ChannelFetchError:    {ChStatus, 2, 1},
	ChannelCRCError:      {ChStatus, 3, 1},
}

func (samd5x) Name() string         { return "samd5x" }
func (samd5x) BaseAddress() uintptr { return 0x4100A000 }
func (samd5x) MaxChannels() int     { return 32 }

func (samd5x) Global(r GlobalRegister) (Register, bool) {
	if r >= numGlobalRegisters || r == QoSCtrl {
		return Register{}, false
	}
	return samd5xGlobal[r], true
}

func (samd5x) ChannelSelect() (Register, bool) { return Register{}, false }

func (samd5x) Channel(id uint8, r ChannelRegister) (Register, bool) {
	if id >= 32 || r >= numChannelRegisters {
		return Register{}, false
	}
	reg := samd5xBank[r]
	reg.Offset += samd5xBankBase + samd5xBankStride*uintptr(id)
	return reg, true
}

func (samd5x) ChannelField(f ChannelField) (ChannelFieldSpec, bool) {
	if f >= numChannelFields {
		return ChannelFieldSpec{}, false
	}
	return samd5xFields[f], true
}

func (samd5x) LevelEnable(level uint8) Field {
	return Field{Register: samd5xGlobal[Ctrl], Shift: CtrlLvlEn0 + level, Width: 1}
}

func (samd5x) RoundRobin(level uint8) Field {
	return Field{Register: samd5xGlobal[PriCtrl0], Shift: 8*level + 7, Width: 1}
}

func (samd5x) LevelQoS(level uint8) (Field, bool) {
	return Field{Register: samd5xGlobal[PriCtrl0], Shift: 8*level + 5, Width: 2}, true
}

func (samd5x) BusQoS(BusTarget) (Field, bool) { return Field{}, false }

func (samd5x) PendingID() Field {
	return Field{Register: samd5xGlobal[IntPend], Shift: 0, Width: 5}
}
