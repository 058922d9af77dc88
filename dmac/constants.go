package dmac

import (
	"math/bits"
	"strconv"
	"strings"

	"github.com/ardnew/samdma/dmac/hal"
)

// MaxChannels is the largest number of channels any supported family has.
const MaxChannels = 32

// Priority is a channel's arbitration priority level.
type Priority uint8

// Priority levels, lowest first.
const (
	PriorityLevel0 Priority = iota
	PriorityLevel1
	PriorityLevel2
	PriorityLevel3
)

// NumPriorityLevels is the number of arbitration priority levels.
const NumPriorityLevels = 4

var priorityTable = enumTable[Priority]{
	kind: "priority",
	entries: []enumEntry[Priority]{
		{PriorityLevel0, "level0"},
		{PriorityLevel1, "level1"},
		{PriorityLevel2, "level2"},
		{PriorityLevel3, "level3"},
		{PriorityLevel0, "lvl0"},
		{PriorityLevel1, "lvl1"},
		{PriorityLevel2, "lvl2"},
		{PriorityLevel3, "lvl3"},
	},
}

func (p Priority) String() string                { return priorityTable.text(p) }
func (p Priority) Valid() bool                   { return priorityTable.valid(p) }
func (p Priority) MarshalText() ([]byte, error)  { return priorityTable.marshal(p) }
func (p *Priority) UnmarshalText(b []byte) error { return priorityTable.unmarshal(p, b) }

// QoS is the quality-of-service hint attached to DMA bus accesses.
//
// SAMD5x names the levels regular, shortage, sensitive and critical; SAMD21
// names them disable, low, medium and high. Both spellings are accepted.
type QoS uint8

// QoS levels.
const (
	QoSDisable QoS = iota
	QoSLow
	QoSMedium
	QoSCritical
)

var qosTable = enumTable[QoS]{
	kind: "qos",
	entries: []enumEntry[QoS]{
		{QoSDisable, "disable"},
		{QoSLow, "low"},
		{QoSMedium, "medium"},
		{QoSCritical, "critical"},
		{QoSDisable, "regular"},
		{QoSLow, "shortage"},
		{QoSMedium, "sensitive"},
		{QoSCritical, "high"},
	},
}

func (q QoS) String() string                { return qosTable.text(q) }
func (q QoS) Valid() bool                   { return qosTable.valid(q) }
func (q QoS) MarshalText() ([]byte, error)  { return qosTable.marshal(q) }
func (q *QoS) UnmarshalText(b []byte) error { return qosTable.unmarshal(q, b) }

// BurstLength is the number of beats per burst (SAMD5x only). The register
// code is the beat count minus one.
type BurstLength uint8

// Burst lengths.
const (
	BurstSingle BurstLength = iota
	Burst2Beats
	Burst3Beats
	Burst4Beats
	Burst5Beats
	Burst6Beats
	Burst7Beats
	Burst8Beats
	Burst9Beats
	Burst10Beats
	Burst11Beats
	Burst12Beats
	Burst13Beats
	Burst14Beats
	Burst15Beats
	Burst16Beats
)

var burstLengthTable = func() enumTable[BurstLength] {
	t := enumTable[BurstLength]{kind: "burst length"}
	for code := BurstSingle; code <= Burst16Beats; code++ {
		t.entries = append(t.entries, enumEntry[BurstLength]{code, strconv.Itoa(int(code)+1) + "beat"})
	}
	t.entries = append(t.entries, enumEntry[BurstLength]{BurstSingle, "single"})
	return t
}()

// Beats returns the number of beats in one burst.
func (l BurstLength) Beats() int { return int(l) + 1 }

func (l BurstLength) String() string                { return burstLengthTable.text(l) }
func (l BurstLength) Valid() bool                   { return burstLengthTable.valid(l) }
func (l BurstLength) MarshalText() ([]byte, error)  { return burstLengthTable.marshal(l) }
func (l *BurstLength) UnmarshalText(b []byte) error { return burstLengthTable.unmarshal(l, b) }

// FifoThreshold is the number of beats collected in the channel FIFO before
// a destination write (SAMD5x only).
type FifoThreshold uint8

// FIFO thresholds.
const (
	Threshold1Beat FifoThreshold = iota
	Threshold2Beats
	Threshold4Beats
	Threshold8Beats
)

var fifoThresholdTable = enumTable[FifoThreshold]{
	kind: "fifo threshold",
	entries: []enumEntry[FifoThreshold]{
		{Threshold1Beat, "1beat"},
		{Threshold2Beats, "2beat"},
		{Threshold4Beats, "4beat"},
		{Threshold8Beats, "8beat"},
	},
}

// Beats returns the threshold in beats.
func (t FifoThreshold) Beats() int { return 1 << t }

func (t FifoThreshold) String() string                { return fifoThresholdTable.text(t) }
func (t FifoThreshold) Valid() bool                   { return fifoThresholdTable.valid(t) }
func (t FifoThreshold) MarshalText() ([]byte, error)  { return fifoThresholdTable.marshal(t) }
func (t *FifoThreshold) UnmarshalText(b []byte) error { return fifoThresholdTable.unmarshal(t, b) }

// TriggerAction selects how much is transferred per trigger.
type TriggerAction uint8

// Trigger actions. Code 2 is a burst on SAMD5x and a beat on SAMD21.
const (
	TriggerBlock       TriggerAction = 0
	TriggerBurst       TriggerAction = 2
	TriggerBeat        TriggerAction = 2
	TriggerTransaction TriggerAction = 3
)

var triggerActionTable = enumTable[TriggerAction]{
	kind: "trigger action",
	entries: []enumEntry[TriggerAction]{
		{TriggerBlock, "block"},
		{TriggerBurst, "burst"},
		{TriggerTransaction, "transaction"},
		{TriggerBeat, "beat"},
	},
}

func (a TriggerAction) String() string                { return triggerActionTable.text(a) }
func (a TriggerAction) Valid() bool                   { return triggerActionTable.valid(a) }
func (a TriggerAction) MarshalText() ([]byte, error)  { return triggerActionTable.marshal(a) }
func (a *TriggerAction) UnmarshalText(b []byte) error { return triggerActionTable.unmarshal(a, b) }

// TriggerSource is the raw peripheral trigger code. The field is 7 bits
// wide on SAMD5x and 6 bits on SAMD21, and the codes differ by family.
type TriggerSource uint8

// Software triggering only.
const TriggerSoftware TriggerSource = 0x00

// SAMD5x trigger sources.
const (
	TriggerSAMD5xSercom0Rx TriggerSource = 0x04
	TriggerSAMD5xSercom0Tx TriggerSource = 0x05
	TriggerSAMD5xTC0Ovf    TriggerSource = 0x2C
	TriggerSAMD5xADC0Ready TriggerSource = 0x44
	TriggerSAMD5xDAC0Empty TriggerSource = 0x48
	TriggerSAMD5xQSPIRx    TriggerSource = 0x53
	TriggerSAMD5xQSPITx    TriggerSource = 0x54
)

// SAMD21 trigger sources.
const (
	TriggerSAMD21Sercom0Rx TriggerSource = 0x01
	TriggerSAMD21Sercom0Tx TriggerSource = 0x02
	TriggerSAMD21TC3Ovf    TriggerSource = 0x18
	TriggerSAMD21ADCReady  TriggerSource = 0x27
	TriggerSAMD21DACEmpty  TriggerSource = 0x28
)

var triggerSourceTable = enumTable[TriggerSource]{
	kind: "trigger source",
	entries: []enumEntry[TriggerSource]{
		{TriggerSoftware, "software"},
		{TriggerSoftware, "disable"},
	},
	limit: 0x7F,
}

func (s TriggerSource) String() string                { return triggerSourceTable.text(s) }
func (s TriggerSource) Valid() bool                   { return triggerSourceTable.valid(s) }
func (s TriggerSource) MarshalText() ([]byte, error)  { return triggerSourceTable.marshal(s) }
func (s *TriggerSource) UnmarshalText(b []byte) error { return triggerSourceTable.unmarshal(s, b) }

// BeatSize is the width of one bus transfer.
type BeatSize uint8

// Beat sizes.
const (
	BeatByte BeatSize = iota
	BeatHalfWord
	BeatWord
)

var beatSizeTable = enumTable[BeatSize]{
	kind: "beat size",
	entries: []enumEntry[BeatSize]{
		{BeatByte, "byte"},
		{BeatHalfWord, "hword"},
		{BeatWord, "word"},
		{BeatHalfWord, "halfword"},
	},
}

// Bytes returns the beat width in bytes.
func (s BeatSize) Bytes() int { return 1 << s }

func (s BeatSize) String() string                { return beatSizeTable.text(s) }
func (s BeatSize) Valid() bool                   { return beatSizeTable.valid(s) }
func (s BeatSize) MarshalText() ([]byte, error)  { return beatSizeTable.marshal(s) }
func (s *BeatSize) UnmarshalText(b []byte) error { return beatSizeTable.unmarshal(s, b) }

// StepSize is the address increment multiplier applied to the side chosen
// by the descriptor's step selection.
type StepSize uint8

// Step sizes.
const (
	StepX1 StepSize = iota
	StepX2
	StepX4
	StepX8
	StepX16
	StepX32
	StepX64
	StepX128
)

var stepSizeTable = func() enumTable[StepSize] {
	t := enumTable[StepSize]{kind: "step size"}
	for s := StepX1; s <= StepX128; s++ {
		t.entries = append(t.entries, enumEntry[StepSize]{s, "x" + strconv.Itoa(1<<s)})
	}
	return t
}()

// Factor returns the multiplier.
func (s StepSize) Factor() int { return 1 << s }

func (s StepSize) String() string                { return stepSizeTable.text(s) }
func (s StepSize) Valid() bool                   { return stepSizeTable.valid(s) }
func (s StepSize) MarshalText() ([]byte, error)  { return stepSizeTable.marshal(s) }
func (s *StepSize) UnmarshalText(b []byte) error { return stepSizeTable.unmarshal(s, b) }

// BlockAction is what the channel does when a block completes.
type BlockAction uint8

// Block actions.
const (
	BlockNoAction BlockAction = iota
	BlockInterrupt
	BlockSuspend
	BlockBoth
)

var blockActionTable = enumTable[BlockAction]{
	kind: "block action",
	entries: []enumEntry[BlockAction]{
		{BlockNoAction, "noact"},
		{BlockInterrupt, "int"},
		{BlockSuspend, "suspend"},
		{BlockBoth, "both"},
	},
}

func (a BlockAction) String() string                { return blockActionTable.text(a) }
func (a BlockAction) Valid() bool                   { return blockActionTable.valid(a) }
func (a BlockAction) MarshalText() ([]byte, error)  { return blockActionTable.marshal(a) }
func (a *BlockAction) UnmarshalText(b []byte) error { return blockActionTable.unmarshal(a, b) }

// EventOutput selects when the channel emits an output event.
type EventOutput uint8

// Event output selections. Code 2 is reserved.
const (
	EventDisable EventOutput = 0
	EventBlock   EventOutput = 1
	EventBeat    EventOutput = 3
)

var eventOutputTable = enumTable[EventOutput]{
	kind: "event output",
	entries: []enumEntry[EventOutput]{
		{EventDisable, "disable"},
		{EventBlock, "block"},
		{EventBeat, "beat"},
	},
}

func (e EventOutput) String() string                { return eventOutputTable.text(e) }
func (e EventOutput) Valid() bool                   { return eventOutputTable.valid(e) }
func (e EventOutput) MarshalText() ([]byte, error)  { return eventOutputTable.marshal(e) }
func (e *EventOutput) UnmarshalText(b []byte) error { return eventOutputTable.unmarshal(e, b) }

// BusTarget selects one of the bus access kinds whose QoS is configured in
// the SAMD21 QOSCTRL register.
type BusTarget uint8

// Bus targets.
const (
	BusWriteBack = BusTarget(hal.BusWriteBack)
	BusFetch     = BusTarget(hal.BusFetch)
	BusData      = BusTarget(hal.BusData)
)

var busTargetTable = enumTable[BusTarget]{
	kind: "bus target",
	entries: []enumEntry[BusTarget]{
		{BusWriteBack, "writeback"},
		{BusFetch, "fetch"},
		{BusData, "data"},
	},
}

func (t BusTarget) String() string                { return busTargetTable.text(t) }
func (t BusTarget) Valid() bool                   { return busTargetTable.valid(t) }
func (t BusTarget) MarshalText() ([]byte, error)  { return busTargetTable.marshal(t) }
func (t *BusTarget) UnmarshalText(b []byte) error { return busTargetTable.unmarshal(t, b) }

// Interrupts is a set of channel interrupt flags, laid out as in CHINTFLAG,
// CHINTENSET and CHINTENCLR.
type Interrupts uint8

// Channel interrupt flags.
const (
	InterruptTransferError    Interrupts = 0x1
	InterruptTransferComplete Interrupts = 0x2
	InterruptSuspend          Interrupts = 0x4

	InterruptNone Interrupts = 0
	InterruptAll             = InterruptTransferError | InterruptTransferComplete | InterruptSuspend
)

var interruptsTable = flagTable[Interrupts]{
	kind: "interrupts",
	bits: []flagBit[Interrupts]{
		{InterruptTransferError, "terr"},
		{InterruptTransferComplete, "tcmpl"},
		{InterruptSuspend, "susp"},
	},
}

// Has reports whether every flag in f is set.
func (i Interrupts) Has(f Interrupts) bool { return i&f == f }

func (i Interrupts) String() string                { return interruptsTable.text(i) }
func (i Interrupts) Valid() bool                   { return interruptsTable.valid(i) }
func (i Interrupts) MarshalText() ([]byte, error)  { return interruptsTable.marshal(i) }
func (i *Interrupts) UnmarshalText(b []byte) error { return interruptsTable.unmarshal(i, b) }

// Status is a set of channel status bits, laid out as in CHSTATUS.
type Status uint8

// Channel status bits. CRC errors are only reported on SAMD5x.
const (
	StatusPending    Status = 0x1
	StatusBusy       Status = 0x2
	StatusFetchError Status = 0x4
	StatusCRCError   Status = 0x8
)

var statusTable = flagTable[Status]{
	kind: "status",
	bits: []flagBit[Status]{
		{StatusPending, "pend"},
		{StatusBusy, "busy"},
		{StatusFetchError, "ferr"},
		{StatusCRCError, "crcerr"},
	},
}

// Has reports whether every bit in f is set.
func (s Status) Has(f Status) bool { return s&f == f }

func (s Status) String() string                { return statusTable.text(s) }
func (s Status) Valid() bool                   { return statusTable.valid(s) }
func (s Status) MarshalText() ([]byte, error)  { return statusTable.marshal(s) }
func (s *Status) UnmarshalText(b []byte) error { return statusTable.unmarshal(s, b) }

// WaitResult is the non-error outcome of polling a channel.
type WaitResult uint8

// Poll outcomes.
const (
	Ongoing WaitResult = iota
	Suspended
	Done
)

var waitResultTable = enumTable[WaitResult]{
	kind: "wait result",
	entries: []enumEntry[WaitResult]{
		{Ongoing, "ongoing"},
		{Suspended, "suspended"},
		{Done, "done"},
	},
}

func (r WaitResult) String() string                { return waitResultTable.text(r) }
func (r WaitResult) Valid() bool                   { return waitResultTable.valid(r) }
func (r WaitResult) MarshalText() ([]byte, error)  { return waitResultTable.marshal(r) }
func (r *WaitResult) UnmarshalText(b []byte) error { return waitResultTable.unmarshal(r, b) }

// Channels is a set of channel IDs, one bit per channel.
type Channels uint32

// ChannelsOf returns the set containing the given IDs.
func ChannelsOf(ids ...uint8) Channels {
	var c Channels
	for _, id := range ids {
		if id < MaxChannels {
			c |= 1 << id
		}
	}
	return c
}

// Has reports whether id is in the set.
func (c Channels) Has(id uint8) bool {
	return id < MaxChannels && c&(1<<id) != 0
}

// Len returns the number of IDs in the set.
func (c Channels) Len() int { return bits.OnesCount32(uint32(c)) }

// IDs returns the IDs in ascending order.
func (c Channels) IDs() []uint8 {
	ids := make([]uint8, 0, c.Len())
	for v := uint32(c); v != 0; v &= v - 1 {
		ids = append(ids, uint8(bits.TrailingZeros32(v)))
	}
	return ids
}

func (c Channels) String() string {
	ids := c.IDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
