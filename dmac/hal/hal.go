package hal

// Bus performs sized loads and stores at byte offsets from the DMAC base.
//
// Implementations must not cache values: every call reaches the register
// block, because the hardware changes status and flag registers on its own.
type Bus interface {
	Load8(offset uintptr) uint8
	Load16(offset uintptr) uint16
	Load32(offset uintptr) uint32
	Store8(offset uintptr, value uint8)
	Store16(offset uintptr, value uint16)
	Store32(offset uintptr, value uint32)
}

// InterruptMasker disables and restores interrupts around a critical section.
type InterruptMasker interface {
	// Disable masks interrupts and returns the previous state.
	Disable() uintptr
	// Restore restores the state returned by Disable.
	Restore(state uintptr)
}

// Size is the access width of a register in bits.
type Size uint8

// Register access widths.
const (
	Size8  Size = 8
	Size16 Size = 16
	Size32 Size = 32
)

// Register is a register location relative to the DMAC base.
type Register struct {
	Offset uintptr
	Size   Size
}

// Read loads the register, zero-extended to 32 bits.
func (r Register) Read(b Bus) uint32 {
	switch r.Size {
	case Size8:
		return uint32(b.Load8(r.Offset))
	case Size16:
		return uint32(b.Load16(r.Offset))
	default:
		return b.Load32(r.Offset)
	}
}

// Write stores value truncated to the register width.
func (r Register) Write(b Bus, value uint32) {
	switch r.Size {
	case Size8:
		b.Store8(r.Offset, uint8(value))
	case Size16:
		b.Store16(r.Offset, uint16(value))
	default:
		b.Store32(r.Offset, value)
	}
}

// Modify performs a read-modify-write of the register.
func (r Register) Modify(b Bus, fn func(uint32) uint32) {
	r.Write(b, fn(r.Read(b)))
}

// Field is a contiguous bit range within a register.
type Field struct {
	Register Register
	Shift    uint8
	Width    uint8
}

// Mask returns the unshifted mask of the field.
func (f Field) Mask() uint32 {
	if f.Width >= 32 {
		return ^uint32(0)
	}
	return 1<<f.Width - 1
}

// Extract returns the field value from a raw register value.
func (f Field) Extract(raw uint32) uint32 {
	return (raw >> f.Shift) & f.Mask()
}

// Insert returns raw with the field replaced by value.
func (f Field) Insert(raw, value uint32) uint32 {
	m := f.Mask() << f.Shift
	return raw&^m | (value<<f.Shift)&m
}

// Get reads the field.
func (f Field) Get(b Bus) uint32 {
	return f.Extract(f.Register.Read(b))
}

// Set writes the field with a read-modify-write of its register.
func (f Field) Set(b Bus, value uint32) {
	f.Register.Modify(b, func(raw uint32) uint32 { return f.Insert(raw, value) })
}

// Bit reports whether a single-bit field is set.
func (f Field) Bit(b Bus) bool {
	return f.Get(b) != 0
}

// SetBit writes a single-bit field.
func (f Field) SetBit(b Bus, on bool) {
	var v uint32
	if on {
		v = 1
	}
	f.Set(b, v)
}
