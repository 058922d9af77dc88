//go:build tinygo

// Package mmio implements [hal.Bus] over the memory-mapped DMAC of the
// running microcontroller, for TinyGo targets.
//
// Accesses use runtime/volatile so the compiler neither caches nor elides
// them, and each access has exactly the width of the register. [Masker]
// implements [hal.InterruptMasker] with runtime/interrupt.
package mmio

import (
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"github.com/ardnew/samdma/dmac/hal"
)

// Bus addresses registers relative to a peripheral base address.
type Bus struct {
	base uintptr
}

// New returns a Bus for the register block at base.
func New(base uintptr) *Bus {
	return &Bus{base: base}
}

// ForVariant returns a Bus for the DMAC of the given family.
func ForVariant(v hal.Variant) *Bus {
	return New(v.BaseAddress())
}

func (b *Bus) reg8(offset uintptr) *volatile.Register8 {
	return (*volatile.Register8)(unsafe.Pointer(b.base + offset))
}

func (b *Bus) reg16(offset uintptr) *volatile.Register16 {
	return (*volatile.Register16)(unsafe.Pointer(b.base + offset))
}

func (b *Bus) reg32(offset uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(b.base + offset))
}

func (b *Bus) Load8(offset uintptr) uint8   { return b.reg8(offset).Get() }
func (b *Bus) Load16(offset uintptr) uint16 { return b.reg16(offset).Get() }
func (b *Bus) Load32(offset uintptr) uint32 { return b.reg32(offset).Get() }

func (b *Bus) Store8(offset uintptr, v uint8)   { b.reg8(offset).Set(v) }
func (b *Bus) Store16(offset uintptr, v uint16) { b.reg16(offset).Set(v) }
func (b *Bus) Store32(offset uintptr, v uint32) { b.reg32(offset).Set(v) }

// Masker masks all maskable interrupts on the current core.
type Masker struct{}

// Disable masks interrupts and returns the previous state.
func (Masker) Disable() uintptr {
	return uintptr(interrupt.Disable())
}

// Restore returns interrupts to a state returned by Disable.
func (Masker) Restore(state uintptr) {
	interrupt.Restore(interrupt.State(state))
}

var (
	_ hal.Bus             = (*Bus)(nil)
	_ hal.InterruptMasker = Masker{}
)
