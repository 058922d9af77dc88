//go:build linux

// Package mmap implements [hal.Bus] over a memory mapping of a device file
// on Linux: /dev/mem, a UIO device exposing the DMAC, or an ordinary file
// for testing.
//
// 32-bit accesses use sync/atomic; 8- and 16-bit accesses are single loads
// and stores of that width, so neighbouring registers in the same word are
// never rewritten.
package mmap

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/samdma/dmac/hal"
	"github.com/ardnew/samdma/pkg"
)

// Size is the length of the mapping ForVariant creates: enough for every
// DMAC register on both families.
const Size = 0x400

// Bus is a mapped register block.
type Bus struct {
	mapping []byte
	regs    unsafe.Pointer
	size    uintptr
}

// Open maps size bytes of path starting at physical offset addr. addr need
// not be page aligned.
func Open(path string, addr uintptr, size int) (*Bus, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: mapping size %d", pkg.ErrInvalidParameter, size)
	}
	page, inner := pageAlign(addr, uintptr(unix.Getpagesize()))

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer unix.Close(fd)

	mapping, err := unix.Mmap(fd, int64(page), int(inner)+size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s at 0x%x: %w", path, page, err)
	}

	pkg.LogDebug(pkg.ComponentHAL, "register block mapped",
		"path", path, "addr", fmt.Sprintf("0x%08x", addr), "size", size)
	return &Bus{
		mapping: mapping,
		regs:    unsafe.Pointer(&mapping[inner]),
		size:    uintptr(size),
	}, nil
}

// ForVariant maps the DMAC of the given family from path, typically
// /dev/mem.
func ForVariant(path string, v hal.Variant) (*Bus, error) {
	return Open(path, v.BaseAddress(), Size)
}

// Close unmaps the register block.
func (b *Bus) Close() error {
	if b.mapping == nil {
		return nil
	}
	err := unix.Munmap(b.mapping)
	b.mapping, b.regs = nil, nil
	return err
}

func pageAlign(addr, pageSize uintptr) (page, inner uintptr) {
	page = addr &^ (pageSize - 1)
	return page, addr - page
}

func (b *Bus) at(offset, width uintptr) unsafe.Pointer {
	if b.regs == nil || offset+width > b.size || offset%width != 0 {
		panic(fmt.Sprintf("mmap: bad %d-byte access at 0x%x", width, offset))
	}
	return unsafe.Add(b.regs, offset)
}

func (b *Bus) Load8(offset uintptr) uint8 {
	return *(*uint8)(b.at(offset, 1))
}

func (b *Bus) Load16(offset uintptr) uint16 {
	return *(*uint16)(b.at(offset, 2))
}

func (b *Bus) Load32(offset uintptr) uint32 {
	return atomic.LoadUint32((*uint32)(b.at(offset, 4)))
}

func (b *Bus) Store8(offset uintptr, v uint8) {
	*(*uint8)(b.at(offset, 1)) = v
}

func (b *Bus) Store16(offset uintptr, v uint16) {
	*(*uint16)(b.at(offset, 2)) = v
}

func (b *Bus) Store32(offset uintptr, v uint32) {
	atomic.StoreUint32((*uint32)(b.at(offset, 4)), v)
}

var _ hal.Bus = (*Bus)(nil)
