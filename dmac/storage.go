package dmac

import (
	"fmt"
	"unsafe"

	"github.com/ardnew/samdma/pkg"
)

// Storage holds the two descriptor arrays the controller registers with the
// engine: first descriptors (BASEADDR) and write-back descriptors (WRBADDR),
// both indexed by channel ID. Implementations must keep both arrays
// contiguous, 16-byte aligned and in place for the life of the controller.
type Storage interface {
	Len() int
	Base(id int) *TransferDescriptor
	WriteBack(id int) *TransferDescriptor
	BaseAddress() Address
	WriteBackAddress() Address
}

// DescriptorStorage is the standard Storage implementation.
type DescriptorStorage struct {
	base []TransferDescriptor
	wb   []TransferDescriptor
}

// NewStorage allocates storage for n channels.
func NewStorage(n int) (*DescriptorStorage, error) {
	if n < 1 || n > MaxChannels {
		return nil, fmt.Errorf("%w: storage for %d channels", pkg.ErrInvalidParameter, n)
	}
	return &DescriptorStorage{
		base: allocDescriptors(n),
		wb:   allocDescriptors(n),
	}, nil
}

// NewUnsafeStorage wraps caller-owned memory, such as a linker section, as
// storage for n channels. base and writeBack must each point at n
// contiguous, 16-byte aligned descriptors that never move. None of this is
// checked.
func NewUnsafeStorage(base, writeBack unsafe.Pointer, n int) *DescriptorStorage {
	return &DescriptorStorage{
		base: unsafe.Slice((*TransferDescriptor)(base), n),
		wb:   unsafe.Slice((*TransferDescriptor)(writeBack), n),
	}
}

// Len returns the number of channels the storage backs.
func (s *DescriptorStorage) Len() int { return len(s.base) }

// Base returns channel id's first descriptor.
func (s *DescriptorStorage) Base(id int) *TransferDescriptor { return &s.base[id] }

// WriteBack returns channel id's write-back descriptor.
func (s *DescriptorStorage) WriteBack(id int) *TransferDescriptor { return &s.wb[id] }

// BaseAddress returns the bus address of the first-descriptor array.
func (s *DescriptorStorage) BaseAddress() Address {
	return AddressOf(unsafe.Pointer(unsafe.SliceData(s.base)))
}

// WriteBackAddress returns the bus address of the write-back array.
func (s *DescriptorStorage) WriteBackAddress() Address {
	return AddressOf(unsafe.Pointer(unsafe.SliceData(s.wb)))
}
