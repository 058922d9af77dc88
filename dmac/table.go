package dmac

import (
	"fmt"
	"unsafe"

	"github.com/ardnew/samdma/pkg"
)

// NoDescriptor is the index returned where a chain has no next descriptor
// in the table.
const NoDescriptor = -1

// DescriptorTable is a fixed-capacity arena of descriptors used to build
// chains beyond each channel's first descriptor. Chains are built by index;
// the table writes the matching bus addresses into the descriptors, so the
// engine walks the same chain the indices describe.
//
// The table never moves or grows, so addresses it hands out stay valid for
// its lifetime.
type DescriptorTable struct {
	desc []TransferDescriptor
	base Address
}

// NewDescriptorTable allocates a table of n descriptors.
func NewDescriptorTable(n int) (*DescriptorTable, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: descriptor table size %d", pkg.ErrInvalidParameter, n)
	}
	desc := allocDescriptors(n)
	return &DescriptorTable{
		desc: desc,
		base: AddressOf(unsafe.Pointer(&desc[0])),
	}, nil
}

// Len returns the table capacity.
func (t *DescriptorTable) Len() int { return len(t.desc) }

// At returns descriptor i. It panics if i is out of range.
func (t *DescriptorTable) At(i int) *TransferDescriptor { return &t.desc[i] }

// Address returns the bus address of descriptor i.
func (t *DescriptorTable) Address(i int) Address {
	return AddressOf(unsafe.Pointer(t.At(i)))
}

// Index maps a bus address back to its table index.
func (t *DescriptorTable) Index(a Address) (int, bool) {
	if a == 0 {
		return NoDescriptor, false
	}
	off := a - t.base // wraps below base, failing the range check
	if off%DescriptorSize != 0 || int(off/DescriptorSize) >= len(t.desc) {
		return NoDescriptor, false
	}
	return int(off / DescriptorSize), true
}

// Link makes to the successor of from. Passing NoDescriptor for to ends the
// chain at from.
func (t *DescriptorTable) Link(from, to int) {
	t.LinkFrom(t.At(from), to)
}

// LinkFrom makes table entry to the successor of d, which may live outside
// the table, typically a channel's first descriptor.
func (t *DescriptorTable) LinkFrom(d *TransferDescriptor, to int) {
	if to == NoDescriptor {
		d.Unlink()
		return
	}
	d.Link(t.Address(to))
}

// Unlink ends the chain at from and returns the index it previously linked
// to, or NoDescriptor if it linked nowhere or outside the table.
func (t *DescriptorTable) Unlink(from int) int {
	i, _ := t.Index(t.At(from).Unlink())
	return i
}

// Next returns the index linked from i, or NoDescriptor.
func (t *DescriptorTable) Next(i int) int {
	n, _ := t.Index(t.At(i).Next())
	return n
}

// Walk visits the chain starting at start in link order, stopping at the end
// of the chain, at a link leaving the table, or when fn returns false. It
// reports whether the chain loops back onto a descriptor already visited.
// A start outside the table, NoDescriptor included, visits nothing.
func (t *DescriptorTable) Walk(start int, fn func(i int, d *TransferDescriptor) bool) (circular bool) {
	if start < 0 || start >= len(t.desc) {
		return false
	}
	seen := make([]bool, len(t.desc))
	for i := start; i != NoDescriptor; i = t.Next(i) {
		if seen[i] {
			return true
		}
		seen[i] = true
		if fn != nil && !fn(i, t.At(i)) {
			return false
		}
	}
	return false
}

// Validate checks every descriptor reachable from start is fetchable: VALID
// set, a defined beat size, and addresses aligned to the beat.
func (t *DescriptorTable) Validate(start int) error {
	var (
		err   error
		count int
	)
	circular := t.Walk(start, func(i int, d *TransferDescriptor) bool {
		err = validateDescriptor(d)
		if err != nil {
			err = fmt.Errorf("descriptor %d: %w", i, err)
			return false
		}
		count++
		return true
	})
	if err != nil {
		pkg.LogDebug(pkg.ComponentDescriptor, "chain rejected", "start", start, "error", err)
		return err
	}
	pkg.LogDebug(pkg.ComponentDescriptor, "chain validated",
		"start", start, "descriptors", count, "circular", circular)
	return nil
}

func validateDescriptor(d *TransferDescriptor) error {
	if !d.IsValid() {
		return fmt.Errorf("%w: valid bit clear", pkg.ErrInvalidDescriptor)
	}
	beat := d.BeatSize()
	if !beat.Valid() {
		return fmt.Errorf("%w: beat size %s", pkg.ErrInvalidDescriptor, beat)
	}
	mask := Address(beat.Bytes() - 1)
	if d.SourceAddress()&mask != 0 || d.DestinationAddress()&mask != 0 {
		return fmt.Errorf("%w: address not aligned to %s beat", pkg.ErrInvalidDescriptor, beat)
	}
	return nil
}
