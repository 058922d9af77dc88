package dmac

import "unsafe"

// allocDescriptors returns n zeroed descriptors in 16-byte aligned memory
// that the garbage collector never moves.
func allocDescriptors(n int) []TransferDescriptor {
	buf := make([]byte, n*DescriptorSize+DescriptorAlign-1)
	p := unsafe.Pointer(unsafe.SliceData(buf))
	off := (DescriptorAlign - uintptr(p)%DescriptorAlign) % DescriptorAlign
	return unsafe.Slice((*TransferDescriptor)(unsafe.Add(p, off)), n)
}

func isAligned(p unsafe.Pointer) bool {
	return uintptr(p)%DescriptorAlign == 0
}
