//go:build linux

package mmap

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardnew/samdma/dmac/hal"
	"github.com/ardnew/samdma/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempRegisterFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regs")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
	return path
}

func TestPageAlign(t *testing.T) {
	tests := []struct {
		addr, page, inner uintptr
	}{
		{0x4100A000, 0x4100A000, 0},
		{0x41004800, 0x41004000, 0x800},
		{0x1234, 0x1000, 0x234},
	}
	for _, tt := range tests {
		page, inner := pageAlign(tt.addr, 0x1000)
		assert.Equal(t, tt.page, page)
		assert.Equal(t, tt.inner, inner)
	}
}

func TestBus_ReadWrite(t *testing.T) {
	pageSize := os.Getpagesize()
	path := tempRegisterFile(t, 2*pageSize)

	// an unaligned base exercises the in-page offset
	b, err := Open(path, uintptr(pageSize)+0x800, Size)
	require.NoError(t, err)

	b.Store32(0x34, 0x20001000)
	b.Store16(0x00, 0x0F02)
	b.Store8(0x4E, 0x05)
	assert.Equal(t, uint32(0x20001000), b.Load32(0x34))
	assert.Equal(t, uint16(0x0F02), b.Load16(0x00))
	assert.Equal(t, uint8(0x05), b.Load8(0x4E))

	reg := hal.Register{Offset: 0x3F, Size: hal.Size8}
	reg.Write(b, 7)
	assert.Equal(t, uint32(7), reg.Read(b))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	regs := data[pageSize+0x800:]
	assert.Equal(t, uint32(0x20001000), binary.NativeEndian.Uint32(regs[0x34:]))
	assert.Equal(t, uint16(0x0F02), binary.NativeEndian.Uint16(regs[0x00:]))
	assert.Equal(t, byte(0x05), regs[0x4E])
	assert.Equal(t, byte(7), regs[0x3F])
}

func TestBus_BadAccess(t *testing.T) {
	path := tempRegisterFile(t, os.Getpagesize())
	b, err := Open(path, 0, 0x40)
	require.NoError(t, err)
	defer b.Close()

	assert.Panics(t, func() { b.Load32(0x40) })
	assert.Panics(t, func() { b.Load32(0x2) })
	assert.Panics(t, func() { b.Store16(0x3F, 0) })
	assert.NotPanics(t, func() { b.Load32(0x3C) })
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"), 0, 0x40)
	assert.Error(t, err)

	_, err = Open(tempRegisterFile(t, 16), 0, 0)
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
}
