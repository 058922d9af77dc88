package dmac

import (
	"testing"
	"time"

	"github.com/ardnew/samdma/dmac/hal"
	"github.com/ardnew/samdma/dmac/hal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMasker struct {
	disabled, restored int
	state              uintptr
}

func (m *countingMasker) Disable() uintptr {
	m.disabled++
	return m.state
}

func (m *countingMasker) Restore(state uintptr) {
	m.restored++
	m.state = state
}

func TestWithCriticalSection(t *testing.T) {
	m := &countingMasker{state: 0xA5}
	var token *CriticalSection

	WithCriticalSection(m, func(cs *CriticalSection) {
		token = cs
		assert.Equal(t, 1, m.disabled)
		assert.Zero(t, m.restored)
		assert.NotPanics(t, func() { cs.check("test") })
	})

	assert.Equal(t, 1, m.restored)
	assert.Equal(t, uintptr(0xA5), m.state)
	assert.Panics(t, func() { token.check("test") })
}

func TestWithCriticalSection_RestoresOnPanic(t *testing.T) {
	m := &countingMasker{}
	assert.Panics(t, func() {
		WithCriticalSection(m, func(*CriticalSection) { panic("boom") })
	})
	assert.Equal(t, 1, m.restored)
}

func TestCriticalSection_ZeroValue(t *testing.T) {
	var cs CriticalSection
	assert.Panics(t, func() { cs.check("test") })
}

func TestWithCriticalSection_Nested(t *testing.T) {
	c, bus := newController(t, hal.SAMD5x, 4)
	var m sim.Masker

	done := make(chan error, 1)
	go func() {
		WithCriticalSection(&m, func(outer *CriticalSection) {
			WithCriticalSection(&m, func(inner *CriticalSection) {
				done <- c.TriggerChannel(inner, 2)
			})
			outer.check("trigger")
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("nested critical section blocked")
	}
	assert.Equal(t, uint32(1<<2), bus.PeekGlobal(hal.SwTrigCtrl))
}
