package dmac

import "github.com/ardnew/samdma/dmac/hal"

// CriticalSection is proof that interrupts which could touch the shared
// command and trigger registers are masked. A token is only valid inside
// the function passed to WithCriticalSection.
type CriticalSection struct {
	active bool
}

// WithCriticalSection masks interrupts with m, calls fn with a token valid
// for the duration of the call, and restores the previous mask.
func WithCriticalSection(m hal.InterruptMasker, fn func(cs *CriticalSection)) {
	state := m.Disable()
	cs := &CriticalSection{active: true}
	defer func() {
		cs.active = false
		m.Restore(state)
	}()
	fn(cs)
}

// check panics unless cs is a live token.
func (cs *CriticalSection) check(op string) {
	if cs == nil || !cs.active {
		panic("dmac: " + op + " outside critical section")
	}
}
