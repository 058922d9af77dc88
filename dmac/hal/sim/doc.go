// Package sim provides a simulated DMAC register block implementing
// [hal.Bus].
//
// The simulation reproduces the register semantics the driver depends on,
// not the transfer engine itself:
//
//   - CHINTFLAG is write-one-to-clear
//   - CHINTENSET and CHINTENCLR set and clear one shared enable mask
//   - CHCTRLA.SWRST resets the channel, and is ignored while it is enabled
//   - CTRL.SWRST resets the controller, and is ignored while it is enabled
//   - CHID selects the channel bank on indexed families (SAMD21)
//   - INTPEND.ID selects the channel whose flags and status INTPEND reports,
//     and writing flag bits to INTPEND clears them on that channel
//
// Test code plays the part of the hardware with [Bus.Raise],
// [Bus.SetStatus], [Bus.SetEnabled], [Bus.CompleteCommand] and
// [Bus.AcknowledgeTrigger], and inspects state with [Bus.Peek] and
// [Bus.PeekGlobal].
//
// A Bus is safe for concurrent use. [Masker] serializes critical sections
// between goroutines the way masking interrupts serializes them on a
// single core.
package sim
