// Package hal defines the hardware abstraction consumed by the DMA driver.
//
// The driver never dereferences peripheral addresses itself. It reads and
// writes registers through a [Bus], and it learns where each register and
// bit field lives from a [Variant]. The two layers are independent:
//
//   - A Bus is a backend: memory-mapped I/O on the target ([mmio]), a mapped
//     device file on Linux ([mmap]), or a simulated register block ([sim]).
//   - A Variant is a device family: [SAMD5x] (SAMD51/SAME5x, one register
//     bank per channel) or [SAMD21] (one bank multiplexed through CHID).
//
// # Register Access
//
// [Register] and [Field] describe a location and perform read-modify-write
// through a Bus:
//
//	ctrl, _ := v.Global(hal.Ctrl)
//	hal.Field{Register: ctrl, Shift: 1, Width: 1}.Set(bus, 1)
//
// # Indexed Families
//
// On families whose channel registers share one address window,
// [SelectChannel] writes the channel index register before returning the
// register. The write and the following access are not atomic; callers
// accessing channels from several execution contexts must serialize.
//
// # Interrupt Masking
//
// An [InterruptMasker] disables interrupts for the duration of a critical
// section. Backends provide one suited to their platform.
//
// [mmio]: github.com/ardnew/samdma/dmac/hal/mmio
// [mmap]: github.com/ardnew/samdma/dmac/hal/mmap
// [sim]: github.com/ardnew/samdma/dmac/hal/sim
package hal
