// Package pkg provides shared utilities for the samdma DMA driver.
//
// This package contains common functionality used by the driver core and
// its HAL backends, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error values for contract and transaction errors
//   - Component identifiers for log filtering
//
// # Logging
//
// Logging is off the register hot path. Ownership and lifecycle events are
// logged at debug level:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogDebug(pkg.ComponentController, "channel taken", "id", 3)
//
// # Errors
//
// Transaction errors reported by the hardware and API misuse are defined as
// sentinel values:
//
//	if errors.Is(err, pkg.ErrTransfer) {
//	    // bus error during a beat transfer
//	}
package pkg
