package pkg

import "errors"

// Transaction errors reported by the DMA engine.
var (
	// ErrInvalidDescriptor indicates the engine fetched a descriptor with an
	// invalid encoding while walking a chain.
	ErrInvalidDescriptor = errors.New("invalid descriptor fetched")

	// ErrTransfer indicates a bus error during a beat transfer.
	ErrTransfer = errors.New("transfer bus error")

	// ErrCRC indicates the CRC module detected corrupted data.
	ErrCRC = errors.New("CRC error")
)

// API and contract errors.
var (
	// ErrChannelUnavailable indicates the channel is already taken.
	ErrChannelUnavailable = errors.New("channel unavailable")

	// ErrInvalidChannel indicates a channel ID with no backing descriptor storage.
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidState indicates the object is in the wrong state for the operation.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotSupported indicates the device family lacks the feature.
	ErrNotSupported = errors.New("not supported")

	// ErrStorageSize indicates descriptor storage does not fit the device family.
	ErrStorageSize = errors.New("storage size out of range")

	// ErrInvalidProfile indicates a malformed controller or channel profile.
	ErrInvalidProfile = errors.New("invalid profile")
)

// TransactionStatus is the classification of a channel's interrupt flags
// and status bits.
type TransactionStatus int

// Transaction status values.
const (
	TransactionOngoing           TransactionStatus = iota // No actionable flag yet
	TransactionSuspended                                  // Channel suspended
	TransactionDone                                       // Transaction ended or aborted
	TransactionInvalidDescriptor                          // Fetch error while suspending
	TransactionTransferError                              // Bus error
	TransactionCRCError                                   // CRC mismatch
)

// String returns a string representation of the transaction status.
func (s TransactionStatus) String() string {
	switch s {
	case TransactionOngoing:
		return "ongoing"
	case TransactionSuspended:
		return "suspended"
	case TransactionDone:
		return "done"
	case TransactionInvalidDescriptor:
		return "invalid descriptor"
	case TransactionTransferError:
		return "transfer error"
	case TransactionCRCError:
		return "crc error"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the transaction status, or nil
// if the status is not an error.
func (s TransactionStatus) Error() error {
	switch s {
	case TransactionOngoing, TransactionSuspended, TransactionDone:
		return nil
	case TransactionInvalidDescriptor:
		return ErrInvalidDescriptor
	case TransactionTransferError:
		return ErrTransfer
	case TransactionCRCError:
		return ErrCRC
	default:
		return ErrInvalidState
	}
}
