package dmac

import (
	"fmt"

	"github.com/ardnew/samdma/pkg"
)

// TransactionError is a hardware-reported failure observed by PollStatus.
// It unwraps to pkg.ErrInvalidDescriptor, pkg.ErrTransfer or pkg.ErrCRC.
type TransactionError struct {
	Channel uint8
	Status  pkg.TransactionStatus
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("channel %d: %v", e.Channel, e.Status.Error())
}

func (e *TransactionError) Unwrap() error {
	return e.Status.Error()
}

// classify maps a channel's enable bit, raised flags and status bits to a
// transaction status. On an enabled channel anything but a transfer error
// means the transaction finished.
func classify(enabled bool, flags Interrupts, status Status) pkg.TransactionStatus {
	if enabled {
		if flags&InterruptTransferError != 0 {
			if status&StatusCRCError != 0 {
				return pkg.TransactionCRCError
			}
			return pkg.TransactionTransferError
		}
		return pkg.TransactionDone
	}
	if flags&InterruptSuspend != 0 {
		if status&StatusFetchError != 0 {
			return pkg.TransactionInvalidDescriptor
		}
		return pkg.TransactionSuspended
	}
	return pkg.TransactionOngoing
}

// result splits a transaction status into a poll result and error.
func result(id uint8, s pkg.TransactionStatus) (WaitResult, error) {
	switch s {
	case pkg.TransactionOngoing:
		return Ongoing, nil
	case pkg.TransactionSuspended:
		return Suspended, nil
	case pkg.TransactionDone:
		return Done, nil
	default:
		return Ongoing, &TransactionError{Channel: id, Status: s}
	}
}
