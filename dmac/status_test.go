package dmac

import (
	"errors"
	"testing"

	"github.com/ardnew/samdma/pkg"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		enabled bool
		flags   Interrupts
		status  Status
		want    pkg.TransactionStatus
	}{
		{true, InterruptTransferError, 0, pkg.TransactionTransferError},
		{true, InterruptTransferError, StatusCRCError, pkg.TransactionCRCError},
		{true, InterruptTransferComplete, 0, pkg.TransactionDone},
		{true, InterruptSuspend, 0, pkg.TransactionDone},
		{true, 0, 0, pkg.TransactionDone},
		{false, InterruptSuspend, StatusFetchError, pkg.TransactionInvalidDescriptor},
		{false, InterruptSuspend | InterruptTransferError, 0, pkg.TransactionSuspended},
		{false, InterruptSuspend, 0, pkg.TransactionSuspended},
		{false, InterruptTransferError, 0, pkg.TransactionOngoing},
		{false, 0, StatusFetchError, pkg.TransactionOngoing},
	}
	for _, tt := range tests {
		name := tt.flags.String() + "/" + tt.status.String()
		if tt.enabled {
			name = "enabled/" + name
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.enabled, tt.flags, tt.status))
		})
	}
}

func TestTransactionError(t *testing.T) {
	tests := []struct {
		status pkg.TransactionStatus
		want   error
		text   string
	}{
		{pkg.TransactionInvalidDescriptor, pkg.ErrInvalidDescriptor, "channel 7: invalid descriptor fetched"},
		{pkg.TransactionTransferError, pkg.ErrTransfer, "channel 7: transfer bus error"},
		{pkg.TransactionCRCError, pkg.ErrCRC, "channel 7: CRC error"},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			res, err := result(7, tt.status)
			assert.Equal(t, Ongoing, res)
			assert.True(t, errors.Is(err, tt.want))
			assert.EqualError(t, err, tt.text)
		})
	}

	for status, want := range map[pkg.TransactionStatus]WaitResult{
		pkg.TransactionOngoing:   Ongoing,
		pkg.TransactionSuspended: Suspended,
		pkg.TransactionDone:      Done,
	} {
		res, err := result(0, status)
		assert.NoError(t, err)
		assert.Equal(t, want, res)
	}
}
