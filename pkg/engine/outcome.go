package engine

import (
	"fmt"

	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/rotisserie/eris"
)

type (
	// Transfer records one file that made it to the remote side.
	Transfer struct {
		LocalPath  string
		RemotePath string
		Bytes      int64
	}

	// TransferFailure records one file that did not.
	TransferFailure struct {
		LocalPath  string
		RemotePath string
		Err        error
	}

	// TransferOutcome is the result of one PutFile call. A call can return
	// without error and still carry failures.
	TransferOutcome struct {
		Transfers []Transfer
		Failures  []TransferFailure
	}
)

func (f TransferFailure) Error() string {
	return fmt.Sprintf("%s -> %s: %v", f.LocalPath, f.RemotePath, f.Err)
}

func (o *TransferOutcome) IsSuccess() bool {
	return o != nil && len(o.Failures) == 0
}

// Bytes sums the bytes of all successful transfers.
func (o *TransferOutcome) Bytes() int64 {
	if o == nil {
		return 0
	}
	var n int64
	for _, t := range o.Transfers {
		n += t.Bytes
	}
	return n
}

func (o *TransferOutcome) AddTransfer(t Transfer) {
	o.Transfers = append(o.Transfers, t)
}

func (o *TransferOutcome) AddFailure(f TransferFailure) {
	o.Failures = append(o.Failures, f)
}

// Check escalates failure records to errors.ErrTransferFailed.
func (o *TransferOutcome) Check() error {
	if o == nil {
		return eris.Wrap(errors.ErrTransferFailed, "no outcome returned")
	}
	switch len(o.Failures) {
	case 0:
		return nil
	case 1:
		return eris.Wrap(errors.ErrTransferFailed, o.Failures[0].Error())
	default:
		return eris.Wrapf(errors.ErrTransferFailed, "%d files failed, first: %s", len(o.Failures), o.Failures[0].Error())
	}
}
