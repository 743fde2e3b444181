package executor

import "errors"

var (
	// ErrTransientRPC wraps node failures that are expected to clear on retry.
	ErrTransientRPC = errors.New("transient rpc error")
	// ErrReceiptNotFound means the node has no receipt for the send transaction.
	// The packet is recorded as unpaid rather than failing the scan.
	ErrReceiptNotFound = errors.New("receipt not found")
	// ErrSubmission wraps failures to get an lzReceive transaction mined successfully.
	ErrSubmission = errors.New("lzReceive submission failed")
)
