package lease

import "errors"

var (
	ErrItemLeased     = errors.New("lease: item leased")
	ErrLeaseNotActive = errors.New("lease: lease not active")
	ErrHolderIsOwner  = errors.New("lease: holder is item owner")
	ErrZeroDuration   = errors.New("lease: zero duration")
	ErrZeroAmount     = errors.New("lease: zero amount")
)
