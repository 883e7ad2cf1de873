package feesplit

import "errors"

var (
	ErrInvalidFeeTable = errors.New("feesplit: invalid fee table")
	ErrInvalidPricing  = errors.New("feesplit: invalid pricing config")
	ErrZeroAmount      = errors.New("feesplit: zero amount")
	ErrNoPlatform      = errors.New("feesplit: platform identity not configured")
)
