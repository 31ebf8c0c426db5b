package auction

import "errors"

// Rejection reasons for auction operations. Every error aborts the whole
// operation as a unit; callers never observe partial effects.
var (
	ErrInvalidShard             = errors.New("invalid shard ID")
	ErrShardMismatch            = errors.New("shard mismatch")
	ErrPoolFull                 = errors.New("shard pool is full")
	ErrAlreadyRepaid            = errors.New("loan already repaid")
	ErrPartialMatchNotAllowed   = errors.New("partial match not allowed")
	ErrUnsupportedAsset         = errors.New("unsupported asset")
	ErrUnsupportedCollateral    = errors.New("unsupported collateral asset")
	ErrInvalidRepaymentAsset    = errors.New("invalid repayment asset")
	ErrLoanNotUnhealthy         = errors.New("loan is not unhealthy")
	ErrInsufficientCollateral   = errors.New("insufficient collateral for healthy loan")
	ErrInvalidDuration          = errors.New("invalid loan duration")
	ErrInvalidRate              = errors.New("rate outside 0-100 scale")
	ErrUnauthorized             = errors.New("unauthorized access")
	ErrInsufficientFunds        = errors.New("insufficient funds in fee vault")
	ErrOverflow                 = errors.New("arithmetic overflow")
	ErrInvalidShardCount        = errors.New("invalid shard count")
	ErrNoSupportedAssets        = errors.New("no supported assets provided")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidCollateral        = errors.New("invalid collateral amount")
	ErrInvalidLoanIndex         = errors.New("invalid loan index")
	ErrInsufficientSwapProceeds = errors.New("insufficient swap proceeds")
	ErrNotInitialized           = errors.New("auction not initialized")
	ErrAlreadyInitialized       = errors.New("auction already initialized")
	ErrDuplicateCommand         = errors.New("duplicate command")
)
