package portfolio

import "errors"

// Trade rejections. All are recoverable: the account is left untouched
// and the reason is surfaced to the caller.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoSuchHolding      = errors.New("no such holding")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrInvalidPrice       = errors.New("price must be positive")
	ErrInvalidAmount      = errors.New("amount must be positive")
)
