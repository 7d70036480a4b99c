package models

import "errors"

// Sentinel errors for the trading core. The handler layer maps these
// to HTTP status codes.
var (
	ErrProviderUnavailable    = errors.New("quote provider unavailable")
	ErrSymbolNotFound         = errors.New("symbol not found")
	ErrLimitNotMet            = errors.New("limit price not met")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInsufficientShares     = errors.New("insufficient shares")
	ErrNoSuchHolding          = errors.New("no holding for symbol")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrUserNotFound           = errors.New("user not found")
	ErrEmailTaken             = errors.New("email already registered")
	ErrTransactionNotFound    = errors.New("transaction not found")
)

// ValidationError reports a malformed request. The handler layer maps
// it to a 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

