package domain

import "errors"

// Every operation checks its preconditions before touching any state and
// aborts whole on the first violation, returning one of these sentinels
// (possibly wrapped with context). Callers resolve the kind with errors.Is.
var (
	// ErrNotFound indicates an unknown token or item identifier.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPrice indicates a non-positive listing price.
	ErrInvalidPrice = errors.New("price must be positive")

	// ErrInvalidAmount indicates a negative listing-fee configuration.
	ErrInvalidAmount = errors.New("amount must not be negative")

	// ErrInvalidPayment indicates a payment that does not exactly match
	// the required amount.
	ErrInvalidPayment = errors.New("payment does not match required amount")

	// ErrNotTokenOwner indicates the caller does not hold the token it is
	// trying to list.
	ErrNotTokenOwner = errors.New("caller does not hold token")

	// ErrNotHolder indicates a transfer whose source is not the current
	// holder. Transfers are issued only by the ledger itself, so hitting
	// this outside a test means a custody bug.
	ErrNotHolder = errors.New("transfer source is not the holder")

	// ErrItemAlreadySold indicates a sale attempted on a settled item.
	ErrItemAlreadySold = errors.New("market item already sold")

	// ErrUnauthorized indicates a non-owner attempting owner-only
	// configuration.
	ErrUnauthorized = errors.New("caller is not the ledger owner")

	// ErrEmptyURI indicates a mint attempt without token metadata.
	ErrEmptyURI = errors.New("token URI must not be empty")
)
