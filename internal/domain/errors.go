package domain

import "errors"

var (
	ErrNotFound               = errors.New("Listing not found")
	ErrClaimNotFound          = errors.New("Claim not found")
	ErrNotOpen                = errors.New("Listing is not open")
	ErrAuctionClosed          = errors.New("Auction is closed")
	ErrStillRunning           = errors.New("Auction has not ended yet")
	ErrExpired                = errors.New("Listing has expired")
	ErrBidTooLow              = errors.New("Bid must be higher than the current bid")
	ErrInsufficientQuantity   = errors.New("Insufficient quantity remaining")
	ErrRedemptionLimitReached = errors.New("Redemption limit reached")
	ErrNotAssignedToCaller    = errors.New("Job is not assigned to caller")
	ErrNotInProgress          = errors.New("Job is not in progress")
	ErrConflict               = errors.New("Listing was modified concurrently, retry later")
	ErrProfileNotFound        = errors.New("Profile not found")
)

// ValidationError reports malformed input such as an out-of-range coordinate
// or a non-positive amount.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
