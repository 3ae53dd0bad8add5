package catalog

import (
	"errors"
	"fmt"
)

// Errors returned by Service. Match them with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("not the owner of this listing")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrStorage      = errors.New("storage failure")

	ErrListingNotFound = fmt.Errorf("listing %w", ErrNotFound)
	ErrImageNotFound   = fmt.Errorf("image %w", ErrNotFound)
)

// InvalidInputError describes why a request was rejected.
// errors.Is(err, ErrInvalidInput) holds for every InvalidInputError.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return e.Reason }

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

func invalidInput(reason string) error {
	return &InvalidInputError{Reason: reason}
}

// Validation reasons.
const (
	ReasonItemNameRequired = "item name required"
	ReasonInvalidKind      = "invalid listing kind"
	ReasonPriceRequired    = "price required for sale"
	ReasonUnknownCategory  = "unknown category"
	ReasonInvalidID        = "invalid listing id"
	ReasonInvalidStatus    = "invalid status"
	ReasonInvalidUsage     = "invalid usage status"
	ReasonUnknownUser      = "unknown user"
	ReasonNoImages         = "at least one image url required"
)

// storageError wraps a collaborator failure so that it matches ErrStorage
// while keeping the cause for logs.
func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
