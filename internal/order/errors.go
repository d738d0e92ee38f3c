package order

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/tableside/internal/models"
)

var (
	// ErrInvalidRequest is the root of every rejection caused by caller input.
	ErrInvalidRequest = errors.New("invalid request")
	ErrCannotCancel   = fmt.Errorf("%w: order cannot be cancelled in its current status", ErrInvalidRequest)
	ErrConflict       = errors.New("order was modified by another request")
)

// InvalidReferenceError identifies the cart reference that failed validation.
type InvalidReferenceError struct {
	Kind   string // menu_item, variant or modifier
	ID     uuid.UUID
	Reason string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s", e.Kind, e.ID, e.Reason)
}

func (e *InvalidReferenceError) Unwrap() error {
	return ErrInvalidRequest
}

// TransitionError is returned when a status change is not allowed.
type TransitionError struct {
	From   models.OrderStatus
	To     models.OrderStatus
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s: %s", e.From, e.To, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidRequest
}
