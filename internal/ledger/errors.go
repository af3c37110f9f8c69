package ledger

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrNotFound                  = errors.New("ledger: not found")
	ErrDayClosed                 = errors.New("ledger: day is closed")
	ErrAlreadyClosed             = errors.New("ledger: day is already closed")
	ErrDayExists                 = errors.New("ledger: day already exists")
	ErrUnresolvablePaymentMethod = errors.New("ledger: payment method cannot be resolved")
	ErrInvalidAmount             = errors.New("ledger: amount must be greater than zero with at most two decimal places")
	ErrInvalidKind               = errors.New("ledger: unknown posting kind")
	ErrMissingSource             = errors.New("ledger: source kind and source id are required")
	ErrInvalidRange              = errors.New("ledger: invalid date range")
	ErrInvalidStatus             = errors.New("ledger: unknown day status")

	// ErrDuplicate is returned by a Store when an insert hits a unique key.
	// The engine resolves it by re-reading the winner's row.
	ErrDuplicate = errors.New("ledger: duplicate key")
)

// HTTPError maps engine errors onto fiber errors. Anything unknown becomes a
// 500 and the caller is expected to log it.
func HTTPError(err error) *fiber.Error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrDayClosed), errors.Is(err, ErrAlreadyClosed), errors.Is(err, ErrDayExists):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidKind), errors.Is(err, ErrMissingSource),
		errors.Is(err, ErrInvalidRange), errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrUnresolvablePaymentMethod):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, "unexpected ledger error")
}
