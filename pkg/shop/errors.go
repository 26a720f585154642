package shop

import (
	"errors"
	"fmt"

	"github.com/rbrabson/chronicles/pkg/store"
)

var (
	ErrValidation        = errors.New("invalid shop item")
	ErrNoApplicablePrice = errors.New("item has no price in the requested currency")
)

// ValidationError names the field of a shop item that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid shop item: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InsufficientFundsError reports the balance and the cost the member could not cover.
type InsufficientFundsError struct {
	Currency store.Currency
	Balance  int64
	Cost     int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient %s balance: have %d, need %d", e.Currency, e.Balance, e.Cost)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == store.ErrInsufficientFunds
}

// OutOfStockError reports an item that can no longer be bought.
type OutOfStockError struct {
	ItemID string
	Stock  int64
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("item %q is out of stock", e.ItemID)
}

func (e *OutOfStockError) Is(target error) bool {
	return target == store.ErrOutOfStock
}
