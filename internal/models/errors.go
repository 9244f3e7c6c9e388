package models

import "errors"

var (
	ErrPriceNotFound      = errors.New("price not found")
	ErrInvalidQuantity    = errors.New("quantity must be greater than zero")
	ErrEmptyTable         = errors.New("table has no order lines")
	ErrDuplicateTable     = errors.New("table number is invalid or already exists")
	ErrTableNotFound      = errors.New("table not found")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrCorruptCatalog     = errors.New("corrupt price catalog")
	ErrInvalidPrice       = errors.New("price must not be negative")
	ErrInvalidTaxRate     = errors.New("tax rate must be within [0, 1)")
	ErrTicketNotFound     = errors.New("ticket not found")
)
