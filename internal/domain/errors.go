package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrIlliquidPool        = errors.New("pool has no liquidity on the requested side")
	ErrNoRouteAvailable    = errors.New("no pool services the requested pair")
	ErrSlippageExceeded    = errors.New("price moved beyond slippage tolerance")
	ErrConcurrencyConflict = errors.New("concurrent reserve update conflict")
	ErrPersistenceFailure  = errors.New("storage write failed")
	ErrLockHeld            = errors.New("lock already held")
)
