package domain

import "errors"

var (
	ErrNotFound                 = errors.New("not found")
	ErrAlreadyExists            = errors.New("already exists")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrLockHeld                 = errors.New("lock already held")
	ErrInvalidEventID           = errors.New("invalid event id")
	ErrInvalidBet               = errors.New("invalid bet")
	ErrUnresolvableMarket       = errors.New("unresolvable market")
	ErrInsufficientParticipants = errors.New("insufficient participants")
	ErrTieExhausted             = errors.New("tie break exhausted")
	ErrEventVoided              = errors.New("event voided")
	ErrEventNotFinal            = errors.New("event not final")
	ErrAlreadySettled           = errors.New("already settled")
	ErrMarketLocked             = errors.New("market locked")
	ErrCorrelatedSelection      = errors.New("correlated selection")
	ErrStaleWrite               = errors.New("stale write")
)
