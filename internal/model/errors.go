package model

import (
	"errors"
	"fmt"
	"time"
)

// Common errors used across the application
var (
	ErrInvalidAddress = errors.New("invalid wallet address")

	// Player errors
	ErrPlayerNotFound    = errors.New("player not found")
	ErrAlreadyRegistered = errors.New("player is already registered")
	ErrNotRegistered     = errors.New("player is not registered")
	ErrCooldownActive    = errors.New("check-in cooldown has not elapsed")
	ErrLevelUpNotReady   = errors.New("level up requirements not met")

	// Element errors
	ErrElementNotFound    = errors.New("element not found")
	ErrElementNotOwned    = errors.New("element is not owned by player")
	ErrInvalidFusionCount = errors.New("fusion requires exactly three distinct elements")
	ErrFusionMismatch     = errors.New("fusion elements must share type and level")
	ErrMaxLevel           = errors.New("element is already at the maximum level")

	// Transaction errors
	ErrTxNotFound = errors.New("transaction not found")
	ErrTxReverted = errors.New("transaction reverted")
	ErrNoSigner   = errors.New("no signer configured for address")

	// Quote errors
	ErrQuoteNotFound          = errors.New("quote not found")
	ErrInvalidQuote           = errors.New("invalid quote")
	ErrInvalidQuoteTransition = errors.New("quote status transition not allowed")
	ErrNotAdmin               = errors.New("administrator access required")
)

// CooldownError reports an early check-in together with the remaining wait.
// errors.Is(err, ErrCooldownActive) holds for any CooldownError.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %d hours remaining", ErrCooldownActive.Error(), e.HoursRemaining())
}

// Is matches ErrCooldownActive
func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

// HoursRemaining rounds the remaining wait up to whole hours
func (e *CooldownError) HoursRemaining() int64 {
	if e.Remaining <= 0 {
		return 0
	}
	secs := int64((e.Remaining + time.Second - 1) / time.Second)
	return (secs + 3599) / 3600
}

// RevertError is a contract-level failure of a mined transaction. Cause is
// the domain error matching Reason, if one is known.
type RevertError struct {
	Method TxMethod
	Reason string
	Cause  error
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("%s reverted: %s", e.Method, e.Reason)
}

// Unwrap exposes ErrTxReverted and Cause
func (e *RevertError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTxReverted}
	}
	return []error{ErrTxReverted, e.Cause}
}
