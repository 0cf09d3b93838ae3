package credits

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	errNilState      = errors.New("credits engine: state not configured")
	errNilPricing    = errors.New("credits engine: pricing not configured")
	errVaultNotSet   = errors.New("credits engine: escrow vault not configured")
	errInvalidAmount = errors.New("credits engine: amount must be positive")
	errNegativeValue = errors.New("credits engine: value must not be negative")

	// ErrMustRequestAtLeastOne rejects zero-quantity purchases and mints.
	ErrMustRequestAtLeastOne = errors.New("credits engine: quantity must be at least one")
	// ErrTargetNotAContract rejects settlement targets that do not resolve to
	// a registered contract collaborator.
	ErrTargetNotAContract = errors.New("credits engine: target is not a registered contract")
	// ErrInvalidRecipient rejects the zero address as a withdrawal recipient.
	ErrInvalidRecipient = errors.New("credits engine: invalid recipient")
	// ErrUnauthorized is returned when the caller lacks the credits admin role.
	ErrUnauthorized = errors.New("credits engine: caller missing admin role")
)

// UnknownAssetError reports a delegated-mint request against an asset the
// issuer does not carry.
type UnknownAssetError struct {
	AssetID uint64
}

func (e *UnknownAssetError) Error() string {
	return fmt.Sprintf("credits engine: unknown asset %d", e.AssetID)
}

// InsufficientCreditsError reports a credit debit that exceeds the caller's
// balance. Both amounts are reported so clients can retry with corrected
// parameters.
type InsufficientCreditsError struct {
	Required  *big.Int
	Available *big.Int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("credits engine: insufficient credits: required %s, available %s", e.Required, e.Available)
}

// InsufficientEscrowError reports a release that exceeds the base currency
// held by the escrow vault.
type InsufficientEscrowError struct {
	Required  *big.Int
	Available *big.Int
}

func (e *InsufficientEscrowError) Error() string {
	return fmt.Sprintf("credits engine: insufficient escrow: required %s, available %s", e.Required, e.Available)
}

// InsufficientValueError reports a purchase paid with less base currency than
// the quoted price.
type InsufficientValueError struct {
	Required  *big.Int
	Available *big.Int
}

func (e *InsufficientValueError) Error() string {
	return fmt.Sprintf("credits engine: insufficient value: required %s, available %s", e.Required, e.Available)
}

// ExternalCallError wraps a failure surfaced by an issuer, strategy or router
// collaborator. The enclosing operation is fully unwound before it is
// returned.
type ExternalCallError struct {
	Target [20]byte
	Err    error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("credits engine: external call to %s failed: %v", hexAddr(e.Target), e.Err)
}

func (e *ExternalCallError) Unwrap() error { return e.Err }
