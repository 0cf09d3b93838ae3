package credits

import (
	"errors"
	"math/big"
)

// Escrow accounting. The vault account holds every wei the engine custodies:
// purchases deposit into it, redemptions and delegated-mint payments release
// from it, and operators may withdraw surplus. No release ever drives the
// vault negative; the check happens before the debit.

// EscrowBalance returns the base currency currently held by the vault.
func (e *Engine) EscrowBalance() (*big.Int, error) {
	if err := e.ensureReady(); err != nil {
		return nil, err
	}
	acc, err := e.state.GetAccount(e.vault[:])
	if err != nil {
		return nil, err
	}
	return cloneBigInt(ensureAccount(acc).BalanceWei), nil
}

// requireEscrow fails with InsufficientEscrowError when the vault holds less
// than the supplied amount. Every release path checks through here.
func (e *Engine) requireEscrow(amount *big.Int) error {
	held, err := e.EscrowBalance()
	if err != nil {
		return err
	}
	if held.Cmp(amount) < 0 {
		return &InsufficientEscrowError{Required: cloneBigInt(amount), Available: held}
	}
	return nil
}

// CanRelease reports whether the vault holds at least the supplied amount.
func (e *Engine) CanRelease(amount *big.Int) (bool, error) {
	err := e.requireEscrow(cloneBigInt(amount))
	var short *InsufficientEscrowError
	if errors.As(err, &short) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AdminWithdraw releases surplus escrow to the recipient. The caller must
// hold the credits admin role and the recipient must not be the zero address.
// No solvency check against outstanding credit balances is performed;
// operators are trusted to self-limit.
func (e *Engine) AdminWithdraw(caller, recipient [20]byte, amount *big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.ensureReady(); err != nil {
		return err
	}
	if isZeroAddress(recipient) {
		return ErrInvalidRecipient
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return errInvalidAmount
	}
	if err := e.requireEscrow(amt); err != nil {
		return err
	}
	if err := e.transferValue(e.vault, recipient, amt); err != nil {
		return err
	}
	e.emit(EscrowWithdrawnEvent(hexAddr(caller), hexAddr(recipient), amt.String()))
	return nil
}
