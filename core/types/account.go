package types

import "math/big"

// Account tracks the base-currency position of a single address. Credit units
// themselves live in the external balance ledger collaborator; only the native
// value used to purchase credits, redeem them and pay issuers is kept here.
type Account struct {
	Nonce      uint64   `json:"nonce"`
	BalanceWei *big.Int `json:"balanceWei"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.BalanceWei != nil {
		clone.BalanceWei = new(big.Int).Set(a.BalanceWei)
	}
	return &clone
}
