package credits

import "math/big"

// CreditUnitID is the balance-ledger unit identifier under which credit units
// are tracked for every account.
const CreditUnitID uint64 = 1

// SettlementRequest captures one delegated-mint request. Instances live on the
// stack of a single settlement call and are never retained across calls.
type SettlementRequest struct {
	Caller    [20]byte
	Issuer    [20]byte
	AssetID   uint64
	Quantity  uint64
	Recipient [20]byte
	Referrer  [20]byte
}

// PricingQuote is the price surface returned by a strategy for a delegated
// mint. It is consumed to derive the credit cost and then discarded.
type PricingQuote struct {
	PricePerUnit *big.Int
	Quantity     uint64
}

// AssetInfo describes a mintable asset in an issuer's catalog.
type AssetInfo struct {
	Exists      bool
	MaxSupply   uint64
	TotalIssued uint64
}

// FeeBreakdown reports how the value charged for a delegated mint divides
// between the asset creator and the protocol.
type FeeBreakdown struct {
	CreatorRevenue *big.Int
	ProtocolShare  *big.Int
}

// Total returns the combined value of both shares.
func (f FeeBreakdown) Total() *big.Int {
	total := big.NewInt(0)
	if f.CreatorRevenue != nil {
		total.Add(total, f.CreatorRevenue)
	}
	if f.ProtocolShare != nil {
		total.Add(total, f.ProtocolShare)
	}
	return total
}

// Receipt records a completed settlement. The identifier is the keccak256
// hash of the caller, issuer, asset and a per-engine sequence number.
type Receipt struct {
	ID          [32]byte `json:"id"`
	Caller      [20]byte `json:"caller"`
	Issuer      [20]byte `json:"issuer"`
	AssetID     uint64   `json:"assetId"`
	Recipient   [20]byte `json:"recipient"`
	Referrer    [20]byte `json:"referrer"`
	Quantity    uint64   `json:"quantity"`
	CreditsCost *big.Int `json:"creditsCost"`
	ValueCost   *big.Int `json:"valueCost"`
	SettledAt   int64    `json:"settledAt"`
}

// Clone returns a deep copy of the receipt so callers can safely mutate it.
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}
	clone := *r
	if r.CreditsCost != nil {
		clone.CreditsCost = new(big.Int).Set(r.CreditsCost)
	}
	if r.ValueCost != nil {
		clone.ValueCost = new(big.Int).Set(r.ValueCost)
	}
	return &clone
}
