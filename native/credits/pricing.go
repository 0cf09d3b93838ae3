package credits

import (
	"errors"
	"math/big"
)

var (
	errInvalidRate    = errors.New("credits pricing: conversion rate must be positive")
	errInvalidFlatFee = errors.New("credits pricing: flat fee must not be negative")
)

var two = big.NewInt(2)

// Pricing converts between base-currency amounts and credit units. The
// conversion rate and the flat protocol fee are fixed at construction and
// never change for the lifetime of the engine.
type Pricing struct {
	rate    *big.Int // wei per credit unit
	flatFee *big.Int // wei charged per minted unit when no strategy price applies
}

// NewPricing builds a pricing table. The rate must be strictly positive; the
// flat fee may be zero.
func NewPricing(rate, flatFee *big.Int) (*Pricing, error) {
	if rate == nil || rate.Sign() <= 0 {
		return nil, errInvalidRate
	}
	if flatFee == nil {
		flatFee = big.NewInt(0)
	}
	if flatFee.Sign() < 0 {
		return nil, errInvalidFlatFee
	}
	return &Pricing{rate: new(big.Int).Set(rate), flatFee: new(big.Int).Set(flatFee)}, nil
}

// Rate returns a copy of the wei-per-credit conversion rate.
func (p *Pricing) Rate() *big.Int { return new(big.Int).Set(p.rate) }

// FlatFee returns a copy of the per-unit flat protocol fee.
func (p *Pricing) FlatFee() *big.Int { return new(big.Int).Set(p.flatFee) }

// CreditsToValue returns the base-currency value of the supplied credit
// quantity.
func (p *Pricing) CreditsToValue(quantity *big.Int) *big.Int {
	if quantity == nil || quantity.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(quantity, p.rate)
}

// ValueToCredits converts a base-currency amount into credit units, truncating
// toward zero. Any remainder below one credit is forfeited, never refunded.
func (p *Pricing) ValueToCredits(amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(amount, p.rate)
}

// ProtocolFee returns the flat protocol fee owed for the supplied mint
// quantity.
func (p *Pricing) ProtocolFee(quantity uint64) *big.Int {
	return new(big.Int).Mul(p.flatFee, new(big.Int).SetUint64(quantity))
}

// CostForDelegatedMint computes the credit cost of minting quantity units at
// the supplied strategy price. When no strategy price is configured the flat
// per-unit fee is split evenly between creator revenue and protocol share;
// the split is floor division and the halves are what the caller is charged
// for. When a price is configured the cost is the gross price plus the flat
// protocol fee. The conversion to credits truncates toward zero in both
// branches, which is what keeps the escrow solvent against the credits
// debited.
func (p *Pricing) CostForDelegatedMint(pricePerUnit *big.Int, quantity uint64) (*big.Int, FeeBreakdown) {
	qty := new(big.Int).SetUint64(quantity)
	if pricePerUnit == nil || pricePerUnit.Sign() == 0 {
		creatorPerUnit := new(big.Int).Div(p.flatFee, two)
		protocolPerUnit := new(big.Int).Sub(p.flatFee, creatorPerUnit)
		breakdown := FeeBreakdown{
			CreatorRevenue: new(big.Int).Mul(creatorPerUnit, qty),
			ProtocolShare:  new(big.Int).Mul(protocolPerUnit, qty),
		}
		return p.ValueToCredits(breakdown.Total()), breakdown
	}
	gross := new(big.Int).Mul(pricePerUnit, qty)
	fee := p.ProtocolFee(quantity)
	total := new(big.Int).Add(gross, fee)
	return p.ValueToCredits(total), FeeBreakdown{CreatorRevenue: gross, ProtocolShare: fee}
}
