package credits

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Coop-Records/CoopCreditsProtocol/core/events"
	"github.com/Coop-Records/CoopCreditsProtocol/core/types"
	nativecommon "github.com/Coop-Records/CoopCreditsProtocol/native/common"
)

const (
	roleCreditsAdmin = "ROLE_CREDITS_ADMIN"
	moduleName       = "credits"

	// swapFeeCredits is the fixed fee charged for forwarding an opaque swap
	// payload to the configured router.
	swapFeeCredits = 1
)

type engineState interface {
	// Balance ledger collaborator surface. Unit balances, accounts, receipts
	// and quota counters must all be covered by Snapshot so a reverted
	// operation unwinds every write it made.
	UnitBalanceOf(addr [20]byte, unitID uint64) (*big.Int, error)
	CreditUnits(addr [20]byte, unitID uint64, amount *big.Int) error
	DebitUnits(addr [20]byte, unitID uint64, amount *big.Int) error

	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error

	HasRole(role string, addr []byte) bool

	CreditsReceiptPut(receipt *Receipt) error
	CreditsReceiptGet(id [32]byte) (*Receipt, bool, error)
	CreditsQuotaGet(addr [20]byte) (nativecommon.QuotaNow, bool, error)
	CreditsQuotaPut(addr [20]byte, snapshot nativecommon.QuotaNow) error

	Snapshot() int
	RevertToSnapshot(revision int)
}

// MetricsSink receives engine activity counters. The observability package
// provides a prometheus-backed implementation.
type MetricsSink interface {
	ObservePurchase(outcome string)
	ObserveRedemption(outcome string)
	ObserveSettlement(outcome string, seconds float64)
}

// Metric outcome labels.
const (
	OutcomeOK                = "ok"
	OutcomeValidationFailed  = "validation_failed"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeExternalFailure   = "external_failure"
)

// Engine wires the credit ledger and settlement business logic with external
// state, collaborator resolution and event emission.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	registry ContractRegistry
	pauses   nativecommon.PauseView
	metrics  MetricsSink
	pricing  *Pricing
	nowFn    func() int64

	vault         [20]byte
	strategyRef   [20]byte
	routerRef     [20]byte
	metadataURI   string
	purchaseQuota nativecommon.Quota

	receiptSeq uint64
}

// NewEngine constructs a credits engine with a no-op emitter and the supplied
// pricing table. Callers wire the remaining collaborators via the setters.
func NewEngine(pricing *Pricing) *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		pricing: pricing,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the resolver used to locate issuer, strategy and
// router contracts.
func (e *Engine) SetRegistry(registry ContractRegistry) { e.registry = registry }

// SetPauses configures the pause view consulted before every operation.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetMetrics configures the metrics sink. Passing nil disables recording.
func (e *Engine) SetMetrics(m MetricsSink) { e.metrics = m }

// SetEscrowVault configures the account holding the engine's base currency.
func (e *Engine) SetEscrowVault(addr [20]byte) { e.vault = addr }

// SetPurchaseQuota configures optional per-address purchase throttling.
func (e *Engine) SetPurchaseQuota(q nativecommon.Quota) { e.purchaseQuota = q }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) observePurchase(outcome string) {
	if e != nil && e.metrics != nil {
		e.metrics.ObservePurchase(outcome)
	}
}

func (e *Engine) observeRedemption(outcome string) {
	if e != nil && e.metrics != nil {
		e.metrics.ObserveRedemption(outcome)
	}
}

func (e *Engine) observeSettlement(outcome string, started int64) {
	if e != nil && e.metrics != nil {
		e.metrics.ObserveSettlement(outcome, float64(e.now()-started))
	}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{BalanceWei: big.NewInt(0)}
	}
	if acc.BalanceWei == nil {
		acc.BalanceWei = big.NewInt(0)
	}
	return acc
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func hexHash(h [32]byte) string {
	return hex.EncodeToString(h[:])
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func (e *Engine) ensureReady() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.pricing == nil {
		return errNilPricing
	}
	if isZeroAddress(e.vault) {
		return errVaultNotSet
	}
	return nil
}

// transferValue moves base currency between two accounts, failing when the
// source balance is insufficient.
func (e *Engine) transferValue(from, to [20]byte, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return errNegativeValue
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.BalanceWei.Cmp(amt) < 0 {
		return &InsufficientValueError{Required: amt, Available: cloneBigInt(fromAcc.BalanceWei)}
	}
	fromAcc.BalanceWei = new(big.Int).Sub(fromAcc.BalanceWei, amt)
	toAcc.BalanceWei = new(big.Int).Add(toAcc.BalanceWei, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

func (e *Engine) creditBalance(addr [20]byte) (*big.Int, error) {
	bal, err := e.state.UnitBalanceOf(addr, CreditUnitID)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(bal), nil
}

func (e *Engine) checkPurchaseQuota(buyer [20]byte, spentWei *big.Int) error {
	if !e.purchaseQuota.Enabled() {
		return nil
	}
	epochSeconds := int64(e.purchaseQuota.EpochSeconds)
	if epochSeconds <= 0 {
		epochSeconds = 60
	}
	epoch := uint64(e.now() / epochSeconds)
	prev, _, err := e.state.CreditsQuotaGet(buyer)
	if err != nil {
		return err
	}
	addWei := uint64(math.MaxUint64)
	if spentWei.IsUint64() {
		addWei = spentWei.Uint64()
	}
	next, err := nativecommon.CheckQuota(e.purchaseQuota, epoch, prev, 1, addWei)
	if err != nil {
		return err
	}
	return e.state.CreditsQuotaPut(buyer, next)
}

// Purchase converts the supplied base-currency value into credit units for
// the account at the fixed conversion rate. The payer funds the purchase; any
// value beyond the exact price of the requested quantity is refunded to the
// payer immediately. The refunded amount is returned.
func (e *Engine) Purchase(payer, account [20]byte, quantity uint64, value *big.Int) (*big.Int, error) {
	if err := e.ensureReady(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if quantity == 0 {
		e.observePurchase(OutcomeValidationFailed)
		return nil, ErrMustRequestAtLeastOne
	}
	paid := cloneBigInt(value)
	if paid.Sign() < 0 {
		e.observePurchase(OutcomeValidationFailed)
		return nil, errNegativeValue
	}
	qty := new(big.Int).SetUint64(quantity)
	price := e.pricing.CreditsToValue(qty)
	if paid.Cmp(price) < 0 {
		e.observePurchase(OutcomeInsufficientFunds)
		return nil, &InsufficientValueError{Required: price, Available: paid}
	}
	snapshot := e.state.Snapshot()
	if err := e.checkPurchaseQuota(payer, price); err != nil {
		e.state.RevertToSnapshot(snapshot)
		e.observePurchase(OutcomeValidationFailed)
		return nil, err
	}
	if err := e.transferValue(payer, e.vault, paid); err != nil {
		e.state.RevertToSnapshot(snapshot)
		e.observePurchase(OutcomeInsufficientFunds)
		return nil, err
	}
	refund := new(big.Int).Sub(paid, price)
	if refund.Sign() > 0 {
		if err := e.transferValue(e.vault, payer, refund); err != nil {
			e.state.RevertToSnapshot(snapshot)
			return nil, err
		}
	}
	if err := e.state.CreditUnits(account, CreditUnitID, qty); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return nil, err
	}
	if refund.Sign() > 0 {
		e.emit(PurchaseRefundedEvent(hexAddr(payer), refund.String()))
	}
	e.emit(CreditsPurchasedEvent(hexAddr(payer), hexAddr(account), quantity, price.String()))
	e.observePurchase(OutcomeOK)
	return refund, nil
}

// Redeem burns the caller's credit units and releases the equivalent base
// currency from the escrow vault back to the caller. The released value is
// returned.
func (e *Engine) Redeem(caller [20]byte, quantity uint64) (*big.Int, error) {
	if err := e.ensureReady(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if quantity == 0 {
		e.observeRedemption(OutcomeValidationFailed)
		return nil, ErrMustRequestAtLeastOne
	}
	qty := new(big.Int).SetUint64(quantity)
	value := e.pricing.CreditsToValue(qty)
	if err := e.requireEscrow(value); err != nil {
		var short *InsufficientEscrowError
		if errors.As(err, &short) {
			e.observeRedemption(OutcomeInsufficientFunds)
		}
		return nil, err
	}
	balance, err := e.creditBalance(caller)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(qty) < 0 {
		e.observeRedemption(OutcomeInsufficientFunds)
		return nil, &InsufficientCreditsError{Required: qty, Available: balance}
	}
	snapshot := e.state.Snapshot()
	if err := e.state.DebitUnits(caller, CreditUnitID, qty); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return nil, err
	}
	if err := e.transferValue(e.vault, caller, value); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return nil, err
	}
	e.emit(CreditsRedeemedEvent(hexAddr(caller), quantity, value.String()))
	e.observeRedemption(OutcomeOK)
	return value, nil
}

// SettleDelegatedMint spends the caller's credits to mint assets on an
// external issuer. The credit debit, the escrow payment and the issuer call
// form one indivisible unit of work: any downstream failure unwinds the whole
// settlement through a state snapshot.
func (e *Engine) SettleDelegatedMint(caller [20]byte, issuerAddr [20]byte, assetID uint64, quantity uint64, recipient [20]byte, referrer [20]byte) (*Receipt, error) {
	if err := e.ensureReady(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	started := e.now()
	// Per-call context lives on this stack frame only; nothing is shared
	// between two settlements, even back-to-back ones.
	req := SettlementRequest{
		Caller:    caller,
		Issuer:    issuerAddr,
		AssetID:   assetID,
		Quantity:  quantity,
		Recipient: recipient,
		Referrer:  referrer,
	}
	if req.Quantity == 0 {
		e.observeSettlement(OutcomeValidationFailed, started)
		return nil, ErrMustRequestAtLeastOne
	}
	if e.registry == nil {
		e.observeSettlement(OutcomeValidationFailed, started)
		return nil, ErrTargetNotAContract
	}
	issuer, ok := e.registry.IssuerAt(req.Issuer)
	if !ok {
		e.observeSettlement(OutcomeValidationFailed, started)
		return nil, ErrTargetNotAContract
	}
	info, err := issuer.AssetInfo(req.AssetID)
	if err != nil {
		e.observeSettlement(OutcomeExternalFailure, started)
		return nil, &ExternalCallError{Target: req.Issuer, Err: err}
	}
	if !info.Exists {
		e.observeSettlement(OutcomeValidationFailed, started)
		return nil, &UnknownAssetError{AssetID: req.AssetID}
	}

	pricePerUnit := big.NewInt(0)
	if !isZeroAddress(e.strategyRef) {
		strategy, ok := e.registry.StrategyAt(e.strategyRef)
		if !ok {
			e.observeSettlement(OutcomeValidationFailed, started)
			return nil, ErrTargetNotAContract
		}
		quote, err := strategy.PriceQuote(req.Issuer, req.AssetID, req.Quantity)
		if err != nil {
			e.observeSettlement(OutcomeExternalFailure, started)
			return nil, &ExternalCallError{Target: e.strategyRef, Err: err}
		}
		if quote.PricePerUnit != nil {
			pricePerUnit = quote.PricePerUnit
		}
	}
	creditsCost, _ := e.pricing.CostForDelegatedMint(pricePerUnit, req.Quantity)

	balance, err := e.creditBalance(req.Caller)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(creditsCost) < 0 {
		e.observeSettlement(OutcomeInsufficientFunds, started)
		return nil, &InsufficientCreditsError{Required: creditsCost, Available: balance}
	}
	valueCost := e.pricing.CreditsToValue(creditsCost)
	if err := e.requireEscrow(valueCost); err != nil {
		var short *InsufficientEscrowError
		if errors.As(err, &short) {
			e.observeSettlement(OutcomeInsufficientFunds, started)
		}
		return nil, err
	}

	snapshot := e.state.Snapshot()
	if err := e.state.DebitUnits(req.Caller, CreditUnitID, creditsCost); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return nil, err
	}
	if err := e.transferValue(e.vault, req.Issuer, valueCost); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return nil, err
	}
	var referrers [][20]byte
	if !isZeroAddress(req.Referrer) {
		referrers = [][20]byte{req.Referrer}
	}
	if err := issuer.Mint(e.strategyRef, req.AssetID, req.Quantity, referrers, nil, valueCost); err != nil {
		e.state.RevertToSnapshot(snapshot)
		e.observeSettlement(OutcomeExternalFailure, started)
		return nil, &ExternalCallError{Target: req.Issuer, Err: err}
	}

	e.receiptSeq++
	receipt := &Receipt{
		ID:          e.receiptID(req.Caller, req.Issuer, req.AssetID, e.receiptSeq),
		Caller:      req.Caller,
		Issuer:      req.Issuer,
		AssetID:     req.AssetID,
		Recipient:   req.Recipient,
		Referrer:    req.Referrer,
		Quantity:    req.Quantity,
		CreditsCost: creditsCost,
		ValueCost:   valueCost,
		SettledAt:   e.now(),
	}
	if err := e.state.CreditsReceiptPut(receipt); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return nil, err
	}
	e.emit(MintSettledEvent(receipt))
	e.observeSettlement(OutcomeOK, started)
	return receipt.Clone(), nil
}

// BuyDelegatedSwap pays the fixed one-credit fee and forwards an opaque
// instruction payload to the configured router with the attached value. The
// fee debit and the router call unwind together on failure.
func (e *Engine) BuyDelegatedSwap(caller [20]byte, commands []byte, inputs []byte, value *big.Int) error {
	if err := e.ensureReady(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if isZeroAddress(e.routerRef) || e.registry == nil {
		return ErrTargetNotAContract
	}
	router, ok := e.registry.RouterAt(e.routerRef)
	if !ok {
		return ErrTargetNotAContract
	}
	attached := cloneBigInt(value)
	if attached.Sign() < 0 {
		return errNegativeValue
	}
	fee := big.NewInt(swapFeeCredits)
	balance, err := e.creditBalance(caller)
	if err != nil {
		return err
	}
	if balance.Cmp(fee) < 0 {
		return &InsufficientCreditsError{Required: fee, Available: balance}
	}
	snapshot := e.state.Snapshot()
	if err := e.state.DebitUnits(caller, CreditUnitID, fee); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	if attached.Sign() > 0 {
		if err := e.transferValue(caller, e.routerRef, attached); err != nil {
			e.state.RevertToSnapshot(snapshot)
			return err
		}
	}
	if err := router.Execute(commands, inputs, attached); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return &ExternalCallError{Target: e.routerRef, Err: err}
	}
	e.emit(SwapExecutedEvent(hexAddr(caller), hexAddr(e.routerRef), attached.String()))
	return nil
}

// Receipt returns the stored settlement receipt for the supplied identifier.
func (e *Engine) Receipt(id [32]byte) (*Receipt, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	receipt, ok, err := e.state.CreditsReceiptGet(id)
	if err != nil || !ok {
		return nil, ok, err
	}
	return receipt.Clone(), true, nil
}

func (e *Engine) receiptID(caller, issuer [20]byte, assetID uint64, seq uint64) [32]byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], assetID)
	binary.BigEndian.PutUint64(buf[8:], seq)
	return ethcrypto.Keccak256Hash(caller[:], issuer[:], buf[:])
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.state.HasRole(roleCreditsAdmin, caller[:]) {
		return ErrUnauthorized
	}
	return nil
}

// AdminSetMetadataURI replaces the metadata URI and returns the previous
// value for audit.
func (e *Engine) AdminSetMetadataURI(caller [20]byte, uri string) (string, error) {
	if err := e.requireAdmin(caller); err != nil {
		return "", err
	}
	previous := e.metadataURI
	e.metadataURI = uri
	e.emit(MetadataUpdatedEvent(hexAddr(caller), previous, uri))
	return previous, nil
}

// MetadataURI returns the currently configured metadata URI.
func (e *Engine) MetadataURI() string {
	if e == nil {
		return ""
	}
	return e.metadataURI
}

// AdminSetStrategy replaces the strategy reference used for delegated mints
// and returns the previous value for audit.
func (e *Engine) AdminSetStrategy(caller [20]byte, strategy [20]byte) ([20]byte, error) {
	if err := e.requireAdmin(caller); err != nil {
		return [20]byte{}, err
	}
	previous := e.strategyRef
	e.strategyRef = strategy
	e.emit(StrategyUpdatedEvent(hexAddr(caller), hexAddr(previous), hexAddr(strategy)))
	return previous, nil
}

// AdminSetRouter replaces the swap router reference and returns the previous
// value for audit.
func (e *Engine) AdminSetRouter(caller [20]byte, router [20]byte) ([20]byte, error) {
	if err := e.requireAdmin(caller); err != nil {
		return [20]byte{}, err
	}
	previous := e.routerRef
	e.routerRef = router
	e.emit(RouterUpdatedEvent(hexAddr(caller), hexAddr(previous), hexAddr(router)))
	return previous, nil
}
