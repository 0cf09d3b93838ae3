package credits

import (
	"errors"
	"math/big"
	"testing"

	nativecommon "github.com/Coop-Records/CoopCreditsProtocol/native/common"
)

func TestAdminWithdraw(t *testing.T) {
	engine, state, _, emitter := newTestEngine(t, 1000, 0)
	admin := testAddr(0x0A)
	treasury := testAddr(0x0B)
	state.grantRole(roleCreditsAdmin, admin)
	state.fund(testVault, 10_000)

	if err := engine.AdminWithdraw(admin, treasury, big.NewInt(4_000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := state.baseBalance(treasury); got.Cmp(big.NewInt(4_000)) != 0 {
		t.Fatalf("treasury should hold the withdrawal, got %s", got)
	}
	held, err := engine.EscrowBalance()
	if err != nil {
		t.Fatalf("escrow balance: %v", err)
	}
	if held.Cmp(big.NewInt(6_000)) != 0 {
		t.Fatalf("expected 6000 escrow left, got %s", held)
	}
	if emitter.countType(EventTypeEscrowWithdrawn) != 1 {
		t.Fatalf("expected a withdrawal event")
	}
}

func TestCanRelease(t *testing.T) {
	engine, state, _, _ := newTestEngine(t, 1000, 0)
	state.fund(testVault, 1_000)

	ok, err := engine.CanRelease(big.NewInt(1_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("exact holding should be releasable")
	}
	ok, err = engine.CanRelease(big.NewInt(1_001))
	if err != nil {
		t.Fatalf("a shortfall is not an error: %v", err)
	}
	if ok {
		t.Fatalf("release above holdings must report false")
	}
}

func TestAdminWithdrawRejections(t *testing.T) {
	engine, state, _, _ := newTestEngine(t, 1000, 0)
	admin := testAddr(0x0A)
	outsider := testAddr(0x0C)
	recipient := testAddr(0x0B)
	state.grantRole(roleCreditsAdmin, admin)
	state.fund(testVault, 1_000)

	if err := engine.AdminWithdraw(outsider, recipient, big.NewInt(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := engine.AdminWithdraw(admin, [20]byte{}, big.NewInt(100)); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
	err := engine.AdminWithdraw(admin, recipient, big.NewInt(2_000))
	var insufficient *InsufficientEscrowError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientEscrowError, got %v", err)
	}
	if insufficient.Required.Cmp(big.NewInt(2_000)) != 0 || insufficient.Available.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("unexpected amounts: %+v", insufficient)
	}
}

// Withdrawal deliberately performs no solvency check against outstanding
// credits: the operator may drain escrow below liabilities and later
// redemptions fail cleanly.
func TestAdminWithdrawIgnoresOutstandingCredits(t *testing.T) {
	engine, state, _, _ := newTestEngine(t, 1000, 0)
	admin := testAddr(0x0A)
	buyer := testAddr(0x01)
	treasury := testAddr(0x0B)
	state.grantRole(roleCreditsAdmin, admin)
	state.fund(buyer, 10_000)

	if _, err := engine.Purchase(buyer, buyer, 10, big.NewInt(10_000)); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if err := engine.AdminWithdraw(admin, treasury, big.NewInt(10_000)); err != nil {
		t.Fatalf("withdrawal should pass despite liabilities: %v", err)
	}
	if _, err := engine.Redeem(buyer, 10); err == nil {
		t.Fatalf("redemption against drained escrow must fail")
	}
	if got := state.unitBalance(buyer); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("failed redemption must keep credits intact, got %s", got)
	}
}

func TestAdminSettersReturnPrevious(t *testing.T) {
	engine, state, _, _ := newTestEngine(t, 1000, 0)
	admin := testAddr(0x0A)
	state.grantRole(roleCreditsAdmin, admin)

	first := testAddr(0xB1)
	second := testAddr(0xB2)

	prev, err := engine.AdminSetStrategy(admin, first)
	if err != nil {
		t.Fatalf("set strategy: %v", err)
	}
	if prev != ([20]byte{}) {
		t.Fatalf("initial previous strategy should be zero")
	}
	prev, err = engine.AdminSetStrategy(admin, second)
	if err != nil {
		t.Fatalf("set strategy: %v", err)
	}
	if prev != first {
		t.Fatalf("expected previous strategy %x, got %x", first, prev)
	}

	if _, err := engine.AdminSetRouter(testAddr(0xFF), first); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-admin, got %v", err)
	}

	prevURI, err := engine.AdminSetMetadataURI(admin, "ipfs://v2")
	if err != nil {
		t.Fatalf("set metadata: %v", err)
	}
	if prevURI != "" {
		t.Fatalf("expected empty previous URI, got %q", prevURI)
	}
	if engine.MetadataURI() != "ipfs://v2" {
		t.Fatalf("metadata URI not applied")
	}
}

func TestPausedModuleRejectsOperations(t *testing.T) {
	engine, state, registry, _ := newTestEngine(t, 1000, 1000)
	engine.SetPauses(pausedView{paused: true})
	caller := testAddr(0x01)
	state.fund(caller, 10_000)
	state.creditUnits(caller, 5)
	registerIssuer(registry, testAddr(0xA1), 7)

	if _, err := engine.Purchase(caller, caller, 1, big.NewInt(1_000)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("purchase should be paused, got %v", err)
	}
	if _, err := engine.Redeem(caller, 1); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("redeem should be paused, got %v", err)
	}
	if _, err := engine.SettleDelegatedMint(caller, testAddr(0xA1), 7, 1, caller, [20]byte{}); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("settlement should be paused, got %v", err)
	}
	if err := engine.BuyDelegatedSwap(caller, nil, nil, nil); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("swap should be paused, got %v", err)
	}
}

// Escrow conservation across a mixed operation sequence: the vault holds
// purchases minus redemptions, mint payments and withdrawals.
func TestEscrowConservation(t *testing.T) {
	engine, state, registry, _ := newTestEngine(t, 1000, 2000)
	admin := testAddr(0x0A)
	buyer := testAddr(0x01)
	treasury := testAddr(0x0B)
	issuerAddr := testAddr(0xA1)
	state.grantRole(roleCreditsAdmin, admin)
	registerIssuer(registry, issuerAddr, 7)
	state.fund(buyer, 100_000)

	if _, err := engine.Purchase(buyer, buyer, 50, big.NewInt(50_000)); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := engine.Redeem(buyer, 10); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	receipt, err := engine.SettleDelegatedMint(buyer, issuerAddr, 7, 3, buyer, [20]byte{})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if err := engine.AdminWithdraw(admin, treasury, big.NewInt(5_000)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	expected := big.NewInt(50_000)
	expected.Sub(expected, big.NewInt(10_000))
	expected.Sub(expected, receipt.ValueCost)
	expected.Sub(expected, big.NewInt(5_000))

	held, err := engine.EscrowBalance()
	if err != nil {
		t.Fatalf("escrow balance: %v", err)
	}
	if held.Cmp(expected) != 0 {
		t.Fatalf("conservation violated: expected %s, held %s", expected, held)
	}
	if held.Sign() < 0 {
		t.Fatalf("escrow must never be negative")
	}
}

// The documented deployment rate: 0.0004 base units per credit.
func TestConversionRateScenario(t *testing.T) {
	rateWei := big.NewInt(400_000_000_000_000)
	pricing, err := NewPricing(rateWei, big.NewInt(0))
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	state := newMockState()
	engine := NewEngine(pricing)
	engine.SetState(state)
	engine.SetEscrowVault(testVault)

	buyer := testAddr(0x01)
	price := new(big.Int).Mul(rateWei, big.NewInt(10))
	state.accounts[string(buyer[:])] = newFundedAccount(new(big.Int).Add(price, big.NewInt(1)))

	refund, err := engine.Purchase(buyer, buyer, 10, new(big.Int).Add(price, big.NewInt(1)))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if refund.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected the extra wei refunded, got %s", refund)
	}
	if got := state.unitBalance(buyer); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected 10 credits, got %s", got)
	}
	held, err := engine.EscrowBalance()
	if err != nil {
		t.Fatalf("escrow balance: %v", err)
	}
	if held.Cmp(price) != 0 {
		t.Fatalf("escrow should hold exactly 10 x rate, got %s", held)
	}
}
