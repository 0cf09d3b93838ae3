package credits

import (
	"strconv"

	"github.com/Coop-Records/CoopCreditsProtocol/core/events"
	"github.com/Coop-Records/CoopCreditsProtocol/core/types"
)

const (
	// EventTypeCreditsPurchased is emitted when credits are bought with base currency.
	EventTypeCreditsPurchased = "credits.purchased"
	// EventTypePurchaseRefunded is emitted when overpayment is returned to the payer.
	EventTypePurchaseRefunded = "credits.purchase.refunded"
	// EventTypeCreditsRedeemed is emitted when credits are converted back to base currency.
	EventTypeCreditsRedeemed = "credits.redeemed"
	// EventTypeMintSettled is emitted when a delegated mint completes.
	EventTypeMintSettled = "credits.mint.settled"
	// EventTypeSwapExecuted is emitted when a delegated swap payload is forwarded.
	EventTypeSwapExecuted = "credits.swap.executed"
	// EventTypeEscrowWithdrawn is emitted when an operator withdraws escrow surplus.
	EventTypeEscrowWithdrawn = "credits.escrow.withdrawn"
	// EventTypeStrategyUpdated is emitted when the strategy reference changes.
	EventTypeStrategyUpdated = "credits.strategy.updated"
	// EventTypeRouterUpdated is emitted when the router reference changes.
	EventTypeRouterUpdated = "credits.router.updated"
	// EventTypeMetadataUpdated is emitted when the metadata URI changes.
	EventTypeMetadataUpdated = "credits.metadata.updated"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// CreditsPurchasedEvent returns the payload emitted for a completed purchase.
func CreditsPurchasedEvent(payer, account string, quantity uint64, price string) *types.Event {
	return &types.Event{
		Type: EventTypeCreditsPurchased,
		Attributes: map[string]string{
			"payer":    payer,
			"account":  account,
			"quantity": strconv.FormatUint(quantity, 10),
			"price":    price,
		},
	}
}

// PurchaseRefundedEvent returns the payload emitted when overpayment flows back.
func PurchaseRefundedEvent(payer string, amount string) *types.Event {
	return &types.Event{
		Type: EventTypePurchaseRefunded,
		Attributes: map[string]string{
			"payer":  payer,
			"amount": amount,
		},
	}
}

// CreditsRedeemedEvent returns the payload emitted for a completed redemption.
func CreditsRedeemedEvent(account string, quantity uint64, value string) *types.Event {
	return &types.Event{
		Type: EventTypeCreditsRedeemed,
		Attributes: map[string]string{
			"account":  account,
			"quantity": strconv.FormatUint(quantity, 10),
			"value":    value,
		},
	}
}

// MintSettledEvent returns the payload emitted for a completed delegated mint.
func MintSettledEvent(receipt *Receipt) *types.Event {
	if receipt == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypeMintSettled,
		Attributes: map[string]string{
			"receiptId":   "0x" + hexHash(receipt.ID),
			"caller":      hexAddr(receipt.Caller),
			"issuer":      hexAddr(receipt.Issuer),
			"assetId":     strconv.FormatUint(receipt.AssetID, 10),
			"recipient":   hexAddr(receipt.Recipient),
			"referrer":    hexAddr(receipt.Referrer),
			"quantity":    strconv.FormatUint(receipt.Quantity, 10),
			"creditsCost": receipt.CreditsCost.String(),
			"valueCost":   receipt.ValueCost.String(),
		},
	}
}

// SwapExecutedEvent returns the payload emitted for a forwarded swap payload.
func SwapExecutedEvent(caller, router string, value string) *types.Event {
	return &types.Event{
		Type: EventTypeSwapExecuted,
		Attributes: map[string]string{
			"caller": caller,
			"router": router,
			"value":  value,
		},
	}
}

// EscrowWithdrawnEvent returns the payload emitted for an operator withdrawal.
func EscrowWithdrawnEvent(caller, recipient string, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeEscrowWithdrawn,
		Attributes: map[string]string{
			"caller":    caller,
			"recipient": recipient,
			"amount":    amount,
		},
	}
}

// StrategyUpdatedEvent returns the payload emitted when the strategy changes.
func StrategyUpdatedEvent(caller, previous, current string) *types.Event {
	return &types.Event{
		Type: EventTypeStrategyUpdated,
		Attributes: map[string]string{
			"caller":   caller,
			"previous": previous,
			"current":  current,
		},
	}
}

// RouterUpdatedEvent returns the payload emitted when the router changes.
func RouterUpdatedEvent(caller, previous, current string) *types.Event {
	return &types.Event{
		Type: EventTypeRouterUpdated,
		Attributes: map[string]string{
			"caller":   caller,
			"previous": previous,
			"current":  current,
		},
	}
}

// MetadataUpdatedEvent returns the payload emitted when the metadata URI changes.
func MetadataUpdatedEvent(caller, previous, current string) *types.Event {
	return &types.Event{
		Type: EventTypeMetadataUpdated,
		Attributes: map[string]string{
			"caller":   caller,
			"previous": previous,
			"current":  current,
		},
	}
}
