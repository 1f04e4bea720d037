package royalty

import (
	"encoding/hex"
	"strconv"

	"opusledger/core/events"
	"opusledger/core/types"
)

const (
	// EventTypePaymentReceived is emitted when a usage payment lands.
	EventTypePaymentReceived = "royalty.payment_received"
	// EventTypeSplitConfigured is emitted when a work's split is overwritten.
	EventTypeSplitConfigured = "royalty.split_configured"
	// EventTypeDistributed is emitted once a pending balance is drained.
	EventTypeDistributed = "royalty.distributed"
	// EventTypePlatformFeeCollected is emitted when the default split routes
	// the platform share to the treasury.
	EventTypePlatformFeeCollected = "royalty.platform_fee_collected"
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

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// PaymentReceivedEvent returns the structured payload for an incoming usage
// payment, carrying the free-form platform and usage-type context.
func PaymentReceivedEvent(workID uint64, payer, amount, platform, usageType string) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypePaymentReceived,
		Attributes: map[string]string{
			"workId":    strconv.FormatUint(workID, 10),
			"payer":     payer,
			"amount":    amount,
			"platform":  platform,
			"usageType": usageType,
		},
	})
}

// SplitConfiguredEvent returns the structured payload for a split overwrite.
func SplitConfiguredEvent(workID uint64, beneficiaries int) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypeSplitConfigured,
		Attributes: map[string]string{
			"workId":        strconv.FormatUint(workID, 10),
			"beneficiaries": strconv.Itoa(beneficiaries),
		},
	})
}

// DistributedEvent returns the structured payload for a completed
// distribution.
func DistributedEvent(workID uint64, amount string, payouts int, dust string) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypeDistributed,
		Attributes: map[string]string{
			"workId":  strconv.FormatUint(workID, 10),
			"amount":  amount,
			"payouts": strconv.Itoa(payouts),
			"dust":    dust,
		},
	})
}

// PlatformFeeCollectedEvent returns the structured payload for the platform
// share of a default-split distribution.
func PlatformFeeCollectedEvent(workID uint64, treasury, amount string) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypePlatformFeeCollected,
		Attributes: map[string]string{
			"workId":   strconv.FormatUint(workID, 10),
			"treasury": treasury,
			"amount":   amount,
		},
	})
}
