package campaign

import (
	"encoding/hex"
	"strconv"

	"opusledger/core/events"
	"opusledger/core/types"
)

const (
	// EventTypeCampaignCreated is emitted when a campaign opens.
	EventTypeCampaignCreated = "campaign.created"
	// EventTypeContributionMade is emitted for every accepted contribution.
	EventTypeContributionMade = "campaign.contribution_made"
	// EventTypeCampaignFinalized is emitted once the outcome is decided.
	EventTypeCampaignFinalized = "campaign.finalized"
	// EventTypeFundsWithdrawn is emitted when the creator collects a
	// successful campaign.
	EventTypeFundsWithdrawn = "campaign.funds_withdrawn"
	// EventTypeRefundIssued is emitted for every settled refund claim.
	EventTypeRefundIssued = "campaign.refund_issued"
	// EventTypeCampaignCancelled is emitted when an unfunded campaign closes.
	EventTypeCampaignCancelled = "campaign.cancelled"
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

// CampaignCreatedEvent returns the structured payload for a new campaign.
func CampaignCreatedEvent(c *Campaign) events.Event {
	if c == nil {
		return nil
	}
	return WrapEvent(&types.Event{
		Type: EventTypeCampaignCreated,
		Attributes: map[string]string{
			"campaignId": strconv.FormatUint(c.ID, 10),
			"workId":     strconv.FormatUint(c.WorkID, 10),
			"creator":    hexAddr(c.Creator),
			"goal":       c.Goal.String(),
			"shareBps":   strconv.FormatUint(uint64(c.ShareBps), 10),
			"deadline":   strconv.FormatInt(c.Deadline, 10),
		},
	})
}

// ContributionMadeEvent returns the structured payload for a contribution.
func ContributionMadeEvent(id uint64, contributor, amount, raised string) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypeContributionMade,
		Attributes: map[string]string{
			"campaignId":  strconv.FormatUint(id, 10),
			"contributor": contributor,
			"amount":      amount,
			"raised":      raised,
		},
	})
}

// CampaignFinalizedEvent returns the structured payload for an outcome.
func CampaignFinalizedEvent(c *Campaign) events.Event {
	if c == nil {
		return nil
	}
	return WrapEvent(&types.Event{
		Type: EventTypeCampaignFinalized,
		Attributes: map[string]string{
			"campaignId": strconv.FormatUint(c.ID, 10),
			"status":     c.Status.String(),
			"raised":     c.Raised.String(),
			"goal":       c.Goal.String(),
		},
	})
}

// FundsWithdrawnEvent returns the structured payload for a creator payout.
func FundsWithdrawnEvent(id uint64, creator, amount, platformFee string) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypeFundsWithdrawn,
		Attributes: map[string]string{
			"campaignId":  strconv.FormatUint(id, 10),
			"creator":     creator,
			"amount":      amount,
			"platformFee": platformFee,
		},
	})
}

// RefundIssuedEvent returns the structured payload for a settled refund.
func RefundIssuedEvent(id uint64, contributor, amount string) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypeRefundIssued,
		Attributes: map[string]string{
			"campaignId":  strconv.FormatUint(id, 10),
			"contributor": contributor,
			"amount":      amount,
		},
	})
}

// CampaignCancelledEvent returns the structured payload for a cancellation.
func CampaignCancelledEvent(id uint64, creator string) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypeCampaignCancelled,
		Attributes: map[string]string{
			"campaignId": strconv.FormatUint(id, 10),
			"creator":    creator,
		},
	})
}
