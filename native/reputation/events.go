package reputation

import (
	"encoding/hex"
	"strconv"

	"opusledger/core/events"
	"opusledger/core/types"
)

const (
	// EventTypeReputationUpdated is emitted whenever a stat mutation
	// recomputes a creator's score.
	EventTypeReputationUpdated = "reputation.updated"
	// EventTypeVerificationChanged is emitted when the administrator flips a
	// creator's verification flag.
	EventTypeVerificationChanged = "reputation.verification_changed"
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

// ReputationUpdatedEvent returns the structured payload for score updates.
func ReputationUpdatedEvent(creator string, score uint64, updatedAt int64) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypeReputationUpdated,
		Attributes: map[string]string{
			"creator":   creator,
			"score":     strconv.FormatUint(score, 10),
			"updatedAt": strconv.FormatInt(updatedAt, 10),
		},
	})
}

// VerificationChangedEvent returns the structured payload for verification
// flag changes.
func VerificationChangedEvent(creator string, verified bool) events.Event {
	return WrapEvent(&types.Event{
		Type: EventTypeVerificationChanged,
		Attributes: map[string]string{
			"creator":  creator,
			"verified": strconv.FormatBool(verified),
		},
	})
}
