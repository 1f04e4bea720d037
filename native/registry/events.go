package registry

import (
	"encoding/hex"
	"strconv"

	"opusledger/core/events"
	"opusledger/core/types"
)

const (
	// EventTypeWorkRegistered is emitted when a new work record is minted.
	EventTypeWorkRegistered = "registry.work_registered"
	// EventTypeWorkStatusChanged is emitted when the active flag changes.
	EventTypeWorkStatusChanged = "registry.work_status_changed"
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

// WorkRegisteredEvent returns the structured payload for a newly minted work.
func WorkRegisteredEvent(work *Work) events.Event {
	if work == nil {
		return nil
	}
	return WrapEvent(&types.Event{
		Type: EventTypeWorkRegistered,
		Attributes: map[string]string{
			"workId":      strconv.FormatUint(work.ID, 10),
			"creator":     hexAddr(work.Creator),
			"fingerprint": "0x" + hex.EncodeToString(work.Fingerprint[:]),
			"metadataUri": work.MetadataURI,
		},
	})
}

// WorkStatusChangedEvent returns the structured payload for active flag flips.
func WorkStatusChangedEvent(work *Work) events.Event {
	if work == nil {
		return nil
	}
	return WrapEvent(&types.Event{
		Type: EventTypeWorkStatusChanged,
		Attributes: map[string]string{
			"workId": strconv.FormatUint(work.ID, 10),
			"active": strconv.FormatBool(work.Active),
		},
	})
}
