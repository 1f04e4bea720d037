package rpc

import (
	"net/http"

	"opusledger/core/events"
	"opusledger/core/types"
)

type ledgerEventsParams struct {
	Limit int `json:"limit"`
}

type ledgerEventResult struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SetEventLog attaches the daemon's event tail for read-only access over
// ledger_getEvents. Without it the method serves an empty list.
func (s *Server) SetEventLog(log *events.Log) { s.events = log }

func (s *Server) handleLedgerGetEvents(w http.ResponseWriter, req *RPCRequest) string {
	var params ledgerEventsParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
			return "invalid_params"
		}
	}
	recorded := s.events.Events()
	if params.Limit > 0 && params.Limit < len(recorded) {
		recorded = recorded[len(recorded)-params.Limit:]
	}
	out := make([]ledgerEventResult, 0, len(recorded))
	for _, evt := range recorded {
		entry := ledgerEventResult{Type: evt.EventType()}
		if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
			if payload := carrier.Event(); payload != nil {
				entry.Attributes = payload.Attributes
			}
		}
		out = append(out, entry)
	}
	writeResult(w, req.ID, out)
	return "ok"
}
