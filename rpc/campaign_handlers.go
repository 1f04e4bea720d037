package rpc

import (
	"net/http"

	"opusledger/native/campaign"
)

type campaignCreateParams struct {
	Caller       string `json:"caller"`
	WorkID       uint64 `json:"workId"`
	Goal         string `json:"goal"`
	ShareBps     uint32 `json:"shareBps"`
	DurationDays uint32 `json:"durationDays"`
	LockupDays   uint32 `json:"lockupDays"`
}

type campaignContributeParams struct {
	Caller     string `json:"caller"`
	CampaignID uint64 `json:"campaignId"`
	Amount     string `json:"amount"`
}

type campaignIDParams struct {
	CampaignID uint64 `json:"campaignId"`
}

type campaignCallerParams struct {
	Caller     string `json:"caller"`
	CampaignID uint64 `json:"campaignId"`
}

type campaignShareParams struct {
	CampaignID  uint64 `json:"campaignId"`
	Contributor string `json:"contributor"`
}

type campaignResult struct {
	ID             uint64 `json:"id"`
	WorkID         uint64 `json:"workId"`
	Creator        string `json:"creator"`
	Goal           string `json:"goal"`
	Raised         string `json:"raised"`
	ShareBps       uint32 `json:"shareBps"`
	Deadline       int64  `json:"deadline"`
	LockupDays     uint32 `json:"lockupDays"`
	CreatedAt      int64  `json:"createdAt"`
	Status         string `json:"status"`
	FundsWithdrawn bool   `json:"fundsWithdrawn"`
}

type campaignAllocationResult struct {
	Beneficiary string `json:"beneficiary"`
	Bps         uint32 `json:"bps"`
}

type campaignFinalizeResult struct {
	Campaign   campaignResult             `json:"campaign"`
	Allocation []campaignAllocationResult `json:"allocation,omitempty"`
}

type campaignContributionResult struct {
	Contributor string `json:"contributor"`
	Amount      string `json:"amount"`
	Timestamp   int64  `json:"timestamp"`
}

func formatCampaign(c *campaign.Campaign) campaignResult {
	return campaignResult{
		ID:             c.ID,
		WorkID:         c.WorkID,
		Creator:        hexAddr(c.Creator),
		Goal:           bigString(c.Goal),
		Raised:         bigString(c.Raised),
		ShareBps:       c.ShareBps,
		Deadline:       c.Deadline,
		LockupDays:     c.LockupDays,
		CreatedAt:      c.CreatedAt,
		Status:         c.Status.String(),
		FundsWithdrawn: c.FundsWithdrawn,
	}
}

func formatAllocation(entries []campaign.AllocationEntry) []campaignAllocationResult {
	out := make([]campaignAllocationResult, len(entries))
	for i, entry := range entries {
		out[i] = campaignAllocationResult{Beneficiary: hexAddr(entry.Beneficiary), Bps: entry.Bps}
	}
	return out
}

func (s *Server) handleCampaignCreate(w http.ResponseWriter, req *RPCRequest) string {
	var params campaignCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	goal, err := parseAmount(params.Goal)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	created, err := s.campaigns.Create(caller, params.WorkID, goal, params.ShareBps, params.DurationDays, params.LockupDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return "error"
	}
	s.metrics.Transitions.WithLabelValues(created.Status.String()).Inc()
	writeResult(w, req.ID, formatCampaign(created))
	return "ok"
}

func (s *Server) handleCampaignContribute(w http.ResponseWriter, req *RPCRequest) string {
	var params campaignContributeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	updated, err := s.campaigns.Contribute(caller, params.CampaignID, amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return "error"
	}
	writeResult(w, req.ID, formatCampaign(updated))
	return "ok"
}

func (s *Server) handleCampaignFinalize(w http.ResponseWriter, req *RPCRequest) string {
	var params campaignIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	finalized, allocation, err := s.campaigns.Finalize(params.CampaignID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return "error"
	}
	s.metrics.Transitions.WithLabelValues(finalized.Status.String()).Inc()
	writeResult(w, req.ID, campaignFinalizeResult{
		Campaign:   formatCampaign(finalized),
		Allocation: formatAllocation(allocation),
	})
	return "ok"
}

func (s *Server) handleCampaignWithdraw(w http.ResponseWriter, req *RPCRequest) string {
	var params campaignCallerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	amount, err := s.campaigns.Withdraw(caller, params.CampaignID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return "error"
	}
	writeResult(w, req.ID, bigString(amount))
	return "ok"
}

func (s *Server) handleCampaignClaimRefund(w http.ResponseWriter, req *RPCRequest) string {
	var params campaignCallerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	amount, err := s.campaigns.ClaimRefund(caller, params.CampaignID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return "error"
	}
	writeResult(w, req.ID, bigString(amount))
	return "ok"
}

func (s *Server) handleCampaignCancel(w http.ResponseWriter, req *RPCRequest) string {
	var params campaignCallerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	cancelled, err := s.campaigns.Cancel(caller, params.CampaignID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return "error"
	}
	s.metrics.Transitions.WithLabelValues(cancelled.Status.String()).Inc()
	writeResult(w, req.ID, formatCampaign(cancelled))
	return "ok"
}

func (s *Server) handleCampaignGet(w http.ResponseWriter, req *RPCRequest) string {
	var params campaignIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	found, err := s.campaigns.Campaign(params.CampaignID)
	if err != nil {
		writeError(w, http.StatusNotFound, req.ID, codeServerError, err.Error())
		return "error"
	}
	writeResult(w, req.ID, formatCampaign(found))
	return "ok"
}

func (s *Server) handleCampaignGetContributions(w http.ResponseWriter, req *RPCRequest) string {
	var params campaignIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	contributions, err := s.campaigns.Contributions(params.CampaignID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return "error"
	}
	results := make([]campaignContributionResult, len(contributions))
	for i, c := range contributions {
		results[i] = campaignContributionResult{
			Contributor: hexAddr(c.Contributor),
			Amount:      bigString(c.Amount),
			Timestamp:   c.Timestamp,
		}
	}
	writeResult(w, req.ID, results)
	return "ok"
}

func (s *Server) handleCampaignGetShareBps(w http.ResponseWriter, req *RPCRequest) string {
	var params campaignShareParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	contributor, err := parseAddress(params.Contributor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	bps, err := s.campaigns.ShareBps(params.CampaignID, contributor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return "error"
	}
	writeResult(w, req.ID, bps)
	return "ok"
}
