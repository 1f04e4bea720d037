package rpc

import (
	"net/http"

	"opusledger/native/royalty"
)

type royaltyPaymentParams struct {
	Caller    string `json:"caller"`
	WorkID    uint64 `json:"workId"`
	Amount    string `json:"amount"`
	Platform  string `json:"platform"`
	UsageType string `json:"usageType"`
}

type royaltyWorkParams struct {
	WorkID uint64 `json:"workId"`
}

type royaltySplitParams struct {
	Caller        string   `json:"caller"`
	WorkID        uint64   `json:"workId"`
	Beneficiaries []string `json:"beneficiaries"`
	Percentages   []uint32 `json:"percentages"`
}

type royaltyDistributedParams struct {
	WorkID      uint64 `json:"workId"`
	Beneficiary string `json:"beneficiary"`
}

type royaltyBalanceResult struct {
	WorkID      uint64 `json:"workId"`
	Pending     string `json:"pending"`
	TotalEarned string `json:"totalEarned"`
	DustAccrued string `json:"dustAccrued"`
}

type royaltySplitEntryResult struct {
	Beneficiary string `json:"beneficiary"`
	Bps         uint32 `json:"bps"`
}

type royaltySplitResult struct {
	WorkID     uint64                    `json:"workId"`
	Configured bool                      `json:"configured"`
	Entries    []royaltySplitEntryResult `json:"entries,omitempty"`
}

type royaltyPayoutResult struct {
	Beneficiary string `json:"beneficiary"`
	Amount      string `json:"amount"`
}

func (s *Server) handleRoyaltyReceivePayment(w http.ResponseWriter, req *RPCRequest) string {
	var params royaltyPaymentParams
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
	record, err := s.royalty.ReceivePayment(caller, params.WorkID, amount, params.Platform, params.UsageType)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return "error"
	}
	s.metrics.Payments.Inc()
	writeResult(w, req.ID, royaltyBalanceResult{
		WorkID:      record.WorkID,
		Pending:     bigString(record.Pending),
		TotalEarned: bigString(record.TotalEarned),
		DustAccrued: bigString(record.DustAccrued),
	})
	return "ok"
}

func (s *Server) handleRoyaltyDistribute(w http.ResponseWriter, req *RPCRequest) string {
	var params royaltyWorkParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	payouts, err := s.royalty.Distribute(params.WorkID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return "error"
	}
	s.metrics.Distributions.Inc()
	results := make([]royaltyPayoutResult, len(payouts))
	for i, payout := range payouts {
		results[i] = royaltyPayoutResult{Beneficiary: hexAddr(payout.Beneficiary), Amount: bigString(payout.Amount)}
	}
	writeResult(w, req.ID, results)
	return "ok"
}

func (s *Server) handleRoyaltyConfigureSplit(w http.ResponseWriter, req *RPCRequest) string {
	var params royaltySplitParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	if len(params.Beneficiaries) != len(params.Percentages) {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "beneficiaries and percentages length mismatch")
		return "invalid_params"
	}
	entries := make([]royalty.SplitEntry, len(params.Beneficiaries))
	for i, raw := range params.Beneficiaries {
		beneficiary, err := parseAddress(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
			return "invalid_params"
		}
		entries[i] = royalty.SplitEntry{Beneficiary: beneficiary, Bps: params.Percentages[i]}
	}
	split, err := s.royalty.ConfigureSplit(caller, params.WorkID, entries)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return "error"
	}
	writeResult(w, req.ID, formatSplit(split, true))
	return "ok"
}

func formatSplit(split *royalty.Split, configured bool) royaltySplitResult {
	result := royaltySplitResult{Configured: configured}
	if split == nil {
		return result
	}
	result.WorkID = split.WorkID
	result.Entries = make([]royaltySplitEntryResult, len(split.Entries))
	for i, entry := range split.Entries {
		result.Entries[i] = royaltySplitEntryResult{Beneficiary: hexAddr(entry.Beneficiary), Bps: entry.Bps}
	}
	return result
}

func (s *Server) handleRoyaltyGetSplit(w http.ResponseWriter, req *RPCRequest) string {
	var params royaltyWorkParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	split, configured, err := s.royalty.Split(params.WorkID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return "error"
	}
	result := formatSplit(split, configured)
	result.WorkID = params.WorkID
	writeResult(w, req.ID, result)
	return "ok"
}

func (s *Server) handleRoyaltyGetPending(w http.ResponseWriter, req *RPCRequest) string {
	return s.handleRoyaltyBalanceField(w, req, "pending")
}

func (s *Server) handleRoyaltyGetTotalEarned(w http.ResponseWriter, req *RPCRequest) string {
	return s.handleRoyaltyBalanceField(w, req, "totalEarned")
}

func (s *Server) handleRoyaltyBalanceField(w http.ResponseWriter, req *RPCRequest, field string) string {
	var params royaltyWorkParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	record, err := s.royalty.Balance(params.WorkID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return "error"
	}
	switch field {
	case "pending":
		writeResult(w, req.ID, bigString(record.Pending))
	default:
		writeResult(w, req.ID, bigString(record.TotalEarned))
	}
	return "ok"
}

func (s *Server) handleRoyaltyGetDistributed(w http.ResponseWriter, req *RPCRequest) string {
	var params royaltyDistributedParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	beneficiary, err := parseAddress(params.Beneficiary)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	total, err := s.royalty.Distributed(params.WorkID, beneficiary)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return "error"
	}
	writeResult(w, req.ID, bigString(total))
	return "ok"
}
