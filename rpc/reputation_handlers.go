package rpc

import (
	"net/http"

	"opusledger/native/reputation"
)

type reputationCreatorParams struct {
	Creator string `json:"creator"`
}

type reputationVerifyParams struct {
	Caller  string `json:"caller"`
	Creator string `json:"creator"`
}

type reputationStatsResult struct {
	Creator             string `json:"creator"`
	TotalWorks          uint64 `json:"totalWorks"`
	TotalEarnings       string `json:"totalEarnings"`
	TotalContributions  string `json:"totalContributions"`
	SuccessfulCampaigns uint64 `json:"successfulCampaigns"`
	Score               uint64 `json:"score"`
	LastUpdated         int64  `json:"lastUpdated"`
	Verified            bool   `json:"verified"`
}

type reputationBreakdownResult struct {
	WorksScore         uint64 `json:"worksScore"`
	EarningsScore      uint64 `json:"earningsScore"`
	ContributionsScore uint64 `json:"contributionsScore"`
	CampaignsScore     uint64 `json:"campaignsScore"`
	Total              uint64 `json:"total"`
}

type ledgerBalanceParams struct {
	Address string `json:"address"`
}

func formatStats(stats *reputation.CreatorStats) reputationStatsResult {
	return reputationStatsResult{
		Creator:             hexAddr(stats.Creator),
		TotalWorks:          stats.TotalWorks,
		TotalEarnings:       bigString(stats.TotalEarnings),
		TotalContributions:  bigString(stats.TotalContributions),
		SuccessfulCampaigns: stats.SuccessfulCampaigns,
		Score:               stats.Score,
		LastUpdated:         stats.LastUpdated,
		Verified:            stats.Verified,
	}
}

func (s *Server) handleReputationGetStats(w http.ResponseWriter, req *RPCRequest) string {
	var params reputationCreatorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	creator, err := parseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	stats, err := s.reputation.Stats(creator)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return "error"
	}
	writeResult(w, req.ID, formatStats(stats))
	return "ok"
}

func (s *Server) handleReputationGetScore(w http.ResponseWriter, req *RPCRequest) string {
	var params reputationCreatorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	creator, err := parseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	score, err := s.reputation.Score(creator)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return "error"
	}
	writeResult(w, req.ID, score)
	return "ok"
}

func (s *Server) handleReputationGetScoreBreakdown(w http.ResponseWriter, req *RPCRequest) string {
	var params reputationCreatorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	creator, err := parseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	breakdown, err := s.reputation.ScoreBreakdown(creator)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return "error"
	}
	writeResult(w, req.ID, reputationBreakdownResult{
		WorksScore:         breakdown.WorksScore,
		EarningsScore:      breakdown.EarningsScore,
		ContributionsScore: breakdown.ContributionsScore,
		CampaignsScore:     breakdown.CampaignsScore,
		Total:              breakdown.Total,
	})
	return "ok"
}

func (s *Server) handleReputationSetVerified(w http.ResponseWriter, r *http.Request, req *RPCRequest, verified bool) string {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "missing or invalid bearer token")
		return "unauthorized"
	}
	var params reputationVerifyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	creator, err := parseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	stats, err := s.reputation.SetVerified(caller, creator, verified)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return "error"
	}
	writeResult(w, req.ID, formatStats(stats))
	return "ok"
}

func (s *Server) handleLedgerGetBalance(w http.ResponseWriter, req *RPCRequest) string {
	var params ledgerBalanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	account, err := s.state.GetAccount(addr[:])
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return "error"
	}
	if account == nil {
		writeResult(w, req.ID, "0")
		return "ok"
	}
	writeResult(w, req.ID, bigString(account.Balance))
	return "ok"
}
