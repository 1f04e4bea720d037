package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"opusledger/core/events"
	"opusledger/native/campaign"
	"opusledger/native/registry"
	"opusledger/native/reputation"
	"opusledger/native/royalty"
	"opusledger/observability"
	"opusledger/state"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	// AuthTokenEnv names the environment variable carrying the bearer token
	// required for administrative methods.
	AuthTokenEnv = "OPUS_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
)

// Server exposes the financial and administrative surface of the ledger over
// JSON-RPC 2.0. Reputation stat mutators are deliberately absent: they are
// capability-internal and cannot be reached from the network.
type Server struct {
	registry   *registry.Engine
	royalty    *royalty.Engine
	campaigns  *campaign.Engine
	reputation *reputation.Engine
	state      *state.Manager
	events     *events.Log
	log        *slog.Logger
	metrics    *observability.LedgerMetrics
	authToken  string
}

// NewServer wires the RPC surface to the supplied engines.
func NewServer(reg *registry.Engine, roy *royalty.Engine, camp *campaign.Engine, rep *reputation.Engine, st *state.Manager, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		registry:   reg,
		royalty:    roy,
		campaigns:  camp,
		reputation: rep,
		state:      st,
		log:        log,
		metrics:    observability.Metrics(),
		authToken:  strings.TrimSpace(os.Getenv(AuthTokenEnv)),
	}
}

// Start serves the RPC endpoint until the listener fails.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	s.log.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

// Handler exposes the dispatch entrypoint for tests and embedding.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	supplied := strings.TrimSpace(header[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) == 1
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() { _ = reader.Close() }()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload")
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version")
		return
	}

	start := time.Now()
	outcome := "ok"
	defer func() {
		s.metrics.ObserveRequest(req.Method, outcome, start)
		if s.state != nil {
			s.state.CommitJournal()
		}
	}()

	switch req.Method {
	case "registry_register":
		outcome = s.handleRegistryRegister(w, &req)
	case "registry_setActive":
		outcome = s.handleRegistrySetActive(w, &req)
	case "registry_getWork":
		outcome = s.handleRegistryGetWork(w, &req)
	case "registry_verifyFingerprint":
		outcome = s.handleRegistryVerifyFingerprint(w, &req)
	case "royalty_receivePayment":
		outcome = s.handleRoyaltyReceivePayment(w, &req)
	case "royalty_distribute":
		outcome = s.handleRoyaltyDistribute(w, &req)
	case "royalty_configureSplit":
		outcome = s.handleRoyaltyConfigureSplit(w, &req)
	case "royalty_getSplit":
		outcome = s.handleRoyaltyGetSplit(w, &req)
	case "royalty_getPending":
		outcome = s.handleRoyaltyGetPending(w, &req)
	case "royalty_getTotalEarned":
		outcome = s.handleRoyaltyGetTotalEarned(w, &req)
	case "royalty_getDistributed":
		outcome = s.handleRoyaltyGetDistributed(w, &req)
	case "campaign_create":
		outcome = s.handleCampaignCreate(w, &req)
	case "campaign_contribute":
		outcome = s.handleCampaignContribute(w, &req)
	case "campaign_finalize":
		outcome = s.handleCampaignFinalize(w, &req)
	case "campaign_withdraw":
		outcome = s.handleCampaignWithdraw(w, &req)
	case "campaign_claimRefund":
		outcome = s.handleCampaignClaimRefund(w, &req)
	case "campaign_cancel":
		outcome = s.handleCampaignCancel(w, &req)
	case "campaign_get":
		outcome = s.handleCampaignGet(w, &req)
	case "campaign_getContributions":
		outcome = s.handleCampaignGetContributions(w, &req)
	case "campaign_getShareBps":
		outcome = s.handleCampaignGetShareBps(w, &req)
	case "reputation_getStats":
		outcome = s.handleReputationGetStats(w, &req)
	case "reputation_getScore":
		outcome = s.handleReputationGetScore(w, &req)
	case "reputation_getScoreBreakdown":
		outcome = s.handleReputationGetScoreBreakdown(w, &req)
	case "reputation_verifyCreator":
		outcome = s.handleReputationSetVerified(w, r, &req, true)
	case "reputation_unverifyCreator":
		outcome = s.handleReputationSetVerified(w, r, &req, false)
	case "ledger_getBalance":
		outcome = s.handleLedgerGetBalance(w, &req)
	case "ledger_getEvents":
		outcome = s.handleLedgerGetEvents(w, &req)
	default:
		outcome = "not_found"
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return errors.New("missing params object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if !ethcommon.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address %q", raw)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func hexAddr(addr [20]byte) string {
	return ethcommon.Address(addr).Hex()
}
