package rpc

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"opusledger/native/registry"
)

type registryRegisterParams struct {
	Caller      string `json:"caller"`
	Fingerprint string `json:"fingerprint"`
	MetadataURI string `json:"metadataUri"`
}

type registrySetActiveParams struct {
	Caller string `json:"caller"`
	WorkID uint64 `json:"workId"`
	Active bool   `json:"active"`
}

type registryWorkParams struct {
	WorkID uint64 `json:"workId"`
}

type registryFingerprintParams struct {
	Fingerprint string `json:"fingerprint"`
}

type registryWorkResult struct {
	ID           uint64 `json:"id"`
	Fingerprint  string `json:"fingerprint"`
	Creator      string `json:"creator"`
	MetadataURI  string `json:"metadataUri"`
	Active       bool   `json:"active"`
	RegisteredAt int64  `json:"registeredAt"`
}

type registryVerifyResult struct {
	Exists  bool   `json:"exists"`
	WorkID  uint64 `json:"workId,omitempty"`
	Creator string `json:"creator,omitempty"`
}

func parseFingerprint(raw string) ([32]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != 32 {
		return [32]byte{}, fmt.Errorf("invalid fingerprint %q", raw)
	}
	var out [32]byte
	copy(out[:], decoded)
	return out, nil
}

func formatWork(work *registry.Work) registryWorkResult {
	return registryWorkResult{
		ID:           work.ID,
		Fingerprint:  "0x" + hex.EncodeToString(work.Fingerprint[:]),
		Creator:      hexAddr(work.Creator),
		MetadataURI:  work.MetadataURI,
		Active:       work.Active,
		RegisteredAt: work.RegisteredAt,
	}
}

func (s *Server) handleRegistryRegister(w http.ResponseWriter, req *RPCRequest) string {
	var params registryRegisterParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	fingerprint, err := parseFingerprint(params.Fingerprint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	work, err := s.registry.Register(caller, fingerprint, params.MetadataURI)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return "error"
	}
	writeResult(w, req.ID, formatWork(work))
	return "ok"
}

func (s *Server) handleRegistrySetActive(w http.ResponseWriter, req *RPCRequest) string {
	var params registrySetActiveParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	work, err := s.registry.SetActive(caller, params.WorkID, params.Active)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error())
		return "error"
	}
	writeResult(w, req.ID, formatWork(work))
	return "ok"
}

func (s *Server) handleRegistryGetWork(w http.ResponseWriter, req *RPCRequest) string {
	var params registryWorkParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	work, err := s.registry.Work(params.WorkID)
	if err != nil {
		writeError(w, http.StatusNotFound, req.ID, codeServerError, err.Error())
		return "error"
	}
	writeResult(w, req.ID, formatWork(work))
	return "ok"
}

func (s *Server) handleRegistryVerifyFingerprint(w http.ResponseWriter, req *RPCRequest) string {
	var params registryFingerprintParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	fingerprint, err := parseFingerprint(params.Fingerprint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return "invalid_params"
	}
	exists, workID, creator, err := s.registry.VerifyFingerprint(fingerprint)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return "error"
	}
	result := registryVerifyResult{Exists: exists}
	if exists {
		result.WorkID = workID
		result.Creator = hexAddr(creator)
	}
	writeResult(w, req.ID, result)
	return "ok"
}
