package rpcfacade

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/yutiansut/bastionlab/internal/codec"
	"github.com/yutiansut/bastionlab/internal/errs"
	"github.com/yutiansut/bastionlab/internal/keyring"
)

// RegisterHTTP registers the native REST fallback routes spec.md's data
// plane exposes when the grpc-gateway stubs in gateway.go fail to
// register (which they always do — see fallback.go). Grounded on the
// teacher's daemon/api/server.(*DaemonAPIServer).RegisterHTTP.
func (s *Service) RegisterHTTP(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/frames", s.handleSendDataFrame)
	mux.HandleFunc("/api/v1/frames/", s.handleFetchDataFrame)
	mux.HandleFunc("/api/v1/query", s.handleRunQuery)
	mux.HandleFunc("/api/v1/challenge", s.handleGetChallenge)
}

type sendFrameRequest struct {
	DataB64  string `json:"data_b64"`
	Policy   string `json:"policy"`
	Metadata string `json:"metadata"`
	Savable  bool   `json:"savable"`
}

type frameReferenceJSON struct {
	Identifier string `json:"identifier"`
	Header     string `json:"header"`
}

func (s *Service) handleSendDataFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sendFrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON body")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.DataB64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "data_b64 is not valid base64")
		return
	}

	acc := &codec.Accumulator{}
	acc.Add(codec.Chunk{Data: data, Policy: req.Policy, Metadata: req.Metadata, Savable: req.Savable})

	resp, err := s.ingest(acc)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frameReferenceJSON{Identifier: resp.Identifier, Header: resp.Header})
}

type runQueryRequest struct {
	CompositePlan string `json:"composite_plan"`
}

func (s *Service) handleRunQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var req runQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON body")
		return
	}
	resp, err := s.evaluate(req.CompositePlan)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frameReferenceJSON{Identifier: resp.Identifier, Header: resp.Header})
}

type fetchFrameResponse struct {
	Status  int    `json:"status"`
	Reason  string `json:"reason,omitempty"`
	DataB64 string `json:"data_b64"`
}

// handleFetchDataFrame serves GET /api/v1/frames/{identifier}. The
// challenge and signature travel as headers, mirroring the gRPC
// metadata keys so a single keyring.Verify call covers both transports.
func (s *Service) handleFetchDataFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	identifier := r.URL.Path[len("/api/v1/frames/"):]
	if identifier == "" {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "missing frame identifier")
		return
	}

	challengeHex := r.Header.Get("Challenge-Bin")
	if challengeHex == "" {
		writeJSONError(w, http.StatusForbidden, "PERMISSION_DENIED", "fetch request carries no challenge")
		return
	}
	challengeBytes, err := hex.DecodeString(challengeHex)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "challenge header is not valid hex")
		return
	}

	keyID, sigHex := "", ""
	for header := range r.Header {
		if id, ok := keyring.KeyIDFromHeader(strings.ToLower(header)); ok {
			keyID = id
			sigHex = r.Header.Get(header)
			break
		}
	}
	if keyID == "" {
		writeJSONError(w, http.StatusForbidden, "PERMISSION_DENIED", "missing signing-key header")
		return
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "signature header is not valid hex")
		return
	}

	body := []byte(`{"identifier":"` + identifier + `"}`)
	status, reason, payload, err := s.fetch(r.Method+" "+r.URL.Path, identifier, challengeBytes, keyID, sig, body)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fetchFrameResponse{
		Status:  int(status),
		Reason:  reason,
		DataB64: base64.StdEncoding.EncodeToString(payload),
	})
}

type challengeResponseJSON struct {
	ValueHex string `json:"value_hex"`
}

func (s *Service) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.limiter != nil && !s.limiter.Allow(r.RemoteAddr) {
		writeJSONError(w, http.StatusTooManyRequests, "PERMISSION_DENIED", "too many challenge requests from this peer")
		return
	}
	value, err := s.mintChallenge()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, challengeResponseJSON{ValueHex: hex.EncodeToString(value)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"code": code, "message": msg})
}

// writeDomainError maps an errs.Kind to the JSON error shape, using the
// same code vocabulary as codeToString in gateway.go.
func writeDomainError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	var httpStatus int
	var code string
	switch kind {
	case errs.InvalidArgument, errs.InvalidPayload, errs.InvalidPolicy, errs.InvalidMetadata:
		httpStatus, code = http.StatusBadRequest, "INVALID_ARGUMENT"
	case errs.NotFound:
		httpStatus, code = http.StatusNotFound, "NOT_FOUND"
	case errs.PermissionDenied:
		httpStatus, code = http.StatusForbidden, "PERMISSION_DENIED"
	case errs.Unauthenticated:
		httpStatus, code = http.StatusUnauthorized, "UNAUTHENTICATED"
	default:
		httpStatus, code = http.StatusInternalServerError, "INTERNAL"
	}
	writeJSONError(w, httpStatus, code, err.Error())
}
