package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"Attest-Resolver/internal/auth"
	xerrors "Attest-Resolver/internal/errors"
	"Attest-Resolver/internal/resolver"
)

// attestRequest 是 onattest/onrevoke 的请求体。
type attestRequest struct {
	Attestation resolver.Attestation `json:"attestation"`
	Proofs      auth.Proofs          `json:"proofs"`
}

// resolveRequest 是 onresolve 的请求体。
type resolveRequest struct {
	UID      common.Hash    `json:"uid"`
	Attester common.Address `json:"attester"`
	Proofs   auth.Proofs    `json:"proofs"`
}

// adminRequest 是管理操作的请求体，Amount 为十进制字符串。
type adminRequest struct {
	Caller    common.Address `json:"caller"`
	Amount    string         `json:"amount,omitempty"`
	Recipient common.Address `json:"recipient,omitempty"`
	Proofs    auth.Proofs    `json:"proofs"`
}

type hookResponse struct {
	Allowed bool `json:"allowed"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res.Metadata())
}

func (s *Server) handleOnAttest(w http.ResponseWriter, r *http.Request) {
	s.handleHook(w, r, resolver.Resolver.OnAttest)
}

func (s *Server) handleOnRevoke(w http.ResponseWriter, r *http.Request) {
	s.handleHook(w, r, resolver.Resolver.OnRevoke)
}

type hookFunc func(resolver.Resolver, context.Context, auth.Proofs, resolver.Attestation) (bool, error)

func (s *Server) handleHook(w http.ResponseWriter, r *http.Request, hook hookFunc) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req attestRequest
	if !decode(w, r, &req) {
		return
	}
	allowed, err := hook(res, r.Context(), mergeProofs(r, req.Proofs), req.Attestation)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hookResponse{Allowed: allowed})
}

func (s *Server) handleOnResolve(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !decode(w, r, &req) {
		return
	}
	if err := res.OnResolve(r.Context(), mergeProofs(r, req.Proofs), req.UID, req.Attester); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(w, r)
	if !ok {
		return
	}
	operator, ok := res.(resolver.Operator)
	if !ok {
		s.writeError(w, r, xerrors.New(xerrors.CodeNotFound, "该解析器不支持管理操作"))
		return
	}
	var req adminRequest
	if !decode(w, r, &req) {
		return
	}
	var amount *big.Int
	if req.Amount != "" {
		parsed, err := resolver.ParseAmount(req.Amount)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		amount = parsed
	}
	op := resolver.Operation{Caller: req.Caller, Amount: amount, Recipient: req.Recipient}
	if err := operator.Operate(r.Context(), r.PathValue("op"), mergeProofs(r, req.Proofs), op); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	inspector, ok := s.inspector(w, r)
	if !ok {
		return
	}
	state, err := inspector.State(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	inspector, ok := s.inspector(w, r)
	if !ok {
		return
	}
	raw := r.PathValue("address")
	if !common.IsHexAddress(raw) {
		s.writeError(w, r, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("无效的地址: %s", raw)))
		return
	}
	account, err := inspector.Account(r.Context(), common.HexToAddress(raw))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (resolver.Resolver, bool) {
	res, err := s.registry.Get(r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return res, true
}

func (s *Server) inspector(w http.ResponseWriter, r *http.Request) (resolver.Inspector, bool) {
	res, ok := s.lookup(w, r)
	if !ok {
		return nil, false
	}
	inspector, ok := res.(resolver.Inspector)
	if !ok {
		s.writeError(w, r, xerrors.New(xerrors.CodeNotFound, "该解析器不提供状态查询"))
		return nil, false
	}
	return inspector, true
}

// mergeProofs 合并请求体与请求头中的凭证，请求体优先。
func mergeProofs(r *http.Request, body auth.Proofs) auth.Proofs {
	header := auth.ProofsFromContext(r.Context())
	if len(header) == 0 {
		return body
	}
	merged := make(auth.Proofs, 0, len(body)+len(header))
	merged = append(merged, body...)
	return append(merged, header...)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    string(xerrors.CodeInvalidArgument),
			Message: "请求体解析失败: " + err.Error(),
		})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := xerrors.CodeOf(err)
	message := err.Error()
	if coded, ok := xerrors.From(err); ok {
		message = coded.Message()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("code", string(code)),
			slog.Any("error", err),
		)
	}
	writeJSON(w, status, errorResponse{Code: string(code), Message: message})
}
