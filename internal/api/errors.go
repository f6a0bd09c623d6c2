package api

import (
	"net/http"

	xerrors "Attest-Resolver/internal/errors"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor 将错误码映射为 HTTP 状态码。
func statusFor(err error) int {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeValidationFailed, xerrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case xerrors.CodeNotAuthorized:
		return http.StatusForbidden
	case xerrors.CodeNotFound:
		return http.StatusNotFound
	case xerrors.CodeAlreadyInitialized, xerrors.CodeConflict:
		return http.StatusConflict
	case xerrors.CodeInsufficientFunds, xerrors.CodeTransferFailed:
		return http.StatusUnprocessableEntity
	case xerrors.CodeUninitialized, xerrors.CodeConfigMissing:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}
