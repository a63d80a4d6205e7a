package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/steelcrest/assetgate/internal/domain"
	assetsuc "github.com/steelcrest/assetgate/internal/usecase/assets"
)

// errorCode identifies an error class for API clients.
type errorCode string

const (
	codeBadRequest       errorCode = "bad_request"
	codeValidationFailed errorCode = "validation_failed"
	codeBadReference     errorCode = "bad_reference"
	codeUnknownCategory  errorCode = "unknown_category"
	codeDeleteInFlight   errorCode = "delete_in_flight"
	codeNoPendingDelete  errorCode = "no_pending_delete"
	codeTransportFailed  errorCode = "transport_failed"
	codeInternalError    errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

var domainErrorHandlers = []errorHandler{
	validationHandler,
	transportHandler,
	sentinelHandler(domain.ErrBadReference, http.StatusBadRequest, codeBadReference),
	sentinelHandler(domain.ErrUnknownCategory, http.StatusBadRequest, codeUnknownCategory),
	sentinelHandler(domain.ErrDeleteInFlight, http.StatusConflict, codeDeleteInFlight),
	sentinelHandler(assetsuc.ErrNoPendingDelete, http.StatusConflict, codeNoPendingDelete),
}

// sentinelHandler returns an errorHandler matching a single sentinel.
// The sentinel's own message is safe to surface.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// validationHandler surfaces the violated presence rule or the
// rejected filename.
func validationHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	// Validation messages are produced client-side and safe to surface.
	writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
	return true
}

// transportHandler maps backend and provider failures to 502 with the
// server-supplied message when one was captured.
func transportHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrTransport) {
		return false
	}
	msg := domain.ErrTransport.Error()
	var te *domain.TransportError
	if errors.As(err, &te) {
		msg = te.Error()
	}
	writeError(w, http.StatusBadGateway, codeTransportFailed, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range domainErrorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
