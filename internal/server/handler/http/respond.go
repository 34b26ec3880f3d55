// Package http exposes the PomeloX identity, activity and volunteer services
// over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/pomelox"
	"github.com/atinyakov/PomeloX/internal/qrcode"
	"github.com/atinyakov/PomeloX/internal/service"
)

// maxBodyBytes bounds request bodies; codes are short.
const maxBodyBytes = 64 << 10

// errorResponse is the body of every non-2xx response. Title and Message are
// set for upstream errors and are meant for end users.
type errorResponse struct {
	Error   string  `json:"error"`
	Title   string  `json:"title,omitempty"`
	Message string  `json:"message,omitempty"`
	Guesses []int64 `json:"guesses,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return false
	}
	return true
}

// statusFor maps service, codec and upstream errors to HTTP status codes.
func statusFor(err error) int {
	var apiErr *pomelox.APIError
	var statusErr *pomelox.StatusError
	switch {
	case errors.Is(err, qrcode.ErrTokenExpired), errors.Is(err, service.ErrRevoked):
		return http.StatusGone
	case errors.Is(err, service.ErrNotIdentityCode),
		errors.Is(err, service.ErrIdentityMismatch),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, qrcode.ErrNotHashToken),
		errors.Is(err, qrcode.ErrMalformedToken),
		errors.Is(err, qrcode.ErrInvalidHash),
		errors.Is(err, qrcode.ErrNotUserCode),
		errors.Is(err, qrcode.ErrIncompleteIdentity),
		errors.Is(err, qrcode.ErrNotActivityCode),
		errors.Is(err, qrcode.ErrNotSignedToken),
		errors.Is(err, qrcode.ErrInvalidSignature),
		errors.Is(err, qrcode.ErrMissingUserID),
		errors.Is(err, pomelox.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, pomelox.ErrUnauthorized), errors.Is(err, pomelox.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden), errors.Is(err, pomelox.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUndecodable), errors.Is(err, pomelox.ErrNoRecord):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadySignedIn), errors.Is(err, service.ErrNotSignedIn):
		return http.StatusConflict
	case errors.Is(err, service.ErrSigningDisabled), errors.Is(err, service.ErrScanLogDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, pomelox.ErrNetwork), errors.As(err, &statusErr), errors.As(err, &apiErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError writes err with the status it maps to. Internal errors are
// logged and hidden from the client.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	switch {
	case status == http.StatusInternalServerError:
		log.Error("request failed", zap.Error(err))
		resp.Error = "internal error"
	case status == http.StatusBadGateway, status == http.StatusUnauthorized, status == http.StatusGatewayTimeout:
		resp.Title, resp.Message = pomelox.UserMessage(err)
	}
	writeJSON(w, status, resp)
}
