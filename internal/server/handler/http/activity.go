package http

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/decoder"
	"github.com/atinyakov/PomeloX/internal/middleware"
	"github.com/atinyakov/PomeloX/internal/service"
)

// ActivityService defines the activity operations used by ActivityHandler.
type ActivityService interface {
	Decode(ctx context.Context, hash string) decoder.Result
	ScanSignIn(ctx context.Context, token, code string) (*service.SignInResult, error)
}

// ActivityHandler serves activity hash decoding and QR check-in.
type ActivityHandler struct {
	ActivityService ActivityService
	Log             *zap.Logger
}

// Decode handles POST /api/activity/decode with {"hash": "..."}. Failed
// searches are still 200 with success=false and the fragment guesses;
// malformed hashes are 400.
func (h *ActivityHandler) Decode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hash string `json:"hash"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res := h.ActivityService.Decode(r.Context(), req.Hash)
	if res.Error != "" {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Scan handles POST /api/activity/scan with {"code": "..."}, checking the
// caller in to the activity the code names.
func (h *ActivityHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.ActivityService.ScanSignIn(r.Context(), middleware.GetTokenFromContext(r.Context()), req.Code)
	if errors.Is(err, service.ErrUndecodable) && res != nil && res.Decoded != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Guesses: res.Decoded.Guesses})
		return
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
