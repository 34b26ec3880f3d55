package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/middleware"
	"github.com/atinyakov/PomeloX/internal/models"
	"github.com/atinyakov/PomeloX/internal/service"
)

// IdentityService defines the identity code operations used by IdentityHandler.
type IdentityService interface {
	IssueSigned(ctx context.Context, token string) (*service.IssuedCode, error)
	IssueHash(ctx context.Context, token string) (*service.IssuedCode, error)
	IssueUserCode(ctx context.Context, token string) (*service.IssuedCode, error)
	Verify(ctx context.Context, token, code string) (*service.Verification, error)
	Revoke(ctx context.Context, token, jti string, until time.Time) error
	RecentScans(ctx context.Context, token string, limit int) ([]models.ScanLog, error)
}

// IdentityHandler serves identity code issuing, verification and scan history.
type IdentityHandler struct {
	IdentityService IdentityService
	Log             *zap.Logger
}

type codeRequest struct {
	Code string `json:"code"`
}

type revokeRequest struct {
	JTI   string    `json:"jti"`
	Until time.Time `json:"until,omitzero"`
}

func (h *IdentityHandler) issue(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*service.IssuedCode, error)) {
	code, err := fn(r.Context(), middleware.GetTokenFromContext(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, code)
}

// IssueSigned handles POST /api/identity/signed.
func (h *IdentityHandler) IssueSigned(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.IdentityService.IssueSigned)
}

// IssueHash handles POST /api/identity/hash.
func (h *IdentityHandler) IssueHash(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.IdentityService.IssueHash)
}

// IssueUserCode handles POST /api/identity/user.
func (h *IdentityHandler) IssueUserCode(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.IdentityService.IssueUserCode)
}

// Verify handles POST /api/identity/verify with a JSON body {"code": "..."}.
// The response carries the scanned user filtered by the caller's permissions.
func (h *IdentityHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "code is required"})
		return
	}
	v, err := h.IdentityService.Verify(r.Context(), middleware.GetTokenFromContext(r.Context()), req.Code)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Revoke handles POST /api/identity/revoke with {"jti": "...", "until": RFC3339?}.
func (h *IdentityHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.IdentityService.Revoke(r.Context(), middleware.GetTokenFromContext(r.Context()), req.JTI, req.Until); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked", "jti": req.JTI})
}

// Scans handles GET /api/scans?limit=N.
func (h *IdentityHandler) Scans(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	logs, err := h.IdentityService.RecentScans(r.Context(), middleware.GetTokenFromContext(r.Context()), limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if logs == nil {
		logs = []models.ScanLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": logs})
}
