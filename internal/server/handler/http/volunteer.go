package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/middleware"
	"github.com/atinyakov/PomeloX/internal/service"
)

// VolunteerService defines the volunteer operations used by VolunteerHandler.
type VolunteerService interface {
	CheckIn(ctx context.Context, token string, userID int64, at time.Time) (*service.VolunteerState, error)
	CheckOut(ctx context.Context, token string, userID int64, at time.Time) (*service.VolunteerState, error)
	Status(ctx context.Context, token string, userID int64) (*service.VolunteerState, error)
}

// VolunteerHandler serves volunteer check-in, check-out and status.
type VolunteerHandler struct {
	VolunteerService VolunteerService
	Log              *zap.Logger
}

type volunteerRequest struct {
	UserID int64     `json:"userId"`
	Time   time.Time `json:"time,omitzero"`
}

func (h *VolunteerHandler) operate(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, int64, time.Time) (*service.VolunteerState, error)) {
	var req volunteerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := fn(r.Context(), middleware.GetTokenFromContext(r.Context()), req.UserID, req.Time)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// CheckIn handles POST /api/volunteer/checkin with {"userId": N, "time": RFC3339?}.
func (h *VolunteerHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.operate(w, r, h.VolunteerService.CheckIn)
}

// CheckOut handles POST /api/volunteer/checkout.
func (h *VolunteerHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.operate(w, r, h.VolunteerService.CheckOut)
}

// Status handles GET /api/volunteer/status?userId=N.
func (h *VolunteerHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId must be an integer"})
		return
	}
	state, err := h.VolunteerService.Status(r.Context(), middleware.GetTokenFromContext(r.Context()), userID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
