package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/cache"
	"github.com/atinyakov/PomeloX/internal/identity"
	"github.com/atinyakov/PomeloX/internal/models"
	"github.com/atinyakov/PomeloX/internal/permission"
	"github.com/atinyakov/PomeloX/internal/pomelox"
)

// VolunteerState is a volunteer's check-in state and the record it derives from.
type VolunteerState struct {
	UserID int64                   `json:"userId"`
	Status pomelox.Status          `json:"status"`
	Record *models.VolunteerRecord `json:"record,omitempty"`
}

// VolunteerService checks volunteers in and out on behalf of staff.
type VolunteerService struct {
	dir    *directory
	mapper *identity.Mapper
	log    *zap.Logger
	now    func() time.Time
}

// NewVolunteerService builds the service. A nil cache selects an in-memory one.
func NewVolunteerService(up Upstream, mapper *identity.Mapper, c cache.Cache, log *zap.Logger) *VolunteerService {
	if c == nil {
		c = cache.NewMemory()
	}
	return &VolunteerService{
		dir:    &directory{upstream: up, cache: c, ttl: DefaultUserTTL, log: log},
		mapper: mapper,
		log:    log,
		now:    time.Now,
	}
}

// operation is the resolved pair of operator and target of a volunteer action.
type operation struct {
	operator models.UserIdentityData
	target   models.UserIdentityData
	userID   int64
}

func (s *VolunteerService) authorize(ctx context.Context, token string, userID int64, action permission.Action) (*operation, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	self, err := s.dir.self(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolve caller: %w", err)
	}
	op := &operation{operator: s.mapper.Map(self), userID: userID}
	level := identity.Level(op.operator)

	isSelf := self.UserID.Int() == userID
	if action != permission.ActionView && !permission.CanPerform(level, action, permission.ResourceVolunteer) {
		return nil, ErrForbidden
	}
	if isSelf {
		op.target = op.operator
		return op, nil
	}

	target, err := s.dir.user(ctx, token, strconv.FormatInt(userID, 10))
	if err != nil {
		return nil, fmt.Errorf("resolve user %d: %w", userID, err)
	}
	op.target = s.mapper.Map(target)
	if !permission.CanOperateTarget(actor(op.operator), actor(op.target)) {
		return nil, ErrForbidden
	}
	return op, nil
}

// actor treats the placeholder organization "0" as no organization.
func actor(u models.UserIdentityData) permission.Actor {
	org := u.OrgID()
	if org == "0" {
		org = ""
	}
	return permission.Actor{UserID: u.UserID, OrgID: org, Level: identity.Level(u)}
}

func (s *VolunteerService) lastRecord(ctx context.Context, token string, userID int64) (*models.VolunteerRecord, error) {
	rec, err := s.dir.upstream.LastRecord(ctx, token, userID)
	if errors.Is(err, pomelox.ErrNoRecord) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last record: %w", err)
	}
	return rec, nil
}

// Status returns the check-in state of userID. Users may always view their
// own state; viewing others follows the same target rules as checking in.
func (s *VolunteerService) Status(ctx context.Context, token string, userID int64) (*VolunteerState, error) {
	if _, err := s.authorize(ctx, token, userID, permission.ActionView); err != nil {
		return nil, err
	}
	rec, err := s.lastRecord(ctx, token, userID)
	if err != nil {
		return nil, err
	}
	return &VolunteerState{UserID: userID, Status: pomelox.VolunteerStatus(rec), Record: rec}, nil
}

// CheckIn opens a volunteer record for userID starting at at (now when zero).
func (s *VolunteerService) CheckIn(ctx context.Context, token string, userID int64, at time.Time) (state *VolunteerState, err error) {
	defer func() { volunteerOpsTotal.WithLabelValues("check_in", result(err)).Inc() }()

	op, err := s.authorize(ctx, token, userID, permission.ActionCheckIn)
	if err != nil {
		return nil, err
	}
	rec, err := s.lastRecord(ctx, token, userID)
	if err != nil {
		return nil, err
	}
	if pomelox.VolunteerStatus(rec) == pomelox.StatusSignedIn {
		return nil, ErrAlreadySignedIn
	}

	if at.IsZero() {
		at = s.now()
	}
	err = s.dir.upstream.VolunteerSignIn(ctx, token, pomelox.SignRecord{
		UserID:           userID,
		OperateUserID:    op.operatorID(),
		OperateLegalName: op.operator.LegalName,
		StartTime:        at,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("volunteer checked in",
		zap.Int64("user_id", userID),
		zap.String("operator", op.operator.UserID),
		zap.Time("at", at))
	return &VolunteerState{UserID: userID, Status: pomelox.StatusSignedIn}, nil
}

// CheckOut closes the open volunteer record of userID at at (now when zero).
func (s *VolunteerService) CheckOut(ctx context.Context, token string, userID int64, at time.Time) (state *VolunteerState, err error) {
	defer func() { volunteerOpsTotal.WithLabelValues("check_out", result(err)).Inc() }()

	op, err := s.authorize(ctx, token, userID, permission.ActionCheckOut)
	if err != nil {
		return nil, err
	}
	rec, err := s.lastRecord(ctx, token, userID)
	if err != nil {
		return nil, err
	}
	if pomelox.VolunteerStatus(rec) != pomelox.StatusSignedIn {
		return nil, ErrNotSignedIn
	}

	if at.IsZero() {
		at = s.now()
	}
	err = s.dir.upstream.VolunteerSignOut(ctx, token, pomelox.SignRecord{
		UserID:           userID,
		OperateUserID:    op.operatorID(),
		OperateLegalName: op.operator.LegalName,
		EndTime:          at,
		RecordID:         rec.ID,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("volunteer checked out",
		zap.Int64("user_id", userID),
		zap.Int64("record_id", rec.ID),
		zap.String("operator", op.operator.UserID))
	return &VolunteerState{UserID: userID, Status: pomelox.StatusSignedOut}, nil
}

func (op *operation) operatorID() int64 {
	return models.FlexID(op.operator.UserID).Int()
}
