package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/atinyakov/PomeloX/internal/models"
	"github.com/atinyakov/PomeloX/internal/pomelox"
)

type mockUpstream struct {
	UserInfoFunc         func(ctx context.Context, token, userID string) (*models.RemoteUser, error)
	SignInFunc           func(ctx context.Context, token string, activityID, userID int64) error
	LastRecordFunc       func(ctx context.Context, token string, userID int64) (*models.VolunteerRecord, error)
	VolunteerSignInFunc  func(ctx context.Context, token string, r pomelox.SignRecord) error
	VolunteerSignOutFunc func(ctx context.Context, token string, r pomelox.SignRecord) error

	mu            sync.Mutex
	userInfoCalls int
}

func (m *mockUpstream) UserInfo(ctx context.Context, token, userID string) (*models.RemoteUser, error) {
	m.mu.Lock()
	m.userInfoCalls++
	m.mu.Unlock()
	return m.UserInfoFunc(ctx, token, userID)
}
func (m *mockUpstream) SignIn(ctx context.Context, token string, activityID, userID int64) error {
	return m.SignInFunc(ctx, token, activityID, userID)
}
func (m *mockUpstream) LastRecord(ctx context.Context, token string, userID int64) (*models.VolunteerRecord, error) {
	return m.LastRecordFunc(ctx, token, userID)
}
func (m *mockUpstream) VolunteerSignIn(ctx context.Context, token string, r pomelox.SignRecord) error {
	return m.VolunteerSignInFunc(ctx, token, r)
}
func (m *mockUpstream) VolunteerSignOut(ctx context.Context, token string, r pomelox.SignRecord) error {
	return m.VolunteerSignOutFunc(ctx, token, r)
}

func (m *mockUpstream) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userInfoCalls
}

var errUnknownUser = errors.New("unknown user")

// directoryUpstream serves users by session token (self lookups) and by id.
func directoryUpstream(byToken map[string]*models.RemoteUser, byID map[string]*models.RemoteUser) *mockUpstream {
	return &mockUpstream{
		UserInfoFunc: func(_ context.Context, token, userID string) (*models.RemoteUser, error) {
			if userID == "" {
				if u, ok := byToken[token]; ok {
					return u, nil
				}
				return nil, pomelox.ErrUnauthorized
			}
			if u, ok := byID[userID]; ok {
				return u, nil
			}
			return nil, errUnknownUser
		},
	}
}

func remoteUser(id, name, legal, role string) *models.RemoteUser {
	return &models.RemoteUser{
		UserID:    models.FlexID(id),
		UserName:  name,
		LegalName: legal,
		Email:     name + "@example.edu",
		Roles:     []models.Role{{RoleKey: role}},
	}
}

type mockScanRepo struct {
	mu      sync.Mutex
	logs    []models.ScanLog
	listErr error
	limit   int
}

func (m *mockScanRepo) Insert(_ context.Context, log *models.ScanLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockScanRepo) ListByScanner(_ context.Context, scannerID string, limit int) ([]models.ScanLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.ScanLog
	for _, l := range m.logs {
		if l.ScannerID == scannerID {
			out = append(out, l)
		}
	}
	return out, nil
}

type mockRevocations struct {
	revoked map[string]time.Time
}

func (m *mockRevocations) Revoke(_ context.Context, jti string, until time.Time) error {
	if m.revoked == nil {
		m.revoked = map[string]time.Time{}
	}
	m.revoked[jti] = until
	return nil
}

func (m *mockRevocations) IsRevoked(_ context.Context, jti string, now time.Time) (bool, error) {
	until, ok := m.revoked[jti]
	return ok && !until.Before(now), nil
}
