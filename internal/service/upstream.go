// Package service implements identity code issuing and verification,
// activity check-in and volunteer time tracking on top of the PomeloX API.
package service

import (
	"context"

	"github.com/atinyakov/PomeloX/internal/models"
	"github.com/atinyakov/PomeloX/internal/pomelox"
)

// Upstream is the part of the PomeloX API the services call. Every call is
// made with the token of the user on whose behalf it runs.
type Upstream interface {
	// UserInfo returns the user owning token when userID is empty, otherwise
	// the user with userID.
	UserInfo(ctx context.Context, token, userID string) (*models.RemoteUser, error)
	// SignIn checks userID in to activityID.
	SignIn(ctx context.Context, token string, activityID, userID int64) error
	// LastRecord returns the latest volunteer record of userID.
	LastRecord(ctx context.Context, token string, userID int64) (*models.VolunteerRecord, error)
	// VolunteerSignIn opens a volunteer record.
	VolunteerSignIn(ctx context.Context, token string, r pomelox.SignRecord) error
	// VolunteerSignOut closes a volunteer record.
	VolunteerSignOut(ctx context.Context, token string, r pomelox.SignRecord) error
}

// PomeloXUpstream adapts a pomelox.Client to Upstream.
type PomeloXUpstream struct {
	client *pomelox.Client
}

// NewPomeloXUpstream wraps c. Per-call tokens replace c's own token.
func NewPomeloXUpstream(c *pomelox.Client) *PomeloXUpstream {
	return &PomeloXUpstream{client: c}
}

func (u *PomeloXUpstream) UserInfo(ctx context.Context, token, userID string) (*models.RemoteUser, error) {
	return u.client.WithSessionToken(token).UserInfo(ctx, userID)
}

func (u *PomeloXUpstream) SignIn(ctx context.Context, token string, activityID, userID int64) error {
	return u.client.WithSessionToken(token).SignIn(ctx, activityID, userID)
}

func (u *PomeloXUpstream) LastRecord(ctx context.Context, token string, userID int64) (*models.VolunteerRecord, error) {
	return u.client.WithSessionToken(token).LastRecord(ctx, userID)
}

func (u *PomeloXUpstream) VolunteerSignIn(ctx context.Context, token string, r pomelox.SignRecord) error {
	return u.client.WithSessionToken(token).VolunteerSignIn(ctx, r)
}

func (u *PomeloXUpstream) VolunteerSignOut(ctx context.Context, token string, r pomelox.SignRecord) error {
	return u.client.WithSessionToken(token).VolunteerSignOut(ctx, r)
}
