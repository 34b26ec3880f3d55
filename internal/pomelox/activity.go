package pomelox

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/atinyakov/PomeloX/internal/models"
)

// ActivityQuery filters /app/activity/list. Zero fields are omitted.
type ActivityQuery struct {
	PageNum  int
	PageSize int
	Name     string
	UserID   int64
}

func (q ActivityQuery) values() url.Values {
	v := url.Values{}
	if q.PageNum > 0 {
		v.Set("pageNum", strconv.Itoa(q.PageNum))
	}
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Name != "" {
		v.Set("name", q.Name)
	}
	if q.UserID > 0 {
		v.Set("userId", strconv.FormatInt(q.UserID, 10))
	}
	return v
}

// ActivityPage is one page of activities.
type ActivityPage struct {
	Rows  []models.Activity `json:"rows"`
	Total int               `json:"total"`
}

// ActivityList lists activities. The token is sent when present so that
// SignStatus reflects the caller.
func (c *Client) ActivityList(ctx context.Context, q ActivityQuery) (*ActivityPage, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: "/app/activity/list", query: q.values()})
	if err != nil {
		return nil, fmt.Errorf("activity list: %w", err)
	}
	rows, total, err := decodeRows[models.Activity](env)
	if err != nil {
		return nil, fmt.Errorf("activity list: %w", err)
	}
	return &ActivityPage{Rows: rows, Total: total}, nil
}

// Enroll registers userID for activityID.
func (c *Client) Enroll(ctx context.Context, activityID, userID int64) error {
	if _, err := c.activityAction(ctx, "/app/activity/enroll", activityID, userID); err != nil {
		return fmt.Errorf("enroll: %w", err)
	}
	return nil
}

// SignIn checks userID in to activityID.
func (c *Client) SignIn(ctx context.Context, activityID, userID int64) error {
	if _, err := c.activityAction(ctx, "/app/activity/signIn", activityID, userID); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

// SignInfo returns the sign status of userID for activityID
// (see models.SignStatusNotEnrolled and friends).
func (c *Client) SignInfo(ctx context.Context, activityID, userID int64) (int, error) {
	env, err := c.activityAction(ctx, "/app/activity/getSignInfo", activityID, userID)
	if err != nil {
		return 0, fmt.Errorf("sign info: %w", err)
	}
	var status int
	if _, err := decodeData(env, &status); err != nil {
		return 0, fmt.Errorf("sign info: %w", err)
	}
	return status, nil
}

func (c *Client) activityAction(ctx context.Context, path string, activityID, userID int64) (*Envelope, error) {
	if activityID <= 0 || userID <= 0 {
		return nil, fmt.Errorf("%w: activityId and userId are required", ErrInvalidRequest)
	}
	return c.call(ctx, request{
		method: http.MethodGet,
		path:   path,
		query: url.Values{
			"activityId": {strconv.FormatInt(activityID, 10)},
			"userId":     {strconv.FormatInt(userID, 10)},
		},
		auth: true,
	})
}

// UserActivityList lists the activities userID has enrolled in. A nil
// signStatus returns all of them.
func (c *Client) UserActivityList(ctx context.Context, userID int64, signStatus *int) ([]models.Activity, error) {
	q := url.Values{}
	if userID > 0 {
		q.Set("userId", strconv.FormatInt(userID, 10))
	}
	if signStatus != nil {
		q.Set("signStatus", strconv.Itoa(*signStatus))
	}
	env, err := c.call(ctx, request{method: http.MethodGet, path: "/app/activity/userActivitylist", query: q, auth: true})
	if err != nil {
		return nil, fmt.Errorf("user activity list: %w", err)
	}
	rows, _, err := decodeRows[models.Activity](env)
	if err != nil {
		return nil, fmt.Errorf("user activity list: %w", err)
	}
	return rows, nil
}
