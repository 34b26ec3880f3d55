package pomelox

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/atinyakov/PomeloX/internal/models"
)

// UserInfo returns the logged-in user, or the user with userID when it is
// not empty.
func (c *Client) UserInfo(ctx context.Context, userID string) (*models.RemoteUser, error) {
	var query url.Values
	if userID != "" {
		query = url.Values{"userId": {userID}}
	}
	env, err := c.call(ctx, request{method: http.MethodGet, path: "/app/user/info", query: query, auth: true})
	if err != nil {
		return nil, fmt.Errorf("user info: %w", err)
	}
	var u models.RemoteUser
	ok, err := decodeData(env, &u)
	if err != nil {
		return nil, fmt.Errorf("user info: %w", err)
	}
	if !ok || u.UserID == "" {
		return nil, fmt.Errorf("user info: %w", &APIError{Code: http.StatusNotFound, Msg: "user not found"})
	}
	return &u, nil
}

// DepartmentList returns the school tree. It needs no token.
func (c *Client) DepartmentList(ctx context.Context) ([]models.Department, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: "/app/dept/list"})
	if err != nil {
		return nil, fmt.Errorf("department list: %w", err)
	}
	rows, _, err := decodeRows[models.Department](env)
	if err != nil {
		return nil, fmt.Errorf("department list: %w", err)
	}
	return rows, nil
}

// OrganizationList returns the organizations known to the API.
func (c *Client) OrganizationList(ctx context.Context) ([]models.RemoteOrganization, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: "/app/organization/list", auth: true})
	if err != nil {
		return nil, fmt.Errorf("organization list: %w", err)
	}
	rows, _, err := decodeRows[models.RemoteOrganization](env)
	if err != nil {
		return nil, fmt.Errorf("organization list: %w", err)
	}
	return rows, nil
}
