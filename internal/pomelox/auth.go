package pomelox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/atinyakov/PomeloX/internal/models"
)

// ErrEmptyToken is returned when a successful login carries no token.
var ErrEmptyToken = errors.New("login response has no token")

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	UserID models.FlexID `json:"userId"`
	Token  string        `json:"token"`
}

// Login authenticates with a user name and password and stores the returned
// token on the client.
func (c *Client) Login(ctx context.Context, userName, password string) (*LoginResult, error) {
	form := url.Values{}
	form.Set("username", userName)
	form.Set("password", password)

	env, err := c.call(ctx, request{method: http.MethodPost, path: "/app/login", form: form})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	var res LoginResult
	if _, err := decodeData(env, &res); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if res.Token == "" {
		res.Token = env.Token
	}
	if res.Token == "" {
		return nil, ErrEmptyToken
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Register creates an account via /app/user/add.
func (c *Client) Register(ctx context.Context, r models.Registration) error {
	if r.UserName == "" || r.Password == "" || r.LegalName == "" {
		return fmt.Errorf("%w: userName, legalName and password are required", ErrInvalidRequest)
	}
	form := url.Values{}
	form.Set("userName", r.UserName)
	form.Set("legalName", r.LegalName)
	form.Set("nickName", r.NickName)
	form.Set("password", r.Password)
	form.Set("phonenumber", r.PhoneNumber)
	form.Set("email", r.Email)
	form.Set("sex", r.Sex)
	form.Set("deptId", r.DeptID)
	setIf(form, "verCode", r.VerCode)
	setIf(form, "invCode", r.InvCode)
	setIf(form, "bizId", r.BizID)
	setIf(form, "orgId", r.OrgID)

	if _, err := c.call(ctx, request{method: http.MethodPost, path: "/app/user/add", form: form}); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// SMSCode requests a verification code for phone. The response is not
// wrapped in the usual envelope.
func (c *Client) SMSCode(ctx context.Context, phone string) (*models.SMSResult, error) {
	if phone == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrInvalidRequest)
	}
	body, err := c.send(ctx, request{
		method: http.MethodGet,
		path:   "/sms/vercodeSms",
		query:  url.Values{"phoneNum": {phone}},
	})
	if err != nil {
		return nil, fmt.Errorf("sms code: %w", err)
	}
	var res models.SMSResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("sms code: decode: %w", err)
	}
	return &res, nil
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
