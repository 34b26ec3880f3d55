package pomelox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork wraps transport failures (DNS, TLS, connection reset).
	ErrNetwork = errors.New("network request failed")
	// ErrUnauthorized is returned for HTTP 401 or envelope code 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned for HTTP 403 or envelope code 403.
	ErrForbidden = errors.New("forbidden")
	// ErrNotLoggedIn is returned by calls that need a token before Login.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrNoRecord is returned when a user has no volunteer records.
	ErrNoRecord = errors.New("no volunteer record")
	// ErrInvalidRequest is returned before sending a request that is missing
	// required fields.
	ErrInvalidRequest = errors.New("invalid request")
)

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// APIError is an envelope whose code is not 200.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Msg)
}

// IsServerError reports whether err is an upstream 5xx, either as an HTTP
// status or as an envelope code.
func IsServerError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Code >= 500
	}
	return false
}

// UserMessage maps err to a title and message suitable for end users.
func UserMessage(err error) (title, message string) {
	var ae *APIError
	switch {
	case err == nil:
		return "", ""
	case errors.Is(err, context.DeadlineExceeded):
		return "网络错误", "请求超时，服务器响应缓慢"
	case errors.Is(err, ErrNetwork):
		return "网络错误", "网络连接失败，请检查网络后重试"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotLoggedIn):
		return "认证失效", "认证失效，请重新登录"
	case errors.Is(err, ErrForbidden):
		return "权限不足", "无权限执行此操作，需要管理员权限"
	case IsServerError(err):
		return "服务器错误", "服务器内部错误，请稍后重试"
	case errors.Is(err, ErrNoRecord):
		return "暂无记录", "无签到记录"
	case errors.As(err, &ae) && ae.Msg != "":
		return "操作失败", ae.Msg
	}
	return "操作失败", "加载失败，请稍后重试"
}
