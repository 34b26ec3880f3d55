package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/decoder"
	"github.com/atinyakov/PomeloX/internal/models"
	"github.com/atinyakov/PomeloX/internal/permission"
	"github.com/atinyakov/PomeloX/internal/pomelox"
	"github.com/atinyakov/PomeloX/internal/qrcode"
	handler "github.com/atinyakov/PomeloX/internal/server/handler/http"
	"github.com/atinyakov/PomeloX/internal/service"
)

// fakeIdentityService records the last token and code and returns preconfigured results.
type fakeIdentityService struct {
	token, code string
	limit       int
	revokedJTI  string

	issued *service.IssuedCode
	verify *service.Verification
	scans  []models.ScanLog
	err    error
}

func (f *fakeIdentityService) IssueSigned(_ context.Context, token string) (*service.IssuedCode, error) {
	f.token = token
	return f.issued, f.err
}
func (f *fakeIdentityService) IssueHash(_ context.Context, token string) (*service.IssuedCode, error) {
	f.token = token
	return f.issued, f.err
}
func (f *fakeIdentityService) IssueUserCode(_ context.Context, token string) (*service.IssuedCode, error) {
	f.token = token
	return f.issued, f.err
}
func (f *fakeIdentityService) Verify(_ context.Context, token, code string) (*service.Verification, error) {
	f.token, f.code = token, code
	return f.verify, f.err
}
func (f *fakeIdentityService) Revoke(_ context.Context, token, jti string, _ time.Time) error {
	f.token, f.revokedJTI = token, jti
	return f.err
}
func (f *fakeIdentityService) RecentScans(_ context.Context, token string, limit int) ([]models.ScanLog, error) {
	f.token, f.limit = token, limit
	return f.scans, f.err
}

type fakeActivityService struct {
	decoded decoder.Result
	signIn  *service.SignInResult
	err     error
}

func (f *fakeActivityService) Decode(context.Context, string) decoder.Result { return f.decoded }
func (f *fakeActivityService) ScanSignIn(context.Context, string, string) (*service.SignInResult, error) {
	return f.signIn, f.err
}

type fakeVolunteerService struct {
	userID int64
	state  *service.VolunteerState
	err    error
}

func (f *fakeVolunteerService) CheckIn(_ context.Context, _ string, userID int64, _ time.Time) (*service.VolunteerState, error) {
	f.userID = userID
	return f.state, f.err
}
func (f *fakeVolunteerService) CheckOut(_ context.Context, _ string, userID int64, _ time.Time) (*service.VolunteerState, error) {
	f.userID = userID
	return f.state, f.err
}
func (f *fakeVolunteerService) Status(_ context.Context, _ string, userID int64) (*service.VolunteerState, error) {
	f.userID = userID
	return f.state, f.err
}

type fixture struct {
	identity  *fakeIdentityService
	activity  *fakeActivityService
	volunteer *fakeVolunteerService
	router    http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		identity:  &fakeIdentityService{},
		activity:  &fakeActivityService{},
		volunteer: &fakeVolunteerService{},
	}
	log := zap.NewNop()
	f.router = handler.NewRouter(handler.Handlers{
		Identity:  &handler.IdentityHandler{IdentityService: f.identity, Log: log},
		Activity:  &handler.ActivityHandler{ActivityService: f.activity, Log: log},
		Volunteer: &handler.VolunteerHandler{VolunteerService: f.volunteer, Log: log},
	}, log, nil)
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer tok-1")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("body %q is not JSON: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthIsPublic(t *testing.T) {
	f := newFixture()
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d; want %d", w.Code, http.StatusOK)
	}
}

func TestAPIRequiresBearer(t *testing.T) {
	f := newFixture()
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/scans", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRejectsNonJSONBody(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodPost, "/api/identity/verify", bytes.NewBufferString("code=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer tok-1")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d; want %d", w.Code, http.StatusUnsupportedMediaType)
	}
}

func TestIssueCodes(t *testing.T) {
	for _, path := range []string{"/api/identity/signed", "/api/identity/hash", "/api/identity/user"} {
		t.Run(path, func(t *testing.T) {
			f := newFixture()
			f.identity.issued = &service.IssuedCode{Code: "VG_HASH_1_2_abcdef01", Kind: qrcode.KindHashIdentity}
			w := f.do(http.MethodPost, path, map[string]any{})
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
			}
			if got := decode(t, w)["code"]; got != "VG_HASH_1_2_abcdef01" {
				t.Errorf("code = %v", got)
			}
			if f.identity.token != "tok-1" {
				t.Errorf("token = %q; want tok-1", f.identity.token)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	f := newFixture()
	f.identity.verify = &service.Verification{
		Kind:         qrcode.KindSignedIdentity,
		Verified:     true,
		User:         permission.ScannedUser{UserID: "42", LegalName: "王五"},
		ScannerLevel: permission.Admin,
		TargetLevel:  permission.User,
	}
	w := f.do(http.MethodPost, "/api/identity/verify", map[string]string{"code": "VG_SIGNED_x"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["verified"] != true || body["user"].(map[string]any)["legalName"] != "王五" {
		t.Errorf("unexpected body %v", body)
	}
	if f.identity.code != "VG_SIGNED_x" {
		t.Errorf("code = %q", f.identity.code)
	}

	w = f.do(http.MethodPost, "/api/identity/verify", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty code status = %d; want 400", w.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{qrcode.ErrTokenExpired, http.StatusGone},
		{service.ErrRevoked, http.StatusGone},
		{fmt.Errorf("parse: %w", qrcode.ErrMalformedToken), http.StatusBadRequest},
		{qrcode.ErrInvalidSignature, http.StatusBadRequest},
		{service.ErrIdentityMismatch, http.StatusBadRequest},
		{service.ErrNotIdentityCode, http.StatusBadRequest},
		{fmt.Errorf("resolve caller: %w", pomelox.ErrUnauthorized), http.StatusUnauthorized},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrSigningDisabled, http.StatusServiceUnavailable},
		{&pomelox.StatusError{StatusCode: 500}, http.StatusBadGateway},
		{&pomelox.APIError{Code: 500, Msg: "boom"}, http.StatusBadGateway},
		{pomelox.ErrNetwork, http.StatusBadGateway},
		{errors.New("db exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			f := newFixture()
			f.identity.err = tt.err
			w := f.do(http.MethodPost, "/api/identity/verify", map[string]string{"code": "VG_HASH_x"})
			if w.Code != tt.want {
				t.Errorf("status = %d; want %d", w.Code, tt.want)
			}
			body := decode(t, w)
			if body["error"] == "" {
				t.Error("expected error message")
			}
			if tt.want == http.StatusInternalServerError && body["error"] != "internal error" {
				t.Errorf("internal error leaked: %v", body["error"])
			}
			if tt.want == http.StatusBadGateway && body["title"] != "服务器错误" && body["title"] != "网络错误" {
				t.Errorf("title = %v", body["title"])
			}
		})
	}
}

func TestRevoke(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/api/identity/revoke", map[string]string{"jti": "abc"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
	}
	if f.identity.revokedJTI != "abc" {
		t.Errorf("jti = %q", f.identity.revokedJTI)
	}
}

func TestScans(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodGet, "/api/scans?limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if f.identity.limit != 5 {
		t.Errorf("limit = %d; want 5", f.identity.limit)
	}
	if scans, ok := decode(t, w)["scans"].([]any); !ok || len(scans) != 0 {
		t.Errorf("expected empty scans array, got %s", w.Body.String())
	}

	if w := f.do(http.MethodGet, "/api/scans?limit=abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d; want 400", w.Code)
	}

	f.identity.err = service.ErrScanLogDisabled
	if w := f.do(http.MethodGet, "/api/scans", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled status = %d; want 503", w.Code)
	}
}

func TestActivityDecode(t *testing.T) {
	f := newFixture()
	f.activity.decoded = decoder.Result{Success: true, ActivityID: 12, Method: decoder.MethodPrecomputed}
	w := f.do(http.MethodPost, "/api/activity/decode", map[string]string{"hash": "whatever"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode(t, w)["activityId"]; got != float64(12) {
		t.Errorf("activityId = %v", got)
	}

	f.activity.decoded = decoder.Result{Error: decoder.ErrInvalidHash.Error()}
	if w := f.do(http.MethodPost, "/api/activity/decode", map[string]string{"hash": "zz"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid hash status = %d; want 400", w.Code)
	}
}

func TestActivityScan(t *testing.T) {
	f := newFixture()
	f.activity.signIn = &service.SignInResult{ActivityID: 35, UserID: 42}
	w := f.do(http.MethodPost, "/api/activity/scan", map[string]string{"code": "VG_ACTIVITY_35"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	f.activity.signIn = &service.SignInResult{Decoded: &decoder.Result{Guesses: []int64{1, 2, 3, 4}}}
	f.activity.err = service.ErrUndecodable
	w = f.do(http.MethodPost, "/api/activity/scan", map[string]string{"code": "ffff"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
	if guesses, _ := decode(t, w)["guesses"].([]any); len(guesses) != 4 {
		t.Errorf("guesses = %v", guesses)
	}
}

func TestPermissions(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodGet, "/api/permissions?scanner=manage&target=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	perms := decode(t, w)["permissions"].(map[string]any)
	if perms["canViewSensitiveInfo"] != true {
		t.Errorf("admin should see sensitive info: %v", perms)
	}

	if w := f.do(http.MethodGet, "/api/permissions?scanner=boss&target=1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want 400", w.Code)
	}
}

func TestVolunteer(t *testing.T) {
	f := newFixture()
	f.volunteer.state = &service.VolunteerState{UserID: 42, Status: pomelox.StatusSignedIn}
	w := f.do(http.MethodPost, "/api/volunteer/checkin", map[string]any{"userId": 42})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
	}
	if f.volunteer.userID != 42 || decode(t, w)["status"] != "signed_in" {
		t.Errorf("unexpected result %s", w.Body.String())
	}

	f.volunteer.err = service.ErrNotSignedIn
	if w := f.do(http.MethodPost, "/api/volunteer/checkout", map[string]any{"userId": 42}); w.Code != http.StatusConflict {
		t.Errorf("checkout status = %d; want 409", w.Code)
	}

	f.volunteer.err = nil
	if w := f.do(http.MethodGet, "/api/volunteer/status?userId=7", nil); w.Code != http.StatusOK || f.volunteer.userID != 7 {
		t.Errorf("status call = %d, user %d", w.Code, f.volunteer.userID)
	}
	if w := f.do(http.MethodGet, "/api/volunteer/status", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing userId status = %d; want 400", w.Code)
	}
}
