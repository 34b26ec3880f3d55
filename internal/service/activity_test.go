package service_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/cache"
	"github.com/atinyakov/PomeloX/internal/decoder"
	"github.com/atinyakov/PomeloX/internal/models"
	"github.com/atinyakov/PomeloX/internal/pomelox"
	"github.com/atinyakov/PomeloX/internal/service"
)

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

type signInCall struct {
	token              string
	activityID, userID int64
}

func newActivityService(t *testing.T, c cache.Cache) (*service.ActivityService, *[]signInCall) {
	t.Helper()
	var calls []signInCall
	up := directoryUpstream(map[string]*models.RemoteUser{
		"user-tok": remoteUser("42", "wangwu", "王五", "common"),
		"odd-tok":  remoteUser("abc", "odd", "奇", "common"),
	}, nil)
	up.SignInFunc = func(_ context.Context, token string, activityID, userID int64) error {
		if activityID == 404 {
			return &pomelox.APIError{Code: 500, Msg: "活动不存在"}
		}
		calls = append(calls, signInCall{token, activityID, userID})
		return nil
	}
	return service.NewActivityService(up, nil, c, zap.NewNop()), &calls
}

func TestActivity_DecodeCachesSuccessOnly(t *testing.T) {
	mem := cache.NewMemory()
	svc, _ := newActivityService(t, mem)
	ctx := context.Background()

	res := svc.Decode(ctx, md5Hex("act_12"))
	require.True(t, res.Success)
	assert.Equal(t, int64(12), res.ActivityID)
	assert.Equal(t, decoder.MethodPrecomputed, res.Method)
	assert.Equal(t, 1, mem.Len())

	again := svc.Decode(ctx, md5Hex("act_12"))
	assert.Equal(t, res, again)

	miss := svc.Decode(ctx, md5Hex("nothing-like-an-id"))
	assert.False(t, miss.Success)
	assert.Len(t, miss.Guesses, 4)
	assert.Equal(t, 1, mem.Len())

	bad := svc.Decode(ctx, "zz")
	assert.NotEmpty(t, bad.Error)
}

func TestActivity_ScanSignIn(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		wantID   int64
		decoded  bool
		wantErr  error
		wantCall bool
	}{
		{name: "plain id", code: "VG_ACTIVITY_35", wantID: 35, wantCall: true},
		{name: "bare digits", code: "7", wantID: 7, wantCall: true},
		{name: "base64 json", code: "VG_ACTIVITY_eyJhY3Rpdml0eUlkIjo5fQ==", wantID: 9, wantCall: true},
		{name: "hashed", code: "VG_ACTIVITY_" + md5Hex("event_88"), wantID: 88, decoded: true, wantCall: true},
		{name: "undecodable hash", code: md5Hex("no such activity"), decoded: true, wantErr: service.ErrUndecodable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, calls := newActivityService(t, nil)
			res, err := svc.ScanSignIn(context.Background(), "user-tok", tt.code)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, res.ActivityID)
				assert.Equal(t, int64(42), res.UserID)
			}
			if tt.decoded {
				require.NotNil(t, res)
				require.NotNil(t, res.Decoded)
			}
			if tt.wantCall {
				require.Len(t, *calls, 1)
				assert.Equal(t, signInCall{"user-tok", tt.wantID, 42}, (*calls)[0])
			} else {
				assert.Empty(t, *calls)
			}
		})
	}
}

func TestActivity_ScanSignInErrors(t *testing.T) {
	svc, _ := newActivityService(t, nil)
	ctx := context.Background()

	_, err := svc.ScanSignIn(ctx, "user-tok", "VG_HASH_1_2_3")
	assert.Error(t, err)

	_, err = svc.ScanSignIn(ctx, "bad-tok", "VG_ACTIVITY_1")
	assert.ErrorIs(t, err, pomelox.ErrUnauthorized)

	_, err = svc.ScanSignIn(ctx, "odd-tok", "VG_ACTIVITY_1")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.ScanSignIn(ctx, "user-tok", "VG_ACTIVITY_404")
	var apiErr *pomelox.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "活动不存在", apiErr.Msg)
}
