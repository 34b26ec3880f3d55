package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/cache"
	"github.com/atinyakov/PomeloX/internal/decoder"
	"github.com/atinyakov/PomeloX/internal/qrcode"
)

// DecodedTTL is how long successful activity hash decodes are cached.
const DecodedTTL = 24 * time.Hour

// SignInResult describes a completed activity check-in.
type SignInResult struct {
	ActivityID int64           `json:"activityId"`
	UserID     int64           `json:"userId"`
	Decoded    *decoder.Result `json:"decoded,omitempty"`
}

// ActivityService decodes activity codes and checks users in.
type ActivityService struct {
	dir     *directory
	decoder *decoder.Decoder
	cache   cache.Cache
	log     *zap.Logger
}

// NewActivityService builds the service. A nil decoder selects the default
// search ranges and a nil cache an in-memory one.
func NewActivityService(up Upstream, dec *decoder.Decoder, c cache.Cache, log *zap.Logger) *ActivityService {
	if dec == nil {
		dec = decoder.New(decoder.Options{})
	}
	if c == nil {
		c = cache.NewMemory()
	}
	return &ActivityService{
		dir:     &directory{upstream: up, cache: c, ttl: DefaultUserTTL, log: log},
		decoder: dec,
		cache:   c,
		log:     log,
	}
}

// Decode recovers the activity ID behind hash. Only successful decodes are
// cached; fragment guesses are recomputed each time.
func (s *ActivityService) Decode(ctx context.Context, hash string) decoder.Result {
	key := cache.ActivityKey(strings.ToLower(strings.TrimSpace(hash)))

	var res decoder.Result
	err := cache.GetJSON(ctx, s.cache, key, &res)
	if err == nil {
		activityDecodesTotal.WithLabelValues("cache").Inc()
		return res
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("activity cache read failed", zap.String("key", key), zap.Error(err))
	}

	res = s.decoder.Decode(hash)
	method := res.Method
	if res.Error != "" {
		method = "invalid"
	}
	activityDecodesTotal.WithLabelValues(method).Inc()

	if res.Success {
		if err := cache.SetJSON(ctx, s.cache, key, res, DecodedTTL); err != nil {
			s.log.Warn("activity cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return res
}

// ScanSignIn checks the user owning token in to the activity named by code.
// Hashed codes are decoded first; an undecodable hash yields ErrUndecodable
// and the decoder's guesses in the result.
func (s *ActivityService) ScanSignIn(ctx context.Context, token, code string) (*SignInResult, error) {
	ref, err := qrcode.ParseActivityCode(code)
	if err != nil {
		return nil, err
	}

	out := &SignInResult{ActivityID: ref.ID}
	if ref.NeedsDecoding() {
		res := s.Decode(ctx, ref.Hash)
		out.Decoded = &res
		if !res.Success {
			return out, ErrUndecodable
		}
		out.ActivityID = res.ActivityID
	}

	u, err := s.dir.self(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolve caller: %w", err)
	}
	out.UserID = u.UserID.Int()
	if out.UserID <= 0 {
		return nil, fmt.Errorf("%w: caller has no numeric user id", ErrInvalidInput)
	}

	if err := s.dir.upstream.SignIn(ctx, token, out.ActivityID, out.UserID); err != nil {
		return nil, fmt.Errorf("sign in to activity %d: %w", out.ActivityID, err)
	}
	s.log.Info("activity sign in",
		zap.Int64("activity_id", out.ActivityID),
		zap.Int64("user_id", out.UserID))
	return out, nil
}
