package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/cache"
	"github.com/atinyakov/PomeloX/internal/identity"
	"github.com/atinyakov/PomeloX/internal/models"
	"github.com/atinyakov/PomeloX/internal/permission"
	"github.com/atinyakov/PomeloX/internal/qrcode"
)

// ScanLogRepository persists identity scans.
type ScanLogRepository interface {
	// Insert stores log, filling in its ID and creation time when empty.
	Insert(ctx context.Context, log *models.ScanLog) error
	// ListByScanner returns the newest scans made by scannerID.
	ListByScanner(ctx context.Context, scannerID string, limit int) ([]models.ScanLog, error)
}

// RevocationRepository persists revoked signed-code IDs.
type RevocationRepository interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
}

// Scan listing bounds.
const (
	DefaultScanLimit = 20
	MaxScanLimit     = 100
)

// IssuedCode is a freshly generated identity code.
type IssuedCode struct {
	Code      string      `json:"code"`
	Kind      qrcode.Kind `json:"kind"`
	TokenID   string      `json:"tokenId,omitempty"`
	ExpiresAt time.Time   `json:"expiresAt,omitzero"`
}

// Verification is the outcome of scanning an identity code.
type Verification struct {
	Kind qrcode.Kind `json:"kind"`
	// Verified is true when the code was cryptographically checked against
	// the user's current profile. Legacy user codes are never verified.
	Verified     bool                   `json:"verified"`
	User         permission.ScannedUser `json:"user"`
	Permissions  permission.Permissions `json:"permissions"`
	ScannerLevel permission.Level       `json:"scannerLevel"`
	TargetLevel  permission.Level       `json:"targetLevel"`
	Description  string                 `json:"description"`
	IssuedAt     time.Time              `json:"issuedAt,omitzero"`
	ExpiresAt    time.Time              `json:"expiresAt,omitzero"`
}

// IdentityService issues and verifies identity codes.
type IdentityService struct {
	dir         *directory
	mapper      *identity.Mapper
	cache       cache.Cache
	signer      *qrcode.Signer
	hasher      qrcode.Hasher
	scans       ScanLogRepository
	revocations RevocationRepository
	log         *zap.Logger
	now         func() time.Time
}

// IdentityOption configures an IdentityService.
type IdentityOption func(*IdentityService)

// WithSigner enables signed identity codes.
func WithSigner(s *qrcode.Signer) IdentityOption {
	return func(svc *IdentityService) { svc.signer = s }
}

// WithHasher selects the hash used for new hash codes (SHA-256 by default).
func WithHasher(h qrcode.Hasher) IdentityOption {
	return func(svc *IdentityService) { svc.hasher = h }
}

// WithScanLog enables scan logging.
func WithScanLog(r ScanLogRepository) IdentityOption {
	return func(svc *IdentityService) { svc.scans = r }
}

// WithRevocations persists revocations beyond the cache.
func WithRevocations(r RevocationRepository) IdentityOption {
	return func(svc *IdentityService) { svc.revocations = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) IdentityOption {
	return func(svc *IdentityService) { svc.now = now }
}

// WithUserTTL sets how long user lookups are cached.
func WithUserTTL(ttl time.Duration) IdentityOption {
	return func(svc *IdentityService) { svc.dir.ttl = ttl }
}

// NewIdentityService builds the service. A nil cache selects an in-memory one.
func NewIdentityService(up Upstream, mapper *identity.Mapper, c cache.Cache, log *zap.Logger, opts ...IdentityOption) *IdentityService {
	if c == nil {
		c = cache.NewMemory()
	}
	svc := &IdentityService{
		dir:    &directory{upstream: up, cache: c, ttl: DefaultUserTTL, log: log},
		mapper: mapper,
		cache:  c,
		hasher: qrcode.SHA256Hasher{},
		log:    log,
		now:    time.Now,
	}
	for _, o := range opts {
		o(svc)
	}
	return svc
}

// caller resolves and maps the user owning token.
func (s *IdentityService) caller(ctx context.Context, token string) (models.UserIdentityData, error) {
	u, err := s.dir.self(ctx, token)
	if err != nil {
		return models.UserIdentityData{}, fmt.Errorf("resolve caller: %w", err)
	}
	return s.mapper.Map(u), nil
}

// IssueSigned returns a signed identity code for the caller.
func (s *IdentityService) IssueSigned(ctx context.Context, token string) (*IssuedCode, error) {
	if s.signer == nil {
		return nil, ErrSigningDisabled
	}
	data, err := s.caller(ctx, token)
	if err != nil {
		return nil, err
	}
	code, claims, err := s.signer.Issue(data, s.now())
	if err != nil {
		return nil, fmt.Errorf("issue signed code: %w", err)
	}
	codesIssuedTotal.WithLabelValues(string(qrcode.KindSignedIdentity)).Inc()
	return &IssuedCode{
		Code:      code,
		Kind:      qrcode.KindSignedIdentity,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IssueHash returns a hash identity code for the caller.
func (s *IdentityService) IssueHash(ctx context.Context, token string) (*IssuedCode, error) {
	data, err := s.caller(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	code, err := qrcode.GenerateHashToken(data, now, s.hasher)
	if err != nil {
		return nil, fmt.Errorf("issue hash code: %w", err)
	}
	codesIssuedTotal.WithLabelValues(string(qrcode.KindHashIdentity)).Inc()
	return &IssuedCode{
		Code:      code,
		Kind:      qrcode.KindHashIdentity,
		ExpiresAt: time.Unix(now.Unix(), 0).Add(qrcode.MaxHashTokenAge).UTC(),
	}, nil
}

// IssueUserCode returns a legacy VG_USER_ code for the caller.
func (s *IdentityService) IssueUserCode(ctx context.Context, token string) (*IssuedCode, error) {
	data, err := s.caller(ctx, token)
	if err != nil {
		return nil, err
	}
	code, err := qrcode.EncodeUserCode(data, s.now())
	if err != nil {
		return nil, fmt.Errorf("issue user code: %w", err)
	}
	codesIssuedTotal.WithLabelValues(string(qrcode.KindUserIdentity)).Inc()
	return &IssuedCode{Code: code, Kind: qrcode.KindUserIdentity}, nil
}

// Verify checks a scanned identity code on behalf of the scanner owning
// token and returns the target's profile filtered by the scanner's
// permissions. Every scan that resolves a target is logged.
func (s *IdentityService) Verify(ctx context.Context, token, code string) (v *Verification, err error) {
	kind := qrcode.Classify(code)
	defer func() { scansTotal.WithLabelValues(string(kind), result(err)).Inc() }()

	if !kind.IsIdentity() {
		return nil, ErrNotIdentityCode
	}
	scanner, err := s.caller(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	v = &Verification{Kind: kind, ScannerLevel: identity.Level(scanner)}

	var target models.UserIdentityData
	switch kind {
	case qrcode.KindSignedIdentity:
		if s.signer == nil {
			return nil, ErrSigningDisabled
		}
		claims, err := s.signer.Verify(code, now)
		if err != nil {
			return nil, err
		}
		revoked, err := s.isRevoked(ctx, claims.ID, now)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrRevoked
		}
		if target, err = s.target(ctx, token, claims.UserID); err != nil {
			return nil, err
		}
		v.Verified = true
		if claims.IssuedAt != nil {
			v.IssuedAt = claims.IssuedAt.UTC()
		}
		v.ExpiresAt = claims.ExpiresAt.UTC()

	case qrcode.KindHashIdentity:
		tok, err := qrcode.ParseHashToken(code, now)
		if err != nil {
			return nil, err
		}
		if target, err = s.target(ctx, token, tok.UserID); err != nil {
			return nil, err
		}
		if !qrcode.ValidateIdentityHash(tok, target) {
			s.record(ctx, scanner, target.UserID, kind, false, v.ScannerLevel)
			return nil, ErrIdentityMismatch
		}
		v.Verified = true
		v.IssuedAt = tok.IssuedAt().UTC()
		v.ExpiresAt = v.IssuedAt.Add(qrcode.MaxHashTokenAge)

	case qrcode.KindUserIdentity:
		decoded, err := qrcode.DecodeUserCode(code)
		if err != nil {
			return nil, err
		}
		// the payload is self-asserted; show the user's current profile
		if target, err = s.target(ctx, token, decoded.UserID); err != nil {
			return nil, err
		}
	}

	v.TargetLevel = identity.Level(target)
	v.Permissions = permission.Calculate(v.ScannerLevel, v.TargetLevel)
	v.User = permission.Filter(v.Permissions, target)
	v.Description = permission.Description(v.Permissions)
	s.record(ctx, scanner, target.UserID, kind, v.Verified, v.ScannerLevel)
	return v, nil
}

func (s *IdentityService) target(ctx context.Context, token, userID string) (models.UserIdentityData, error) {
	u, err := s.dir.user(ctx, token, userID)
	if err != nil {
		return models.UserIdentityData{}, fmt.Errorf("resolve user %s: %w", userID, err)
	}
	return s.mapper.Map(u), nil
}

// record writes a scan log. Failures are logged and never fail the scan.
func (s *IdentityService) record(ctx context.Context, scanner models.UserIdentityData, targetID string, kind qrcode.Kind, verified bool, level permission.Level) {
	if s.scans == nil {
		return
	}
	entry := &models.ScanLog{
		ScannerID:   scanner.UserID,
		TargetID:    targetID,
		Kind:        string(kind),
		Verified:    verified,
		AccessLevel: int(level),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.scans.Insert(ctx, entry); err != nil {
		s.log.Error("failed to record scan",
			zap.String("scanner", scanner.UserID),
			zap.String("target", targetID),
			zap.Error(err))
	}
}

func (s *IdentityService) isRevoked(ctx context.Context, jti string, now time.Time) (bool, error) {
	if jti == "" {
		return false, nil
	}
	_, err := s.cache.Get(ctx, cache.RevokedKey(jti))
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, cache.ErrMiss):
		s.log.Warn("revocation cache read failed", zap.Error(err))
	}
	if s.revocations == nil {
		return false, nil
	}
	revoked, err := s.revocations.IsRevoked(ctx, jti, now)
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return revoked, nil
}

// Revoke invalidates the signed code with ID jti until the given time (the
// signer's TTL from now when zero). Only admins may revoke.
func (s *IdentityService) Revoke(ctx context.Context, token, jti string, until time.Time) error {
	if jti == "" {
		return fmt.Errorf("%w: jti is required", ErrInvalidInput)
	}
	caller, err := s.caller(ctx, token)
	if err != nil {
		return err
	}
	if !permission.HasMinimum(identity.Level(caller), permission.Admin) {
		return ErrForbidden
	}

	now := s.now()
	if until.IsZero() {
		ttl := qrcode.DefaultSignedTTL
		if s.signer != nil {
			ttl = s.signer.TTL()
		}
		until = now.Add(ttl)
	}
	if !until.After(now) {
		return fmt.Errorf("%w: revocation must end in the future", ErrInvalidInput)
	}

	if err := s.cache.Set(ctx, cache.RevokedKey(jti), []byte(caller.UserID), until.Sub(now)); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	if s.revocations != nil {
		if err := s.revocations.Revoke(ctx, jti, until); err != nil {
			return fmt.Errorf("revoke: %w", err)
		}
	}
	s.log.Info("signed identity code revoked",
		zap.String("jti", jti),
		zap.String("by", caller.UserID),
		zap.Time("until", until))
	return nil
}

// RecentScans returns the caller's latest scans, newest first.
func (s *IdentityService) RecentScans(ctx context.Context, token string, limit int) ([]models.ScanLog, error) {
	if s.scans == nil {
		return nil, ErrScanLogDisabled
	}
	switch {
	case limit <= 0:
		limit = DefaultScanLimit
	case limit > MaxScanLimit:
		limit = MaxScanLimit
	}
	caller, err := s.caller(ctx, token)
	if err != nil {
		return nil, err
	}
	logs, err := s.scans.ListByScanner(ctx, caller.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent scans: %w", err)
	}
	return logs, nil
}
