package qrcode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/atinyakov/PomeloX/internal/models"
)

// SignedPrefix starts every signed identity code.
const SignedPrefix = "VG_SIGNED_"

// Issuer is the iss claim of signed identity codes.
const Issuer = "pomelox"

// DefaultSignedTTL is the lifetime of a signed identity code.
const DefaultSignedTTL = 5 * time.Minute

var (
	// ErrNotSignedToken is returned for codes without the VG_SIGNED_ prefix.
	ErrNotSignedToken = errors.New("not a signed identity code")
	// ErrInvalidSignature is returned when a signed code fails verification.
	ErrInvalidSignature = errors.New("invalid signed identity code")
	// ErrMissingSecret is returned when a Signer has no key.
	ErrMissingSecret = errors.New("signing secret is not configured")
)

// Claims are carried by a signed identity code.
type Claims struct {
	UserID   string `json:"uid"`
	UserName string `json:"unm"`
	RoleKey  string `json:"role,omitempty"`
	OrgID    string `json:"org,omitempty"`
	SchoolID string `json:"sch,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues and verifies signed identity codes with an HMAC key.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner returns a Signer. A non-positive ttl selects DefaultSignedTTL.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultSignedTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the lifetime of issued codes.
func (s *Signer) TTL() time.Duration { return s.ttl }

// Issue returns a signed identity code for user, valid from now for the
// signer's TTL, along with its claims.
func (s *Signer) Issue(user models.UserIdentityData, now time.Time) (string, *Claims, error) {
	if user.UserID == "" {
		return "", nil, ErrMissingUserID
	}
	now = now.UTC()
	claims := &Claims{
		UserID:   user.UserID,
		UserName: user.UserName,
		RoleKey:  user.RoleKey(),
		OrgID:    user.OrgID(),
		SchoolID: user.SchoolID(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign identity code: %w", err)
	}
	return SignedPrefix + signed, claims, nil
}

// Verify checks the signature, issuer and expiry of a signed identity code.
// Expired codes yield ErrTokenExpired; anything else invalid ErrInvalidSignature.
func (s *Signer) Verify(code string, now time.Time) (*Claims, error) {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, SignedPrefix) {
		return nil, ErrNotSignedToken
	}
	raw := strings.TrimPrefix(code, SignedPrefix)

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}
