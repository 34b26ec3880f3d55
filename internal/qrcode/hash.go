// Package qrcode encodes and parses the codes shown as QR images by the PomeloX
// app: hashed identity codes, signed identity codes, legacy user codes and
// activity sign-in codes.
package qrcode

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/atinyakov/PomeloX/internal/models"
)

// HashPrefix starts every hashed identity code.
const HashPrefix = "VG_HASH_"

// HashLength is the number of hex characters kept from the digest.
const HashLength = 8

// MaxHashTokenAge is how long a hashed identity code stays valid.
const MaxHashTokenAge = 365 * 24 * time.Hour

var (
	// ErrNotHashToken is returned for codes without the VG_HASH_ prefix.
	ErrNotHashToken = errors.New("not a hash identity code")
	// ErrMalformedToken is returned for codes that do not split into five parts.
	ErrMalformedToken = errors.New("malformed identity code")
	// ErrInvalidHash is returned when the hash part is not 8 lowercase hex characters.
	ErrInvalidHash = errors.New("invalid identity hash")
	// ErrTokenExpired is returned for codes older than MaxHashTokenAge.
	ErrTokenExpired = errors.New("identity code expired")
	// ErrMissingUserID is returned when identity data has no user ID.
	ErrMissingUserID = errors.New("user id is required")
)

// Hasher turns a hash input string into an 8-character hex digest.
type Hasher interface {
	Name() string
	Sum(input string) (string, error)
}

// SHA256Hasher truncates a hex SHA-256 digest.
type SHA256Hasher struct{}

// Name implements Hasher.
func (SHA256Hasher) Name() string { return "sha256" }

// Sum implements Hasher.
func (SHA256Hasher) Sum(input string) (string, error) {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:HashLength], nil
}

// LegacyHasher is the additive 32-bit string hash used by clients that cannot
// compute SHA-256. It iterates UTF-16 code units: h = h*31 + c, wrapping at 32 bits.
type LegacyHasher struct{}

// Name implements Hasher.
func (LegacyHasher) Name() string { return "legacy" }

// Sum implements Hasher.
func (LegacyHasher) Sum(input string) (string, error) {
	var h int32
	for _, c := range utf16.Encode([]rune(input)) {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	s := strconv.FormatInt(v, 16)
	if len(s) < HashLength {
		s = strings.Repeat("0", HashLength-len(s)) + s
	}
	return s[:HashLength], nil
}

// HashInput builds the pipe-joined string the identity hash is computed over.
func HashInput(user models.UserIdentityData, timestamp int64) string {
	return strings.Join([]string{
		user.UserID,
		user.UserName,
		namePrefix(user.LegalName),
		user.OrgID(),
		user.SchoolID(),
		strconv.FormatInt(timestamp, 10),
	}, "|")
}

// namePrefix returns the first two UTF-16 code units of name, as scanning
// clients count them. A character outside the BMP takes both units; a split
// surrogate pair becomes U+FFFD, which is how it reaches the digest as UTF-8.
func namePrefix(name string) string {
	units := utf16.Encode([]rune(name))
	if len(units) <= 2 {
		return name
	}
	return string(utf16.Decode(units[:2]))
}

// HashToken is a parsed hashed identity code.
type HashToken struct {
	Timestamp int64  `json:"timestamp"`
	UserID    string `json:"userId"`
	Hash      string `json:"hash"`
}

// IssuedAt returns the token timestamp as time.
func (t HashToken) IssuedAt() time.Time { return time.Unix(t.Timestamp, 0) }

// String renders the token as VG_HASH_{ts}_{userId}_{hash}.
func (t HashToken) String() string {
	return fmt.Sprintf("%s%d_%s_%s", HashPrefix, t.Timestamp, t.UserID, t.Hash)
}

// GenerateHashToken returns the hashed identity code of user at now.
func GenerateHashToken(user models.UserIdentityData, now time.Time, h Hasher) (string, error) {
	if user.UserID == "" {
		return "", ErrMissingUserID
	}
	if strings.Contains(user.UserID, "_") {
		return "", fmt.Errorf("user id %q: %w", user.UserID, ErrMalformedToken)
	}
	if h == nil {
		h = SHA256Hasher{}
	}
	ts := now.Unix()
	sum, err := h.Sum(HashInput(user, ts))
	if err != nil {
		return "", fmt.Errorf("%s hash: %w", h.Name(), err)
	}
	return HashToken{Timestamp: ts, UserID: user.UserID, Hash: sum}.String(), nil
}

// ParseHashToken validates the structure and age of a hashed identity code.
// It does not check the hash against user data; see ValidateIdentityHash.
func ParseHashToken(code string, now time.Time) (HashToken, error) {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, HashPrefix) {
		return HashToken{}, ErrNotHashToken
	}
	parts := strings.Split(code, "_")
	if len(parts) != 5 {
		return HashToken{}, ErrMalformedToken
	}
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || ts <= 0 {
		return HashToken{}, fmt.Errorf("timestamp %q: %w", parts[2], ErrMalformedToken)
	}
	if parts[3] == "" {
		return HashToken{}, fmt.Errorf("empty user id: %w", ErrMalformedToken)
	}
	if !isLowerHex(parts[4], HashLength) {
		return HashToken{}, ErrInvalidHash
	}
	tok := HashToken{Timestamp: ts, UserID: parts[3], Hash: parts[4]}
	if now.Sub(tok.IssuedAt()) > MaxHashTokenAge {
		return tok, ErrTokenExpired
	}
	return tok, nil
}

// ValidateIdentityHash recomputes the hash of tok from user and reports whether
// it matches under either the SHA-256 or the legacy hasher.
func ValidateIdentityHash(tok HashToken, user models.UserIdentityData) bool {
	if tok.UserID != user.UserID {
		return false
	}
	input := HashInput(user, tok.Timestamp)
	for _, h := range []Hasher{SHA256Hasher{}, LegacyHasher{}} {
		sum, err := h.Sum(input)
		if err != nil {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(sum), []byte(tok.Hash)) == 1 {
			return true
		}
	}
	return false
}

func isLowerHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
