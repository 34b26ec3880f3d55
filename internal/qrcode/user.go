package qrcode

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/PomeloX/internal/models"
	"github.com/atinyakov/PomeloX/internal/permission"
)

// UserPrefix starts every legacy user code.
const UserPrefix = "VG_USER_"

// UserIDPrefix starts the id-only code shown by current app versions:
// VG_USER_ID_{userId}.
const UserIDPrefix = UserPrefix + "ID_"

// defaultRoleKey is written to compact codes of users without a role.
const defaultRoleKey = "user"

// compactRoleKeys are the role keys a compact code may end with, longest
// first so that part_manage is not read as manage.
var compactRoleKeys = func() []string {
	keys := append(slices.Clone(permission.RoleHierarchy), defaultRoleKey)
	slices.SortStableFunc(keys, func(a, b string) int { return len(b) - len(a) })
	return keys
}()

// maxUserPayload is the JSON size above which the compact form is used.
const maxUserPayload = 800

var (
	// ErrNotUserCode is returned for codes without the VG_USER_ prefix.
	ErrNotUserCode = errors.New("not a user identity code")
	// ErrIncompleteIdentity is returned when a decoded identity lacks required fields.
	ErrIncompleteIdentity = errors.New("identity code is missing required fields")
)

// EncodeUserCode embeds data in a legacy user code:
// VG_USER_ + base64(encodeURIComponent(JSON)). Payloads over 800 bytes fall
// back to VG_USER_{userId}_{legalName}_{roleKey}_{unixMillis}.
func EncodeUserCode(data models.UserIdentityData, now time.Time) (string, error) {
	if data.UserID == "" {
		return "", ErrMissingUserID
	}
	data.Type = models.IdentityType
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal identity: %w", err)
	}
	if len(raw) > maxUserPayload {
		role := data.RoleKey()
		if role == "" {
			role = defaultRoleKey
		}
		return fmt.Sprintf("%s%s_%s_%s_%d", UserPrefix, data.UserID, data.LegalName, role, now.UnixMilli()), nil
	}
	return UserPrefix + base64.StdEncoding.EncodeToString([]byte(encodeURIComponent(string(raw)))), nil
}

// DecodeUserCode extracts identity data from a legacy user code. The base64
// form, the compact form and the id-only form are understood; the id-only
// form carries nothing but the user ID.
func DecodeUserCode(code string) (models.UserIdentityData, error) {
	code = strings.TrimSpace(code)
	if id, ok := strings.CutPrefix(code, UserIDPrefix); ok {
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			return models.UserIdentityData{}, fmt.Errorf("user id %q: %w", id, ErrMalformedToken)
		}
		return models.UserIdentityData{UserID: id, Type: models.IdentityType}, nil
	}
	if !strings.HasPrefix(code, UserPrefix) {
		return models.UserIdentityData{}, ErrNotUserCode
	}
	payload := strings.TrimPrefix(code, UserPrefix)

	if data, err := decodeUserPayload(payload); err == nil {
		return data, nil
	} else if errors.Is(err, ErrIncompleteIdentity) {
		return models.UserIdentityData{}, err
	}
	return decodeCompactUser(payload)
}

func decodeUserPayload(payload string) (models.UserIdentityData, error) {
	var data models.UserIdentityData
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return data, fmt.Errorf("base64: %w", err)
	}
	text, err := url.PathUnescape(string(decoded))
	if err != nil {
		return data, fmt.Errorf("unescape: %w", err)
	}
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return data, fmt.Errorf("json: %w", err)
	}
	if data.UserID == "" || data.UserName == "" || data.LegalName == "" {
		return models.UserIdentityData{}, ErrIncompleteIdentity
	}
	return data, nil
}

func decodeCompactUser(payload string) (models.UserIdentityData, error) {
	parts := strings.Split(payload, "_")
	if len(parts) < 4 {
		return models.UserIdentityData{}, ErrMalformedToken
	}
	n := len(parts)
	if _, err := strconv.ParseInt(parts[n-1], 10, 64); err != nil {
		return models.UserIdentityData{}, fmt.Errorf("timestamp %q: %w", parts[n-1], ErrMalformedToken)
	}
	// legal names and role keys may both contain underscores.
	name, role := splitCompactRole(strings.Join(parts[1:n-1], "_"))
	data := models.UserIdentityData{
		UserID:    parts[0],
		LegalName: name,
		Position:  &models.Position{RoleKey: role},
		Type:      models.IdentityType,
	}
	if data.UserID == "" || data.LegalName == "" {
		return models.UserIdentityData{}, ErrIncompleteIdentity
	}
	return data, nil
}

// splitCompactRole separates "{legalName}_{roleKey}". Unknown role keys are
// taken to be the last segment.
func splitCompactRole(s string) (name, role string) {
	for _, key := range compactRoleKeys {
		if before, ok := strings.CutSuffix(s, "_"+key); ok {
			return before, key
		}
	}
	i := strings.LastIndexByte(s, '_')
	if i < 0 {
		return "", s
	}
	return s[:i], s[i+1:]
}

// encodeURIComponent escapes s the way browsers do: everything except
// A-Z a-z 0-9 - _ . ! ~ * ' ( ) is percent-encoded as UTF-8.
func encodeURIComponent(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}

func isURIUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
