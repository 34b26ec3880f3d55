package qrcode

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/PomeloX/internal/models"
)

func sampleUser() models.UserIdentityData {
	return models.UserIdentityData{
		UserID:              "12345",
		UserName:            "zhangsan",
		LegalName:           "张三丰",
		CurrentOrganization: &models.Organization{ID: "1", Name: "Student Union"},
		School:              &models.School{ID: "213", Name: "USC"},
		Position:            &models.Position{RoleKey: "common", Level: "user"},
		Type:                models.IdentityType,
	}
}

func TestHashInput(t *testing.T) {
	got := HashInput(sampleUser(), 1757555446)
	assert.Equal(t, "12345|zhangsan|张三|1|213|1757555446", got)

	bare := models.UserIdentityData{UserID: "7", UserName: "li", LegalName: "L"}
	assert.Equal(t, "7|li|L|||10", HashInput(bare, 10))
}

func TestHashInput_NameCountsUTF16Units(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"张三丰", "张三"},
		{"Li", "Li"},
		// 𠮷 (U+20BB7) занимает две UTF-16 единицы
		{"𠮷野家", "𠮷"},
		{"王𠮷", "王\uFFFD"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := models.UserIdentityData{UserID: "7", UserName: "li", LegalName: tt.name}
			assert.Equal(t, "7|li|"+tt.want+"|||10", HashInput(user, 10))
		})
	}
}

func TestHashers(t *testing.T) {
	tests := []struct {
		input  string
		sha    string
		legacy string
	}{
		{"12345|zhangsan|张三|1|213|1757555446", "e245432b", "0129e410"},
		{"abc", "ba7816bf", "00017862"},
		{"", "e3b0c442", "00000000"},
	}
	for _, tt := range tests {
		sha, err := SHA256Hasher{}.Sum(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.sha, sha, "sha256(%q)", tt.input)

		legacy, err := LegacyHasher{}.Sum(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.legacy, legacy, "legacy(%q)", tt.input)
	}
}

func TestGenerateParseValidate_RoundTrip(t *testing.T) {
	now := time.Unix(1757555446, 0)
	for _, h := range []Hasher{SHA256Hasher{}, LegacyHasher{}} {
		t.Run(h.Name(), func(t *testing.T) {
			user := sampleUser()
			code, err := GenerateHashToken(user, now, h)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(code, "VG_HASH_1757555446_12345_"))

			tok, err := ParseHashToken(code, now.Add(time.Hour))
			require.NoError(t, err)
			assert.Equal(t, "12345", tok.UserID)
			assert.Equal(t, int64(1757555446), tok.Timestamp)
			assert.Len(t, tok.Hash, HashLength)
			assert.True(t, ValidateIdentityHash(tok, user))

			changed := user
			changed.UserName = "lisi"
			assert.False(t, ValidateIdentityHash(tok, changed))

			other := user
			other.UserID = "54321"
			assert.False(t, ValidateIdentityHash(tok, other))
		})
	}
}

func TestGenerateHashToken_Errors(t *testing.T) {
	_, err := GenerateHashToken(models.UserIdentityData{}, time.Now(), nil)
	assert.ErrorIs(t, err, ErrMissingUserID)

	_, err = GenerateHashToken(models.UserIdentityData{UserID: "a_b"}, time.Now(), nil)
	assert.ErrorIs(t, err, ErrMalformedToken)

	_, err = GenerateHashToken(sampleUser(), time.Now(), failingHasher{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "broken hash")
}

type failingHasher struct{}

func (failingHasher) Name() string               { return "broken" }
func (failingHasher) Sum(string) (string, error) { return "", errors.New("boom") }

func TestParseHashToken_Errors(t *testing.T) {
	now := time.Unix(1757555446, 0)
	tests := []struct {
		name string
		code string
		want error
	}{
		{"wrong prefix", "VG_USER_abc", ErrNotHashToken},
		{"too few parts", "VG_HASH_1757555446_12345", ErrMalformedToken},
		{"too many parts", "VG_HASH_1757555446_12_345_03090ba7", ErrMalformedToken},
		{"bad timestamp", "VG_HASH_abc_12345_03090ba7", ErrMalformedToken},
		{"empty user", "VG_HASH_1757555446__03090ba7", ErrMalformedToken},
		{"short hash", "VG_HASH_1757555446_12345_03090b", ErrInvalidHash},
		{"upper hash", "VG_HASH_1757555446_12345_03090BA7", ErrInvalidHash},
		{"non hex hash", "VG_HASH_1757555446_12345_0309zza7", ErrInvalidHash},
		{"expired", fmt.Sprintf("VG_HASH_%d_12345_03090ba7", now.Add(-366*24*time.Hour).Unix()), ErrTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHashToken(tt.code, now)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseHashToken_KnownCode(t *testing.T) {
	tok, err := ParseHashToken(" VG_HASH_1757555446_12345_03090ba7 ", time.Unix(1757555446, 0).Add(364*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, HashToken{Timestamp: 1757555446, UserID: "12345", Hash: "03090ba7"}, tok)
	assert.Equal(t, "VG_HASH_1757555446_12345_03090ba7", tok.String())
}
