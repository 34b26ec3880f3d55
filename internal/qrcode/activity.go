package qrcode

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ActivityPrefix starts activity sign-in codes.
const ActivityPrefix = "VG_ACTIVITY_"

// ErrNotActivityCode is returned when a code carries no activity reference.
var ErrNotActivityCode = errors.New("not an activity code")

// ActivityRef is what an activity code points at: either a plain activity ID
// or the MD5 hash of one, which needs decoding.
type ActivityRef struct {
	ID   int64  `json:"activityId,omitempty"`
	Hash string `json:"hash,omitempty"`
}

// NeedsDecoding reports whether the reference is a hash.
func (r ActivityRef) NeedsDecoding() bool { return r.ID == 0 && r.Hash != "" }

// ParseActivityCode understands VG_ACTIVITY_{base64 JSON}, VG_ACTIVITY_{id},
// bare digits and 32-hex MD5 payloads (with or without the prefix).
func ParseActivityCode(code string) (ActivityRef, error) {
	code = strings.TrimSpace(code)
	payload := code
	prefixed := strings.HasPrefix(code, ActivityPrefix)
	if prefixed {
		payload = strings.TrimPrefix(code, ActivityPrefix)
	}
	if payload == "" {
		return ActivityRef{}, ErrNotActivityCode
	}

	if id, err := strconv.ParseInt(payload, 10, 64); err == nil {
		if id <= 0 {
			return ActivityRef{}, ErrNotActivityCode
		}
		return ActivityRef{ID: id}, nil
	}
	if lower := strings.ToLower(payload); isLowerHex(lower, 32) {
		return ActivityRef{Hash: lower}, nil
	}
	if !prefixed {
		return ActivityRef{}, ErrNotActivityCode
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ActivityRef{}, ErrNotActivityCode
	}
	var body struct {
		ActivityID json.Number `json:"activityId"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ActivityRef{}, ErrNotActivityCode
	}
	id, err := strconv.ParseInt(body.ActivityID.String(), 10, 64)
	if err != nil || id <= 0 {
		return ActivityRef{}, ErrNotActivityCode
	}
	return ActivityRef{ID: id}, nil
}

// EncodeActivityCode renders the canonical code for an activity ID.
func EncodeActivityCode(id int64) string {
	return ActivityPrefix + strconv.FormatInt(id, 10)
}
