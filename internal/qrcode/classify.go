package qrcode

import (
	"strings"
)

// Kind is the type of a scanned code.
type Kind string

const (
	KindHashIdentity   Kind = "hash_identity"
	KindSignedIdentity Kind = "signed_identity"
	KindUserIdentity   Kind = "user_identity"
	KindActivity       Kind = "activity"
	KindUnknown        Kind = "unknown"
)

// IsIdentity reports whether k identifies a user.
func (k Kind) IsIdentity() bool {
	return k == KindHashIdentity || k == KindSignedIdentity || k == KindUserIdentity
}

// Classify determines the kind of code from its prefix or shape.
func Classify(code string) Kind {
	code = strings.TrimSpace(code)
	switch {
	case strings.HasPrefix(code, SignedPrefix):
		return KindSignedIdentity
	case strings.HasPrefix(code, HashPrefix):
		return KindHashIdentity
	case strings.HasPrefix(code, UserPrefix):
		return KindUserIdentity
	case strings.HasPrefix(code, ActivityPrefix):
		return KindActivity
	}
	if _, err := ParseActivityCode(code); err == nil {
		return KindActivity
	}
	return KindUnknown
}
