// Package permission ranks PomeloX roles and decides which parts of a scanned
// user's identity the scanning user may see.
package permission

import (
	"strconv"
	"strings"
)

// Level is an ordinal role ranking. Higher values carry more authority.
type Level int

const (
	// Guest is an anonymous or unrecognised user.
	Guest Level = iota
	// User is a common registered user.
	User
	// Staff is an internal staff member.
	Staff
	// PartAdmin administers a part of the organization.
	PartAdmin
	// Admin is a global administrator.
	Admin
)

// Role keys as stored on remote user records.
const (
	RoleManage     = "manage"
	RolePartManage = "part_manage"
	RoleStaff      = "staff"
	RoleCommon     = "common"
)

// RoleHierarchy lists the known role keys from highest to lowest.
var RoleHierarchy = []string{RoleManage, RolePartManage, RoleStaff, RoleCommon}

// FromRoleKey maps a role key to its level. Unknown keys are Guest.
func FromRoleKey(roleKey string) Level {
	switch roleKey {
	case RoleManage:
		return Admin
	case RolePartManage:
		return PartAdmin
	case RoleStaff:
		return Staff
	case RoleCommon:
		return User
	default:
		return Guest
	}
}

// FromPositionLevel maps a position level ("admin", "part_admin", ...) to its level.
func FromPositionLevel(level string) Level {
	switch level {
	case "admin":
		return Admin
	case "part_admin":
		return PartAdmin
	case "staff":
		return Staff
	case "user":
		return User
	default:
		return Guest
	}
}

// Parse accepts a role key, a position level, a level name or a level number.
func Parse(s string) (Level, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		l := Level(n)
		return l, l.Valid()
	}
	switch s {
	case RoleManage, "admin":
		return Admin, true
	case RolePartManage, "part_admin":
		return PartAdmin, true
	case RoleStaff:
		return Staff, true
	case RoleCommon, "user":
		return User, true
	case "guest":
		return Guest, true
	}
	return Guest, false
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool { return l >= Guest && l <= Admin }

// String returns the enum name of the level.
func (l Level) String() string {
	switch l {
	case Admin:
		return "ADMIN"
	case PartAdmin:
		return "PART_ADMIN"
	case Staff:
		return "STAFF"
	case User:
		return "USER"
	default:
		return "GUEST"
	}
}

// Name is a localized display name.
type Name struct {
	Zh string `json:"zh"`
	En string `json:"en"`
}

// DisplayName returns the localized name of a level.
func DisplayName(l Level) Name {
	switch l {
	case Admin:
		return Name{Zh: "总管理员", En: "Administrator"}
	case PartAdmin:
		return Name{Zh: "分管理员", En: "Partial Administrator"}
	case Staff:
		return Name{Zh: "内部员工", En: "Staff"}
	case User:
		return Name{Zh: "普通用户", En: "User"}
	default:
		return Name{Zh: "访客", En: "Guest"}
	}
}

// Color returns the badge color used for a level.
func Color(l Level) string {
	switch l {
	case Admin:
		return "#DC2626"
	case PartAdmin:
		return "#EA580C"
	case Staff:
		return "#2563EB"
	case User:
		return "#16A34A"
	default:
		return "#6B7280"
	}
}
