// Package models defines the core data structures exchanged with the PomeloX
// API and carried inside identity codes.
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// FlexID is an identifier the remote API sends either as a JSON number or as a
// JSON string. It is always kept in its string form.
type FlexID string

// UnmarshalJSON accepts numbers, strings and null.
func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// String returns the identifier as text.
func (f FlexID) String() string { return string(f) }

// Int returns the identifier as an integer, or 0 when it is not numeric.
func (f FlexID) Int() int64 {
	n, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Role is a role entry attached to a remote user. Older endpoints send the key
// as "key", newer ones as "roleKey".
type Role struct {
	Key      string `json:"key,omitempty"`
	RoleKey  string `json:"roleKey,omitempty"`
	RoleName string `json:"roleName,omitempty"`
}

// EffectiveKey returns whichever key field is populated.
func (r Role) EffectiveKey() string {
	if r.Key != "" {
		return r.Key
	}
	return r.RoleKey
}

// Dept is the department (school) block of a remote user.
type Dept struct {
	DeptID    FlexID `json:"deptId"`
	DeptName  string `json:"deptName"`
	ParentID  FlexID `json:"parentId,omitempty"`
	Ancestors string `json:"ancestors,omitempty"`
}

// RemoteUser is the user record returned by /app/user/info.
type RemoteUser struct {
	UserID      FlexID `json:"userId"`
	UserName    string `json:"userName"`
	LegalName   string `json:"legalName"`
	NickName    string `json:"nickName"`
	Email       string `json:"email,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	PhoneNumber string `json:"phonenumber,omitempty"`
	Sex         FlexID `json:"sex,omitempty"`
	DeptID      FlexID `json:"deptId,omitempty"`
	OrgID       FlexID `json:"orgId,omitempty"`
	Dept        *Dept  `json:"dept,omitempty"`
	Roles       []Role `json:"roles,omitempty"`
	Role        *Role  `json:"role,omitempty"`
}

// Organization describes the organization a user currently acts for.
type Organization struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	DisplayNameZh string `json:"displayNameZh" yaml:"displayNameZh"`
	DisplayNameEn string `json:"displayNameEn" yaml:"displayNameEn"`
}

// Membership links a user to an organization.
type Membership struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	IsPrimary bool   `json:"isPrimary"`
	JoinedAt  string `json:"joinedAt"`
	Status    string `json:"status"`
}

// School describes the school a user belongs to.
type School struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FullName  string `json:"fullName"`
	ParentID  string `json:"parentId,omitempty"`
	Ancestors string `json:"ancestors,omitempty"`
}

// Position is the highest role a user holds.
type Position struct {
	RoleKey       string `json:"roleKey"`
	RoleName      string `json:"roleName"`
	DisplayName   string `json:"displayName"`
	DisplayNameEn string `json:"displayNameEn"`
	// Level is one of "admin", "part_admin", "staff", "user".
	Level string `json:"level"`
}

// IdentityType is the type marker carried in every identity payload.
const IdentityType = "user_identity"

// UserIdentityData is the identity carried by (or resolved from) a user's QR code.
type UserIdentityData struct {
	UserID              string        `json:"userId"`
	UserName            string        `json:"userName"`
	LegalName           string        `json:"legalName"`
	NickName            string        `json:"nickName,omitempty"`
	Email               string        `json:"email,omitempty"`
	AvatarURL           string        `json:"avatarUrl,omitempty"`
	StudentID           string        `json:"studentId,omitempty"`
	DeptID              string        `json:"deptId,omitempty"`
	CurrentOrganization *Organization `json:"currentOrganization,omitempty"`
	MemberOrganizations []Membership  `json:"memberOrganizations,omitempty"`
	School              *School       `json:"school,omitempty"`
	Position            *Position     `json:"position,omitempty"`
	Type                string        `json:"type"`
}

// OrgID returns the current organization ID or "".
func (u UserIdentityData) OrgID() string {
	if u.CurrentOrganization == nil {
		return ""
	}
	return u.CurrentOrganization.ID
}

// SchoolID returns the school ID or "".
func (u UserIdentityData) SchoolID() string {
	if u.School == nil {
		return ""
	}
	return u.School.ID
}

// RoleKey returns the position role key or "".
func (u UserIdentityData) RoleKey() string {
	if u.Position == nil {
		return ""
	}
	return u.Position.RoleKey
}

// Activity is an activity as listed by the remote API.
type Activity struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ActivityName   string `json:"activityName,omitempty"`
	Icon           string `json:"icon,omitempty"`
	StartTime      string `json:"startTime,omitempty"`
	EndTime        string `json:"endTime,omitempty"`
	Address        string `json:"address,omitempty"`
	Enrollment     int    `json:"enrollment,omitempty"`
	Detail         string `json:"detail,omitempty"`
	SignStartTime  string `json:"signStartTime,omitempty"`
	SignEndTime    string `json:"signEndTime,omitempty"`
	CreateUserID   int64  `json:"createUserId,omitempty"`
	CreateName     string `json:"createName,omitempty"`
	CreateNickName string `json:"createNickName,omitempty"`
	// SignStatus: 0 not enrolled, -1 enrolled, 1 signed in.
	SignStatus int `json:"signStatus"`
	// Type: -1 upcoming, 1 started, 2 ended.
	Type int `json:"type,omitempty"`
}

// Sign statuses of an activity relative to the requesting user.
const (
	SignStatusNotEnrolled = 0
	SignStatusEnrolled    = -1
	SignStatusSignedIn    = 1
)

// Title returns whichever name field the endpoint populated.
func (a Activity) Title() string {
	if a.ActivityName != "" {
		return a.ActivityName
	}
	return a.Name
}

// RemoteOrganization is an entry of /app/organization/list.
type RemoteOrganization struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CreateTime string `json:"createTime,omitempty"`
}

// SMSResult is the response of /sms/vercodeSms. It is not wrapped in the
// usual envelope.
type SMSResult struct {
	BizID     string `json:"bizId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// Registration is the form submitted to /app/user/add.
type Registration struct {
	UserName    string
	LegalName   string
	NickName    string
	Password    string
	PhoneNumber string
	Email       string
	Sex         string
	DeptID      string
	VerCode     string
	InvCode     string
	BizID       string
	OrgID       string
}

// VolunteerRecord is a single volunteer check-in/check-out record.
type VolunteerRecord struct {
	ID               int64  `json:"id"`
	UserID           int64  `json:"userId"`
	StartTime        string `json:"startTime,omitempty"`
	EndTime          string `json:"endTime,omitempty"`
	Type             int    `json:"type,omitempty"`
	OperateUserID    int64  `json:"operateUserId,omitempty"`
	OperateLegalName string `json:"operateLegalName,omitempty"`
	LegalName        string `json:"legalName,omitempty"`
	Remark           string `json:"remark,omitempty"`
}

// VolunteerHours is the accumulated volunteer time of a user.
type VolunteerHours struct {
	UserID       int64  `json:"userId"`
	TotalMinutes int64  `json:"totalMinutes"`
	LegalName    string `json:"legalName,omitempty"`
}

// Department is a school entry from /app/dept/list.
type Department struct {
	DeptID   int64        `json:"deptId"`
	DeptName string       `json:"deptName"`
	ParentID int64        `json:"parentId,omitempty"`
	Children []Department `json:"children,omitempty"`
}

// ScanLog is the audit record of one identity code verification.
type ScanLog struct {
	ID          string    `json:"id"`
	ScannerID   string    `json:"scannerId"`
	TargetID    string    `json:"targetId"`
	Kind        string    `json:"kind"`
	Verified    bool      `json:"verified"`
	AccessLevel int       `json:"accessLevel"`
	CreatedAt   time.Time `json:"createdAt"`
}
