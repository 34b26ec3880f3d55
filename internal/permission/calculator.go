package permission

import "github.com/atinyakov/PomeloX/internal/models"

// Permissions describes what a scanner may see of a scanned user.
type Permissions struct {
	CanViewBasicInfo        bool  `json:"canViewBasicInfo"`
	CanViewContactInfo      bool  `json:"canViewContactInfo"`
	CanViewStudentID        bool  `json:"canViewStudentId"`
	CanViewActivityStats    bool  `json:"canViewActivityStats"`
	CanViewRecentActivities bool  `json:"canViewRecentActivities"`
	CanViewSensitiveInfo    bool  `json:"canViewSensitiveInfo"`
	CanViewFullProfile      bool  `json:"canViewFullProfile"`
	IsHigherAuthority       bool  `json:"isHigherAuthority"`
	AccessLevel             Level `json:"accessLevel"`
}

// Calculate returns the permissions a scanner at level scanner has over a
// target at level target. It is pure and total over all level pairs.
func Calculate(scanner, target Level) Permissions {
	higher := scanner > target
	return Permissions{
		CanViewBasicInfo:        true,
		CanViewContactInfo:      scanner >= Staff || scanner >= target,
		CanViewStudentID:        scanner >= Staff,
		CanViewActivityStats:    scanner >= PartAdmin || higher,
		CanViewRecentActivities: scanner >= Staff,
		CanViewSensitiveInfo:    scanner >= Admin || scanner-target >= 2,
		CanViewFullProfile:      scanner >= Staff,
		IsHigherAuthority:       higher,
		AccessLevel:             scanner,
	}
}

// Presets are the typical permission sets of each level.
var Presets = map[Level]Permissions{
	Guest: {
		CanViewBasicInfo: true,
		AccessLevel:      Guest,
	},
	User: {
		CanViewBasicInfo:   true,
		CanViewContactInfo: true,
		AccessLevel:        User,
	},
	Staff: {
		CanViewBasicInfo:        true,
		CanViewContactInfo:      true,
		CanViewStudentID:        true,
		CanViewRecentActivities: true,
		CanViewFullProfile:      true,
		IsHigherAuthority:       true,
		AccessLevel:             Staff,
	},
	PartAdmin: {
		CanViewBasicInfo:        true,
		CanViewContactInfo:      true,
		CanViewStudentID:        true,
		CanViewActivityStats:    true,
		CanViewRecentActivities: true,
		CanViewFullProfile:      true,
		IsHigherAuthority:       true,
		AccessLevel:             PartAdmin,
	},
	Admin: {
		CanViewBasicInfo:        true,
		CanViewContactInfo:      true,
		CanViewStudentID:        true,
		CanViewActivityStats:    true,
		CanViewRecentActivities: true,
		CanViewSensitiveInfo:    true,
		CanViewFullProfile:      true,
		IsHigherAuthority:       true,
		AccessLevel:             Admin,
	},
}

// Description summarises a permission set for display.
func Description(p Permissions) string {
	switch {
	case p.CanViewSensitiveInfo:
		return "You can view all information of this user"
	case p.IsHigherAuthority:
		return "You can view detailed information of this user"
	case p.CanViewFullProfile:
		return "You can view the basic profile of this user"
	case p.CanViewBasicInfo:
		return "You can only view public information of this user"
	default:
		return "You have no permission to view this user"
	}
}

// ScannedUser is the view of a scanned identity after permission filtering.
// Fields the scanner may not see are left empty.
type ScannedUser struct {
	UserID              string               `json:"userId"`
	UserName            string               `json:"userName"`
	LegalName           string               `json:"legalName"`
	NickName            string               `json:"nickName,omitempty"`
	AvatarURL           string               `json:"avatarUrl,omitempty"`
	CurrentOrganization *models.Organization `json:"currentOrganization,omitempty"`
	School              *models.School       `json:"school,omitempty"`
	Position            *models.Position     `json:"position,omitempty"`
	Email               string               `json:"email,omitempty"`
	StudentID           string               `json:"studentId,omitempty"`
	DeptID              string               `json:"deptId,omitempty"`
	MemberOrganizations []models.Membership  `json:"memberOrganizations,omitempty"`
}

// Filter projects data through p.
func Filter(p Permissions, data models.UserIdentityData) ScannedUser {
	out := ScannedUser{
		UserID:    data.UserID,
		UserName:  data.UserName,
		LegalName: data.LegalName,
	}
	if !p.CanViewBasicInfo {
		return out
	}
	out.NickName = data.NickName
	out.AvatarURL = data.AvatarURL
	out.CurrentOrganization = data.CurrentOrganization
	out.School = data.School
	out.Position = data.Position
	if p.CanViewContactInfo {
		out.Email = data.Email
	}
	if p.CanViewStudentID {
		out.StudentID = data.StudentID
	}
	if p.CanViewFullProfile {
		out.MemberOrganizations = data.MemberOrganizations
	}
	if p.CanViewSensitiveInfo {
		out.DeptID = data.DeptID
	}
	return out
}
