package identity

import (
	"strings"
	"time"

	"github.com/atinyakov/PomeloX/internal/models"
	"github.com/atinyakov/PomeloX/internal/permission"
)

type roleDisplay struct {
	zh, en, level string
}

var roleDisplays = map[string]roleDisplay{
	permission.RoleManage:     {zh: "总管理员", en: "Super Admin", level: "admin"},
	permission.RolePartManage: {zh: "分管理员", en: "Partial Admin", level: "part_admin"},
	permission.RoleStaff:      {zh: "内部员工", en: "Staff", level: "staff"},
	permission.RoleCommon:     {zh: "普通用户", en: "User", level: "user"},
}

var noOrganization = models.Organization{
	ID:            "0",
	Name:          "No Organization",
	DisplayNameZh: "无组织",
	DisplayNameEn: "No Organization",
}

// Mapper converts remote users into identity data using a Catalog.
type Mapper struct {
	catalog Catalog
	now     func() time.Time
}

// NewMapper returns a Mapper backed by cat.
func NewMapper(cat Catalog) *Mapper {
	return &Mapper{catalog: cat, now: time.Now}
}

// Guest is the identity used when no user record is available. It is never
// eligible for an identity code.
func Guest() models.UserIdentityData {
	return models.UserIdentityData{
		UserID:    "guest",
		UserName:  "guest",
		LegalName: "访客用户",
		NickName:  "Guest",
		CurrentOrganization: &models.Organization{
			ID: "0", Name: "Guest", DisplayNameZh: "访客", DisplayNameEn: "Guest",
		},
		Type: models.IdentityType,
	}
}

// Map builds the identity data of u. A nil user maps to Guest().
func (m *Mapper) Map(u *models.RemoteUser) models.UserIdentityData {
	if u == nil {
		return Guest()
	}

	org := m.organization(u)
	data := models.UserIdentityData{
		UserID:    orDefault(u.UserID.String(), "unknown"),
		UserName:  orDefault(u.UserName, "unknown"),
		LegalName: orDefault(u.LegalName, "未知用户"),
		NickName:  orDefault(u.NickName, orDefault(u.UserName, "unknown")),
		Email:     u.Email,
		AvatarURL: u.Avatar,
		StudentID: u.UserID.String(),
		DeptID:    u.DeptID.String(),
		School:    m.school(u),
		Position:  Position(u.Roles),
		Type:      models.IdentityType,
	}
	if org != nil {
		data.CurrentOrganization = org
		data.MemberOrganizations = []models.Membership{{
			ID:        org.ID,
			Role:      "member",
			IsPrimary: true,
			JoinedAt:  m.now().UTC().Format(time.RFC3339),
			Status:    "active",
		}}
	} else {
		o := noOrganization
		data.CurrentOrganization = &o
	}
	if data.Position == nil && u.Role != nil && u.Role.EffectiveKey() != "" {
		data.Position = Position([]models.Role{*u.Role})
	}
	return data
}

func (m *Mapper) organization(u *models.RemoteUser) *models.Organization {
	if id := u.OrgID.Int(); id != 0 {
		org, _ := m.catalog.Organization(id)
		return &org
	}

	deptName := ""
	if u.Dept != nil {
		deptName = u.Dept.DeptName
	}
	if deptName == "" {
		return nil
	}
	if strings.Contains(deptName, HeadquartersName) {
		return &models.Organization{
			ID:            "cu_headquarters",
			Name:          HeadquartersName,
			DisplayNameZh: HeadquartersName,
			DisplayNameEn: "CU Headquarters",
		}
	}
	school, ok := m.catalog.Schools[u.DeptID.Int()]
	if !ok || school.DefaultOrg == 0 {
		return nil
	}
	org, ok := m.catalog.Organizations[school.DefaultOrg]
	if !ok {
		return nil
	}
	return &org
}

func (m *Mapper) school(u *models.RemoteUser) *models.School {
	id := u.DeptID
	if id == "" && u.Dept != nil {
		id = u.Dept.DeptID
	}
	if u.Dept == nil && id == "" {
		return nil
	}

	s := &models.School{ID: orDefault(id.String(), "0")}
	deptName := ""
	if u.Dept != nil {
		deptName = u.Dept.DeptName
		s.ParentID = u.Dept.ParentID.String()
		s.Ancestors = u.Dept.Ancestors
	}

	switch info, ok := m.catalog.Schools[id.Int()]; {
	case ok:
		s.Name, s.FullName = info.Name, info.FullName
	case strings.Contains(deptName, HeadquartersName):
		s.Name, s.FullName = HeadquartersName, "CU Headquarters"
	case deptName != "":
		s.Name, s.FullName = deptName, deptName
	default:
		s.Name, s.FullName = "未知学校", "未知学校"
	}
	return s
}

// Position picks the highest known role from roles. When none of the roles is
// a known key the first role is used and displayed as a common user.
func Position(roles []models.Role) *models.Position {
	if len(roles) == 0 {
		return nil
	}
	chosen := roles[0]
	found := false
	for _, key := range permission.RoleHierarchy {
		for _, r := range roles {
			if r.EffectiveKey() == key {
				chosen, found = r, true
				break
			}
		}
		if found {
			break
		}
	}

	key := orDefault(chosen.EffectiveKey(), permission.RoleCommon)
	display, ok := roleDisplays[key]
	if !ok {
		display = roleDisplays[permission.RoleCommon]
	}
	return &models.Position{
		RoleKey:       key,
		RoleName:      orDefault(chosen.RoleName, display.zh),
		DisplayName:   display.zh,
		DisplayNameEn: display.en,
		Level:         display.level,
	}
}

// Level returns the permission level of a mapped identity.
func Level(data models.UserIdentityData) permission.Level {
	if data.Position == nil {
		return permission.Guest
	}
	return permission.FromRoleKey(data.Position.RoleKey)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
