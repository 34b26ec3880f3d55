package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/PomeloX/internal/models"
	"github.com/atinyakov/PomeloX/internal/permission"
)

func decodeUser(t *testing.T, raw string) *models.RemoteUser {
	t.Helper()
	var u models.RemoteUser
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	return &u
}

func TestMap_NilIsGuest(t *testing.T) {
	m := NewMapper(DefaultCatalog())
	got := m.Map(nil)
	assert.Equal(t, "guest", got.UserID)
	assert.Equal(t, permission.Guest, Level(got))
}

func TestMap_ExplicitOrganization(t *testing.T) {
	m := NewMapper(DefaultCatalog())
	m.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	u := decodeUser(t, `{
		"userId": 12345,
		"userName": "zhangsan",
		"legalName": "张三",
		"email": "zhangsan@usc.edu",
		"deptId": 213,
		"orgId": "5",
		"dept": {"deptId": 213, "deptName": "USC", "parentId": 1},
		"roles": [{"key": "common", "roleName": "普通用户"}, {"roleKey": "staff"}]
	}`)

	got := m.Map(u)
	assert.Equal(t, "12345", got.UserID)
	assert.Equal(t, "zhangsan", got.NickName)
	require.NotNil(t, got.CurrentOrganization)
	assert.Equal(t, "CSSA", got.CurrentOrganization.Name)
	require.Len(t, got.MemberOrganizations, 1)
	assert.Equal(t, "2025-01-02T03:04:05Z", got.MemberOrganizations[0].JoinedAt)
	require.NotNil(t, got.School)
	assert.Equal(t, "213", got.School.ID)
	assert.Equal(t, "USC", got.School.Name)
	assert.Equal(t, "1", got.School.ParentID)
	require.NotNil(t, got.Position)
	assert.Equal(t, "staff", got.Position.RoleKey)
	assert.Equal(t, "staff", got.Position.Level)
	assert.Equal(t, permission.Staff, Level(got))
}

func TestMap_DefaultOrganizationBySchool(t *testing.T) {
	m := NewMapper(DefaultCatalog())
	u := decodeUser(t, `{"userId": 7, "userName": "li", "legalName": "李四", "deptId": 215,
		"dept": {"deptId": 215, "deptName": "UCI"}}`)

	got := m.Map(u)
	assert.Equal(t, "Student Union", got.CurrentOrganization.Name)
	assert.Equal(t, "UCI", got.School.Name)
	assert.Nil(t, got.Position)
	assert.Equal(t, permission.Guest, Level(got))
}

func TestMap_Headquarters(t *testing.T) {
	m := NewMapper(DefaultCatalog())
	u := decodeUser(t, `{"userId": 1, "userName": "admin", "legalName": "管理员", "deptId": 300,
		"dept": {"deptId": 300, "deptName": "CU总部"}, "roles": [{"key": "manage"}]}`)

	got := m.Map(u)
	assert.Equal(t, "cu_headquarters", got.CurrentOrganization.ID)
	assert.Equal(t, "CU Headquarters", got.School.FullName)
	assert.Equal(t, permission.Admin, Level(got))
}

func TestMap_NoOrganization(t *testing.T) {
	m := NewMapper(DefaultCatalog())
	u := decodeUser(t, `{"userId": 9, "userName": "wang"}`)

	got := m.Map(u)
	assert.Equal(t, "0", got.CurrentOrganization.ID)
	assert.Empty(t, got.MemberOrganizations)
	assert.Nil(t, got.School)
	assert.Equal(t, "未知用户", got.LegalName)
}

func TestPosition_UnknownRoleFallsBackToFirst(t *testing.T) {
	p := Position([]models.Role{{Key: "vip", RoleName: "VIP"}})
	require.NotNil(t, p)
	assert.Equal(t, "vip", p.RoleKey)
	assert.Equal(t, "VIP", p.RoleName)
	assert.Equal(t, "user", p.Level)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
organizations:
  7:
    name: Film Club
    displayNameZh: 电影社
    displayNameEn: Film Club
schools:
  221:
    name: UCR
    fullName: University of California, Riverside
    defaultOrg: 7
`), 0o600))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "7", cat.Organizations[7].ID)
	assert.Equal(t, "UCR", cat.Schools[221].Name)
	assert.Equal(t, "USC", cat.Schools[213].Name, "defaults are kept")

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
