// Package identity turns remote PomeloX user records into the identity data
// carried by QR codes.
package identity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/atinyakov/PomeloX/internal/models"
)

// SchoolInfo is a catalog entry for a school (department).
type SchoolInfo struct {
	Name     string `yaml:"name"`
	FullName string `yaml:"fullName"`
	// DefaultOrg is the organization assigned to members without an explicit one.
	DefaultOrg int64 `yaml:"defaultOrg,omitempty"`
}

// Catalog holds the organization and school lookup tables.
type Catalog struct {
	Organizations map[int64]models.Organization `yaml:"organizations"`
	Schools       map[int64]SchoolInfo          `yaml:"schools"`
}

// HeadquartersName is the department name of the CU headquarters.
const HeadquartersName = "CU总部"

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		Organizations: map[int64]models.Organization{
			1: {ID: "1", Name: "Student Union", DisplayNameZh: "学联组织", DisplayNameEn: "Student Union"},
			2: {ID: "2", Name: "Community", DisplayNameZh: "社团", DisplayNameEn: "Student Community"},
			4: {ID: "4", Name: "Chinese Union", DisplayNameZh: "Chinese Union", DisplayNameEn: "Chinese Union"},
			5: {ID: "5", Name: "CSSA", DisplayNameZh: "CSSA", DisplayNameEn: "Chinese Students and Scholars Association"},
		},
		Schools: map[int64]SchoolInfo{
			210: {Name: "UCD", FullName: "University of California, Davis", DefaultOrg: 1},
			211: {Name: "UCB", FullName: "University of California, Berkeley", DefaultOrg: 1},
			212: {Name: "UCSC", FullName: "University of California, Santa Cruz", DefaultOrg: 1},
			213: {Name: "USC", FullName: "University of Southern California", DefaultOrg: 1},
			214: {Name: "UCLA", FullName: "University of California, Los Angeles", DefaultOrg: 1},
			215: {Name: "UCI", FullName: "University of California, Irvine", DefaultOrg: 1},
			216: {Name: "UCSD", FullName: "University of California, San Diego", DefaultOrg: 1},
			217: {Name: "UMN", FullName: "University of Minnesota", DefaultOrg: 1},
			218: {Name: "UW", FullName: "University of Washington", DefaultOrg: 1},
			219: {Name: "U Berklee Music", FullName: "Berklee College of Music", DefaultOrg: 1},
			220: {Name: "UCSB", FullName: "University of California, Santa Barbara", DefaultOrg: 1},
			999: {Name: HeadquartersName, FullName: "CU Headquarters"},
		},
	}
}

// LoadCatalog reads a YAML catalog from path. Entries in the file override
// the built-in ones with the same ID; everything else keeps its default.
func LoadCatalog(path string) (Catalog, error) {
	cat := DefaultCatalog()
	if path == "" {
		return cat, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cat, fmt.Errorf("read catalog: %w", err)
	}
	var file Catalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cat, fmt.Errorf("parse catalog: %w", err)
	}
	for id, org := range file.Organizations {
		if org.ID == "" {
			org.ID = fmt.Sprint(id)
		}
		cat.Organizations[id] = org
	}
	for id, school := range file.Schools {
		cat.Schools[id] = school
	}
	return cat, nil
}

// Organization returns the catalog organization for id, or an "unknown" placeholder.
func (c Catalog) Organization(id int64) (models.Organization, bool) {
	if org, ok := c.Organizations[id]; ok {
		return org, true
	}
	return models.Organization{
		ID:            fmt.Sprint(id),
		Name:          "Unknown Organization",
		DisplayNameZh: "未知组织",
		DisplayNameEn: "Unknown Organization",
	}, false
}
