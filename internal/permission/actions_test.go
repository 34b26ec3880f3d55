package permission

import "testing"

func TestCanPerform(t *testing.T) {
	tests := []struct {
		level    Level
		action   Action
		resource Resource
		want     bool
	}{
		{Guest, ActionView, ResourceActivity, true},
		{User, ActionEdit, ResourceVolunteer, false},
		{Staff, ActionEdit, ResourceVolunteer, true},
		{Staff, ActionEdit, ResourceActivity, false},
		{PartAdmin, ActionEdit, ResourceUser, true},
		{PartAdmin, ActionDelete, ResourceActivity, false},
		{Admin, ActionDelete, ResourceActivity, true},
		{PartAdmin, ActionCreate, ResourceUser, false},
		{Admin, ActionCreate, ResourceUser, true},
		{PartAdmin, ActionCreate, ResourceActivity, true},
		{Staff, ActionCheckIn, ResourceVolunteer, true},
		{User, ActionCheckOut, ResourceVolunteer, false},
		{Admin, ActionCheckIn, ResourceActivity, false},
	}
	for _, tt := range tests {
		if got := CanPerform(tt.level, tt.action, tt.resource); got != tt.want {
			t.Errorf("CanPerform(%s, %s, %s) = %v; want %v", tt.level, tt.action, tt.resource, got, tt.want)
		}
	}
}

func TestCanOperateTarget(t *testing.T) {
	tests := []struct {
		name   string
		actor  Actor
		target Actor
		want   bool
	}{
		{"missing actor", Actor{}, Actor{UserID: "2"}, false},
		{"admin anyone", Actor{UserID: "1", Level: Admin}, Actor{UserID: "2", OrgID: "9"}, true},
		{"part admin same org", Actor{UserID: "1", OrgID: "1", Level: PartAdmin}, Actor{UserID: "2", OrgID: "1"}, true},
		{"part admin other org", Actor{UserID: "1", OrgID: "1", Level: PartAdmin}, Actor{UserID: "2", OrgID: "5"}, false},
		{"part admin target without org", Actor{UserID: "1", OrgID: "1", Level: PartAdmin}, Actor{UserID: "2"}, true},
		{"staff self", Actor{UserID: "3", Level: Staff}, Actor{UserID: "3"}, true},
		{"staff other", Actor{UserID: "3", Level: Staff}, Actor{UserID: "4"}, false},
		{"user other", Actor{UserID: "3", Level: User}, Actor{UserID: "3"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanOperateTarget(tt.actor, tt.target); got != tt.want {
				t.Errorf("CanOperateTarget = %v; want %v", got, tt.want)
			}
		})
	}
}
