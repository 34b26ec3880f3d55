package permission

// Action is something a user may try to do to a resource.
type Action string

// Resource is the kind of record an action targets.
type Resource string

const (
	ActionView     Action = "view"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionCreate   Action = "create"
	ActionCheckIn  Action = "checkIn"
	ActionCheckOut Action = "checkOut"
)

const (
	ResourceUser      Resource = "user"
	ResourceActivity  Resource = "activity"
	ResourceVolunteer Resource = "volunteer"
)

// HasMinimum reports whether have is at least need.
func HasMinimum(have, need Level) bool { return have >= need }

// CanPerform reports whether a user at level l may perform action on resource.
func CanPerform(l Level, action Action, resource Resource) bool {
	switch action {
	case ActionView:
		return true
	case ActionEdit:
		switch resource {
		case ResourceUser, ResourceActivity:
			return HasMinimum(l, PartAdmin)
		case ResourceVolunteer:
			return HasMinimum(l, Staff)
		}
	case ActionDelete:
		return HasMinimum(l, Admin)
	case ActionCreate:
		switch resource {
		case ResourceUser:
			return HasMinimum(l, Admin)
		case ResourceActivity, ResourceVolunteer:
			return HasMinimum(l, PartAdmin)
		}
	case ActionCheckIn, ActionCheckOut:
		return resource == ResourceVolunteer && HasMinimum(l, Staff)
	}
	return false
}

// Actor is the minimal view of a user needed for target checks.
type Actor struct {
	UserID string
	OrgID  string
	Level  Level
}

// CanOperateTarget reports whether actor may operate on target (for example
// check a volunteer in or out on their behalf).
// Admins may operate on anyone, part admins within their organization (or on
// users without one), staff only on themselves.
func CanOperateTarget(actor, target Actor) bool {
	if actor.UserID == "" || target.UserID == "" {
		return false
	}
	switch actor.Level {
	case Admin:
		return true
	case PartAdmin:
		if actor.OrgID == "" || target.OrgID == "" {
			return true
		}
		return actor.OrgID == target.OrgID
	case Staff:
		return actor.UserID == target.UserID
	default:
		return false
	}
}
