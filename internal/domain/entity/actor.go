package entity

// Actor is the authenticated caller as supplied by the gateway
type Actor struct {
	ID    string
	Role  Role
	OrgID string
}

// IsAdmin reports whether the actor may manage rules and view dashboards
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
