package entity

import "time"

// User is a directory entry: a person's role in an organization and the
// manager they report to
type User struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Role      Role      `json:"role"`
	ManagerID string    `json:"manager_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
