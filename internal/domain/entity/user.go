package entity

import "time"

// User is a member of a company. ManagerID is a single-level reporting edge.
type User struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"companyId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	ManagerID *string   `json:"managerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReportsTo reports whether managerID is the user's direct manager
func (u *User) ReportsTo(managerID string) bool {
	return u.ManagerID != nil && *u.ManagerID == managerID
}
