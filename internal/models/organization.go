package models

// Organization is the tenant owned by a single manager. It is created the
// first time the manager authenticates.
type Organization struct {
	BaseModel

	ManagerEmail string `gorm:"not null;uniqueIndex;size:320" json:"manager_email"`
	Name         string `json:"name"`

	Members []TeamMember `gorm:"foreignKey:OrganizationID" json:"members,omitempty"`
}
