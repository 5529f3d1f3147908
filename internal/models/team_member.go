package models

import (
	"strings"
	"time"
)

// TeamMemberStatus tracks onboarding progress.
type TeamMemberStatus string

const (
	TeamMemberPending   TeamMemberStatus = "pending"
	TeamMemberCompleted TeamMemberStatus = "completed"
)

// ParseTeamMemberStatus maps a case-insensitive value onto a known status.
func ParseTeamMemberStatus(value string) (TeamMemberStatus, bool) {
	switch TeamMemberStatus(strings.ToLower(strings.TrimSpace(value))) {
	case TeamMemberPending:
		return TeamMemberPending, true
	case TeamMemberCompleted:
		return TeamMemberCompleted, true
	default:
		return "", false
	}
}

// TeamMember is a person invited by a manager. Email is unique per organization.
type TeamMember struct {
	BaseModel

	OrganizationID string           `gorm:"type:uuid;not null;uniqueIndex:idx_team_members_org_email;index:idx_team_members_org_invited,priority:1" json:"organization_id"`
	Email          string           `gorm:"not null;size:320;uniqueIndex:idx_team_members_org_email" json:"email"`
	Status         TeamMemberStatus `gorm:"not null;size:16;default:pending;index" json:"status"`
	InvitedAt      time.Time        `gorm:"not null;index:idx_team_members_org_invited,priority:2" json:"invited_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	GenerationLink string           `json:"generation_link"`
	ResultPageLink string           `json:"result_page_link"`

	Organization *Organization `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
