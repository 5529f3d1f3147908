package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog captures a state-changing action taken through the API or webhook.
type AuditLog struct {
	ID             string         `gorm:"primaryKey;type:uuid" json:"id"`
	OrganizationID *string        `gorm:"type:uuid;index" json:"organization_id,omitempty"`
	ActorEmail     string         `gorm:"index" json:"actor_email"`
	Action         string         `gorm:"not null;index" json:"action"`
	Resource       string         `gorm:"index" json:"resource"`
	Result         string         `gorm:"not null" json:"result"`
	IPAddress      string         `json:"ip_address"`
	UserAgent      string         `json:"user_agent"`
	Metadata       datatypes.JSON `json:"metadata"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
