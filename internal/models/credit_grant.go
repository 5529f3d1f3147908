package models

import "time"

// CreditGrantStatus is the lifecycle state of a purchased block of credits.
type CreditGrantStatus string

const (
	CreditGrantPendingPayment CreditGrantStatus = "pending_payment"
	CreditGrantActive         CreditGrantStatus = "active"
	CreditGrantInvalidated    CreditGrantStatus = "invalidated"
)

// CreditGrant records a credit purchase for a team member. Only active grants
// count towards the available balance.
type CreditGrant struct {
	BaseModel

	OrganizationID    string            `gorm:"type:uuid;not null;index" json:"organization_id"`
	TeamMemberID      string            `gorm:"type:uuid;not null;index:idx_credit_grants_member_status,priority:1" json:"team_member_id"`
	PurchaseReference string            `gorm:"not null;uniqueIndex;size:64" json:"purchase_reference"`
	Amount            int64             `gorm:"not null" json:"amount"`
	UnitPrice         int64             `gorm:"not null" json:"unit_price"`
	DiscountPercent   int               `gorm:"not null" json:"discount_percent"`
	TotalCost         int64             `gorm:"not null" json:"total_cost"`
	Currency          string            `gorm:"not null;size:8" json:"currency"`
	Status            CreditGrantStatus `gorm:"not null;size:24;index:idx_credit_grants_member_status,priority:2" json:"status"`
	CheckoutSessionID string            `gorm:"size:255;index" json:"checkout_session_id,omitempty"`
	CheckoutURL       string            `gorm:"type:text" json:"checkout_url,omitempty"`
	ActivatedAt       *time.Time        `json:"activated_at,omitempty"`
	InvalidatedAt     *time.Time        `json:"invalidated_at,omitempty"`

	TeamMember *TeamMember `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
