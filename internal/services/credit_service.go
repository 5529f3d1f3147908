package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/teamcredits/internal/models"
	"github.com/charlesng35/teamcredits/internal/pricing"
	"github.com/charlesng35/teamcredits/pkg/id"
	"github.com/charlesng35/teamcredits/pkg/logger"
	"github.com/charlesng35/teamcredits/pkg/metrics"
)

const (
	// PurchaseReferencePrefix starts every purchase reference.
	PurchaseReferencePrefix = "pr_"
	// MaxCreditsPerPurchase is the largest quantity a single checkout may carry.
	MaxCreditsPerPurchase int64 = 999999
)

// DefaultEligibleStatuses lists the member statuses that may receive credits.
var DefaultEligibleStatuses = []models.TeamMemberStatus{models.TeamMemberPending}

// ConfirmResult reports the outcome of a purchase confirmation. Applied is
// false when the grant had already been confirmed.
type ConfirmResult struct {
	Grant   *models.CreditGrant
	Applied bool
}

// CreditSummary aggregates a member's grants.
type CreditSummary struct {
	TeamMemberID string `json:"team_member_id"`
	Available    int64  `json:"available"`
	Purchased    int64  `json:"purchased"`
	Invalidated  int64  `json:"invalidated"`
	Pending      int64  `json:"pending"`
}

// CreditOption customises CreditService behaviour.
type CreditOption func(*CreditService)

// WithCreditClock injects a custom clock primarily for testing.
func WithCreditClock(clock func() time.Time) CreditOption {
	return func(s *CreditService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithCreditLogger overrides the service logger.
func WithCreditLogger(log *zap.Logger) CreditOption {
	return func(s *CreditService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithEligibleStatuses replaces the member statuses allowed to receive credits.
func WithEligibleStatuses(statuses ...models.TeamMemberStatus) CreditOption {
	return func(s *CreditService) {
		if len(statuses) > 0 {
			s.eligible = statuses
		}
	}
}

// WithReferenceGenerator overrides how purchase references are produced.
func WithReferenceGenerator(next func() string) CreditOption {
	return func(s *CreditService) {
		if next != nil {
			s.nextReference = next
		}
	}
}

// CreditService keeps the ledger of purchased credits.
type CreditService struct {
	db            *gorm.DB
	audit         *AuditService
	team          *TeamService
	policy        *pricing.Policy
	eligible      []models.TeamMemberStatus
	nextReference func() string
	now           func() time.Time
	log           *zap.Logger
}

// NewCreditService constructs a CreditService.
func NewCreditService(db *gorm.DB, audit *AuditService, team *TeamService, policy *pricing.Policy, opts ...CreditOption) (*CreditService, error) {
	if db == nil {
		return nil, errors.New("credit service: db is required")
	}
	if team == nil {
		return nil, errors.New("credit service: team service is required")
	}
	if policy == nil {
		return nil, errors.New("credit service: pricing policy is required")
	}

	svc := &CreditService{
		db:       db,
		audit:    audit,
		team:     team,
		policy:   policy,
		eligible: DefaultEligibleStatuses,
		now:      time.Now,
		log:      logger.WithModule("credits"),
	}

	for _, opt := range opts {
		opt(svc)
	}

	// Node 1 is only suitable for a single instance; servers inject a
	// generator seeded with credits.node_id.
	if svc.nextReference == nil {
		gen, err := id.NewGenerator(1, PurchaseReferencePrefix)
		if err != nil {
			return nil, fmt.Errorf("credit service: reference generator: %w", err)
		}
		svc.nextReference = gen.Next
	}

	return svc, nil
}

// InitiatePurchase prices and commits a pending grant for the member.
func (s *CreditService) InitiatePurchase(ctx context.Context, org *models.Organization, memberID string, amount int64) (*models.CreditGrant, error) {
	ctx = ensureContext(ctx)
	if org == nil {
		return nil, errors.New("credit service: organization is required")
	}

	member, err := s.team.Get(ctx, org.ID, memberID)
	if err != nil {
		return nil, err
	}
	if !s.isEligible(member.Status) {
		return nil, ErrMemberNotActive
	}
	if amount < 1 || amount > MaxCreditsPerPurchase {
		return nil, ErrInvalidAmount
	}

	teamSize, err := s.team.CountActive(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	quote, err := s.policy.Quote(teamSize, amount)
	if err != nil {
		return nil, ErrInvalidAmount.WithInternal(err)
	}

	grant := &models.CreditGrant{
		OrganizationID:    org.ID,
		TeamMemberID:      member.ID,
		PurchaseReference: s.nextReference(),
		Amount:            amount,
		UnitPrice:         quote.UnitPrice.Amount,
		DiscountPercent:   quote.DiscountPercent,
		TotalCost:         quote.Total.Amount,
		Currency:          quote.Total.Currency,
		Status:            models.CreditGrantPendingPayment,
	}
	if err := s.db.WithContext(ctx).Create(grant).Error; err != nil {
		return nil, fmt.Errorf("credit service: create grant: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		OrganizationID: org.ID,
		ActorEmail:     org.ManagerEmail,
		Action:         "credits.purchase",
		Resource:       "credit_grant:" + grant.ID,
		Result:         "pending",
		Metadata: map[string]any{
			"reference":        grant.PurchaseReference,
			"amount":           amount,
			"team_size":        teamSize,
			"discount_percent": quote.DiscountPercent,
			"total_cost":       grant.TotalCost,
			"currency":         grant.Currency,
		},
	})

	return grant, nil
}

// AttachCheckout records the provider checkout session on a pending grant.
func (s *CreditService) AttachCheckout(ctx context.Context, reference, sessionID, checkoutURL string) error {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).
		Model(&models.CreditGrant{}).
		Where("purchase_reference = ?", strings.TrimSpace(reference)).
		Updates(map[string]any{
			"checkout_session_id": sessionID,
			"checkout_url":        checkoutURL,
			"updated_at":          s.now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("credit service: attach checkout: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUnknownReference
	}
	return nil
}

// ConfirmPurchase activates the pending grant identified by reference.
// Confirming an already confirmed grant succeeds without changing it.
func (s *CreditService) ConfirmPurchase(ctx context.Context, reference string) (*ConfirmResult, error) {
	ctx = ensureContext(ctx)

	reference = strings.TrimSpace(reference)
	if reference == "" {
		metrics.PurchaseConfirmations.WithLabelValues("unknown").Inc()
		return nil, ErrUnknownReference
	}

	now := s.now().UTC()
	res := s.db.WithContext(ctx).
		Model(&models.CreditGrant{}).
		Where("purchase_reference = ? AND status = ?", reference, models.CreditGrantPendingPayment).
		Updates(map[string]any{
			"status":       models.CreditGrantActive,
			"activated_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("credit service: confirm purchase: %w", res.Error)
	}

	grant, err := s.findByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, ErrUnknownReference) {
			metrics.PurchaseConfirmations.WithLabelValues("unknown").Inc()
		}
		return nil, err
	}

	applied := res.RowsAffected > 0
	if applied {
		metrics.PurchaseConfirmations.WithLabelValues("applied").Inc()
		s.log.Info("purchase confirmed",
			zap.String("reference", reference),
			zap.String("grant_id", grant.ID),
			zap.Int64("amount", grant.Amount))
		recordAudit(s.audit, ctx, AuditEntry{
			OrganizationID: grant.OrganizationID,
			Action:         "credits.confirm",
			Resource:       "credit_grant:" + grant.ID,
			Result:         "success",
			Metadata:       map[string]any{"reference": reference, "amount": grant.Amount},
		})
	} else {
		metrics.PurchaseConfirmations.WithLabelValues("duplicate").Inc()
	}

	return &ConfirmResult{Grant: grant, Applied: applied}, nil
}

// AvailableCredits returns the sum of the member's active grants.
func (s *CreditService) AvailableCredits(ctx context.Context, orgID, memberID string) (int64, error) {
	summary, err := s.Summary(ctx, orgID, memberID)
	if err != nil {
		return 0, err
	}
	return summary.Available, nil
}

// Summary aggregates the member's grants by state. Purchased counts every
// grant that was ever activated, including ones invalidated later.
func (s *CreditService) Summary(ctx context.Context, orgID, memberID string) (*CreditSummary, error) {
	ctx = ensureContext(ctx)

	member, err := s.team.Get(ctx, orgID, memberID)
	if err != nil {
		return nil, err
	}

	var totals struct {
		Available   int64
		Purchased   int64
		Invalidated int64
		Pending     int64
	}
	err = s.db.WithContext(ctx).
		Model(&models.CreditGrant{}).
		Select(
			"COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS available, "+
				"COALESCE(SUM(CASE WHEN activated_at IS NOT NULL THEN amount ELSE 0 END), 0) AS purchased, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS invalidated, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS pending",
			models.CreditGrantActive, models.CreditGrantInvalidated, models.CreditGrantPendingPayment,
		).
		Where("organization_id = ? AND team_member_id = ?", orgID, member.ID).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("credit service: summarise grants: %w", err)
	}

	return &CreditSummary{
		TeamMemberID: member.ID,
		Available:    totals.Available,
		Purchased:    totals.Purchased,
		Invalidated:  totals.Invalidated,
		Pending:      totals.Pending,
	}, nil
}

// Invalidate moves an active grant to invalidated. Pending or already
// invalidated grants fail with ErrInvalidState.
func (s *CreditService) Invalidate(ctx context.Context, org *models.Organization, grantID string) (*models.CreditGrant, error) {
	ctx = ensureContext(ctx)
	if org == nil {
		return nil, errors.New("credit service: organization is required")
	}

	grant, err := s.getGrant(ctx, org.ID, grantID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	res := s.db.WithContext(ctx).
		Model(&models.CreditGrant{}).
		Where("id = ? AND organization_id = ? AND status = ?", grant.ID, org.ID, models.CreditGrantActive).
		Updates(map[string]any{
			"status":         models.CreditGrantInvalidated,
			"invalidated_at": now,
			"updated_at":     now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("credit service: invalidate grant: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		metrics.CreditInvalidations.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidState.WithMessage(fmt.Sprintf("Credit grant is %s", grant.Status))
	}
	metrics.CreditInvalidations.WithLabelValues("invalidated").Inc()

	updated, err := s.getGrant(ctx, org.ID, grant.ID)
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		OrganizationID: org.ID,
		ActorEmail:     org.ManagerEmail,
		Action:         "credits.invalidate",
		Resource:       "credit_grant:" + grant.ID,
		Result:         "success",
		Metadata:       map[string]any{"amount": grant.Amount, "team_member_id": grant.TeamMemberID},
	})

	return updated, nil
}

// ListGrants returns the member's grants, newest first.
func (s *CreditService) ListGrants(ctx context.Context, orgID, memberID string) ([]models.CreditGrant, error) {
	ctx = ensureContext(ctx)

	member, err := s.team.Get(ctx, orgID, memberID)
	if err != nil {
		return nil, err
	}

	var grants []models.CreditGrant
	if err := s.db.WithContext(ctx).
		Where("organization_id = ? AND team_member_id = ?", orgID, member.ID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("credit service: list grants: %w", err)
	}
	return grants, nil
}

// CountStalePending counts pending grants created before the cutoff.
func (s *CreditService) CountStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.CreditGrant{}).
		Where("status = ? AND created_at < ?", models.CreditGrantPendingPayment, cutoff).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("credit service: count stale grants: %w", err)
	}
	return count, nil
}

func (s *CreditService) isEligible(status models.TeamMemberStatus) bool {
	for _, allowed := range s.eligible {
		if allowed == status {
			return true
		}
	}
	return false
}

func (s *CreditService) getGrant(ctx context.Context, orgID, grantID string) (*models.CreditGrant, error) {
	grantID = strings.TrimSpace(grantID)
	if grantID == "" {
		return nil, ErrCreditGrantNotFound
	}

	var grant models.CreditGrant
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", grantID, orgID).
		First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCreditGrantNotFound
		}
		return nil, fmt.Errorf("credit service: get grant: %w", err)
	}
	return &grant, nil
}

func (s *CreditService) findByReference(ctx context.Context, reference string) (*models.CreditGrant, error) {
	var grant models.CreditGrant
	err := s.db.WithContext(ctx).Where("purchase_reference = ?", reference).First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownReference
		}
		return nil, fmt.Errorf("credit service: find grant: %w", err)
	}
	return &grant, nil
}
