package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/teamcredits/internal/models"
	apperrors "github.com/charlesng35/teamcredits/pkg/errors"
)

// OrganizationService resolves the tenant belonging to an authenticated manager.
type OrganizationService struct {
	db *gorm.DB
}

// NewOrganizationService constructs an OrganizationService.
func NewOrganizationService(db *gorm.DB) (*OrganizationService, error) {
	if db == nil {
		return nil, errors.New("organization service: db is required")
	}
	return &OrganizationService{db: db}, nil
}

// EnsureForManager returns the organization owned by the manager, creating it on first use.
func (s *OrganizationService) EnsureForManager(ctx context.Context, managerEmail string) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(managerEmail)
	if email == "" {
		return nil, apperrors.NewBadRequest("manager email is required")
	}

	org, err := s.findByManager(ctx, email)
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("organization service: find organization: %w", err)
	}

	created := &models.Organization{
		ManagerEmail: email,
		Name:         defaultOrganizationName(email),
	}
	if err := s.db.WithContext(ctx).Create(created).Error; err != nil {
		if isUniqueConstraintError(err) {
			// Another request created it first.
			return s.findByManager(ctx, email)
		}
		return nil, fmt.Errorf("organization service: create organization: %w", err)
	}
	return created, nil
}

// Get loads an organization by identifier.
func (s *OrganizationService) Get(ctx context.Context, id string) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	var org models.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("organization service: get organization: %w", err)
	}
	return &org, nil
}

func (s *OrganizationService) findByManager(ctx context.Context, email string) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.WithContext(ctx).Where("manager_email = ?", email).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func defaultOrganizationName(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
