package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"iter"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/teamcredits/internal/models"
	"github.com/charlesng35/teamcredits/pkg/logger"
	"github.com/charlesng35/teamcredits/pkg/mail"
	"github.com/charlesng35/teamcredits/pkg/metrics"
)

const defaultTeamPageSize = 100

// NotificationAction identifies the onboarding step a manager is told about.
type NotificationAction string

const (
	ActionUploadCompleted   NotificationAction = "upload_completed"
	ActionHeadshotsReceived NotificationAction = "headshots_received"
)

// ParseNotificationAction validates a raw action string.
func ParseNotificationAction(value string) (NotificationAction, bool) {
	switch NotificationAction(strings.ToLower(strings.TrimSpace(value))) {
	case ActionUploadCompleted:
		return ActionUploadCompleted, true
	case ActionHeadshotsReceived:
		return ActionHeadshotsReceived, true
	default:
		return "", false
	}
}

// TeamLinks holds the base URLs used to build per-member onboarding links.
type TeamLinks struct {
	GenerationBaseURL string
	ResultsBaseURL    string
}

// InviteResult is the outcome of an invitation. NotificationError is set when
// the member was created but the invitation email could not be delivered.
type InviteResult struct {
	Member            *models.TeamMember
	NotificationError string
}

// TeamOption customises TeamService behaviour.
type TeamOption func(*TeamService)

// WithTeamClock injects a custom clock primarily for testing.
func WithTeamClock(clock func() time.Time) TeamOption {
	return func(s *TeamService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithTeamLogger overrides the service logger.
func WithTeamLogger(log *zap.Logger) TeamOption {
	return func(s *TeamService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTeamPageSize adjusts how many rows List fetches per query.
func WithTeamPageSize(size int) TeamOption {
	return func(s *TeamService) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// TeamService manages team member invitations and onboarding status.
type TeamService struct {
	db       *gorm.DB
	audit    *AuditService
	mailer   mail.Mailer
	links    TeamLinks
	pageSize int
	now      func() time.Time
	log      *zap.Logger
}

// NewTeamService constructs a TeamService. The mailer may be nil, in which
// case invitations are created without an email.
func NewTeamService(db *gorm.DB, audit *AuditService, mailer mail.Mailer, links TeamLinks, opts ...TeamOption) (*TeamService, error) {
	if db == nil {
		return nil, errors.New("team service: db is required")
	}

	svc := &TeamService{
		db:     db,
		audit:  audit,
		mailer: mailer,
		links: TeamLinks{
			GenerationBaseURL: strings.TrimRight(links.GenerationBaseURL, "/"),
			ResultsBaseURL:    strings.TrimRight(links.ResultsBaseURL, "/"),
		},
		pageSize: defaultTeamPageSize,
		now:      time.Now,
		log:      logger.WithModule("team"),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Invite creates a pending team member and sends the invitation email.
func (s *TeamService) Invite(ctx context.Context, org *models.Organization, email string) (*InviteResult, error) {
	ctx = ensureContext(ctx)
	if org == nil {
		return nil, errors.New("team service: organization is required")
	}

	email = normaliseEmail(email)
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if email == normaliseEmail(org.ManagerEmail) {
		return nil, ErrSelfInvite
	}

	if _, err := s.FindByEmail(ctx, org.ID, email); err == nil {
		metrics.Invites.WithLabelValues("duplicate").Inc()
		return nil, ErrDuplicateMember
	} else if !errors.Is(err, ErrTeamMemberNotFound) {
		return nil, err
	}

	member := &models.TeamMember{
		OrganizationID: org.ID,
		Email:          email,
		Status:         models.TeamMemberPending,
		InvitedAt:      s.now().UTC(),
		GenerationLink: memberLink(s.links.GenerationBaseURL, email),
		ResultPageLink: memberLink(s.links.ResultsBaseURL, email),
	}

	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		if isUniqueConstraintError(err) {
			metrics.Invites.WithLabelValues("duplicate").Inc()
			return nil, ErrDuplicateMember.WithInternal(err)
		}
		return nil, fmt.Errorf("team service: create member: %w", err)
	}

	result := &InviteResult{Member: member}
	if err := s.sendInvitation(ctx, org, member); err != nil {
		s.log.Warn("invitation email failed",
			zap.String("organization_id", org.ID),
			zap.String("member_id", member.ID),
			zap.Error(err))
		metrics.Invites.WithLabelValues("email_failed").Inc()
		result.NotificationError = err.Error()
	} else {
		metrics.Invites.WithLabelValues("created").Inc()
	}

	recordAudit(s.audit, ctx, AuditEntry{
		OrganizationID: org.ID,
		ActorEmail:     org.ManagerEmail,
		Action:         "team.invite",
		Resource:       "team_member:" + member.ID,
		Result:         "success",
		Metadata: map[string]any{
			"email":              email,
			"notification_error": result.NotificationError,
		},
	})

	return result, nil
}

// MarkCompleted moves a pending member to completed. An already completed
// member is returned unchanged together with ErrAlreadyCompleted.
func (s *TeamService) MarkCompleted(ctx context.Context, org *models.Organization, memberID string) (*models.TeamMember, error) {
	ctx = ensureContext(ctx)
	if org == nil {
		return nil, errors.New("team service: organization is required")
	}

	member, err := s.Get(ctx, org.ID, memberID)
	if err != nil {
		return nil, err
	}
	if member.Status == models.TeamMemberCompleted {
		return member, ErrAlreadyCompleted
	}

	now := s.now().UTC()
	res := s.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("id = ? AND organization_id = ? AND status = ?", member.ID, org.ID, models.TeamMemberPending).
		Updates(map[string]any{
			"status":       models.TeamMemberCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("team service: mark completed: %w", res.Error)
	}

	current, err := s.Get(ctx, org.ID, member.ID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return current, ErrAlreadyCompleted
	}

	recordAudit(s.audit, ctx, AuditEntry{
		OrganizationID: org.ID,
		ActorEmail:     org.ManagerEmail,
		Action:         "team.complete",
		Resource:       "team_member:" + member.ID,
		Result:         "success",
	})

	return current, nil
}

// List yields every member of the organization ordered by invitation time.
// Each range starts again from the first page.
func (s *TeamService) List(ctx context.Context, orgID string) iter.Seq2[models.TeamMember, error] {
	ctx = ensureContext(ctx)
	return func(yield func(models.TeamMember, error) bool) {
		var cursor *models.TeamMember
		for {
			query := s.db.WithContext(ctx).Where("organization_id = ?", orgID)
			if cursor != nil {
				query = query.Where("invited_at > ? OR (invited_at = ? AND id > ?)", cursor.InvitedAt, cursor.InvitedAt, cursor.ID)
			}

			var page []models.TeamMember
			if err := query.Order("invited_at ASC").Order("id ASC").Limit(s.pageSize).Find(&page).Error; err != nil {
				yield(models.TeamMember{}, fmt.Errorf("team service: list members: %w", err))
				return
			}

			for _, member := range page {
				if !yield(member, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			last := page[len(page)-1]
			cursor = &last
		}
	}
}

// Get loads a member scoped to the organization.
func (s *TeamService) Get(ctx context.Context, orgID, memberID string) (*models.TeamMember, error) {
	ctx = ensureContext(ctx)

	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, ErrTeamMemberNotFound
	}

	var member models.TeamMember
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", memberID, orgID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamMemberNotFound
		}
		return nil, fmt.Errorf("team service: get member: %w", err)
	}
	return &member, nil
}

// FindByEmail loads a member of the organization by email address.
func (s *TeamService) FindByEmail(ctx context.Context, orgID, email string) (*models.TeamMember, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" {
		return nil, ErrTeamMemberNotFound
	}

	var member models.TeamMember
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND email = ?", orgID, email).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamMemberNotFound
		}
		return nil, fmt.Errorf("team service: find member: %w", err)
	}
	return &member, nil
}

// CountActive returns the number of completed members, which drives the volume discount.
func (s *TeamService) CountActive(ctx context.Context, orgID string) (int, error) {
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("organization_id = ? AND status = ?", orgID, models.TeamMemberCompleted).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("team service: count active members: %w", err)
	}
	return int(count), nil
}

// Notify emails the manager that a member finished an onboarding step.
func (s *TeamService) Notify(ctx context.Context, org *models.Organization, memberEmail, rawAction string) error {
	ctx = ensureContext(ctx)
	if org == nil {
		return errors.New("team service: organization is required")
	}

	action, ok := ParseNotificationAction(rawAction)
	if !ok {
		return ErrInvalidAction
	}

	member, err := s.FindByEmail(ctx, org.ID, memberEmail)
	if err != nil {
		return err
	}

	if s.mailer == nil {
		metrics.Notifications.WithLabelValues(string(action), "failure").Inc()
		return ErrNotificationProvider.WithInternal(errors.New("mailer not configured"))
	}

	subject, event := notificationContent(action)
	msg := mail.Message{
		To:      []string{org.ManagerEmail},
		Subject: subject,
		Body:    fmt.Sprintf("Your team member %s %s.", member.Email, event),
		HTML:    fmt.Sprintf("<p>Your team member <b>%s</b> %s.</p>", html.EscapeString(member.Email), event),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		metrics.Notifications.WithLabelValues(string(action), "failure").Inc()
		s.log.Warn("notification email failed",
			zap.String("organization_id", org.ID),
			zap.String("action", string(action)),
			zap.Error(err))
		return ErrNotificationProvider.WithInternal(err)
	}
	metrics.Notifications.WithLabelValues(string(action), "success").Inc()

	recordAudit(s.audit, ctx, AuditEntry{
		OrganizationID: org.ID,
		ActorEmail:     org.ManagerEmail,
		Action:         "team.notify",
		Resource:       "team_member:" + member.ID,
		Result:         "success",
		Metadata:       map[string]any{"action": string(action)},
	})
	return nil
}

func (s *TeamService) sendInvitation(ctx context.Context, org *models.Organization, member *models.TeamMember) error {
	if s.mailer == nil {
		return nil
	}

	body := fmt.Sprintf("%s has invited you to create your AI headshots.\n\nUpload your photos: %s\nView your results: %s\n",
		org.ManagerEmail, member.GenerationLink, member.ResultPageLink)
	htmlBody := fmt.Sprintf(`<p><strong>%s</strong> has invited you to create your AI headshots.</p><p><a href="%s">Upload your photos</a></p><p><a href="%s">View your results</a></p>`,
		html.EscapeString(org.ManagerEmail), html.EscapeString(member.GenerationLink), html.EscapeString(member.ResultPageLink))

	return s.mailer.Send(ctx, mail.Message{
		To:      []string{member.Email},
		Subject: "You're invited to AI SuitUp",
		Body:    body,
		HTML:    htmlBody,
	})
}

func notificationContent(action NotificationAction) (subject, event string) {
	if action == ActionHeadshotsReceived {
		return "AI-Generated Headshots Ready", "has received their AI-generated headshots"
	}
	return "Team Member Completed Upload", "has successfully uploaded their picture"
}

func memberLink(base, email string) string {
	if base == "" {
		return ""
	}
	return base + "/" + url.PathEscape(email)
}
