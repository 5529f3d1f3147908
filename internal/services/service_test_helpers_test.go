package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/teamcredits/internal/database/testutil"
	"github.com/charlesng35/teamcredits/internal/models"
	"github.com/charlesng35/teamcredits/internal/payments"
	"github.com/charlesng35/teamcredits/pkg/mail"
)

type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *recordingMailer) sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

type fakePaymentProvider struct {
	mu       sync.Mutex
	requests []payments.CheckoutRequest
	err      error
	event    *payments.Event
	eventErr error
	delay    time.Duration
}

func (p *fakePaymentProvider) CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (*payments.Checkout, error) {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.requests = append(p.requests, req)
	return &payments.Checkout{
		SessionID: "cs_test_" + req.Reference,
		URL:       "https://checkout.example.com/" + req.Reference,
	}, nil
}

func (p *fakePaymentProvider) ParseEvent(_ []byte, signature string) (*payments.Event, error) {
	if p.eventErr != nil {
		return nil, p.eventErr
	}
	if signature == "" {
		return nil, payments.ErrInvalidSignature
	}
	return p.event, nil
}

// steppingClock returns a clock advancing one second per call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

type teamFixture struct {
	db     *gorm.DB
	org    *models.Organization
	audit  *AuditService
	mailer *recordingMailer
	team   *TeamService
}

func newTeamFixture(t *testing.T, opts ...TeamOption) *teamFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	audit, err := NewAuditService(db)
	require.NoError(t, err)

	orgs, err := NewOrganizationService(db)
	require.NoError(t, err)
	org, err := orgs.EnsureForManager(context.Background(), "manager@example.com")
	require.NoError(t, err)

	mailer := &recordingMailer{}
	opts = append([]TeamOption{WithTeamClock(steppingClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)))}, opts...)
	team, err := NewTeamService(db, audit, mailer, TeamLinks{
		GenerationBaseURL: "https://aisuitup.com/generate/",
		ResultsBaseURL:    "https://aisuitup.com/results",
	}, opts...)
	require.NoError(t, err)

	return &teamFixture{db: db, org: org, audit: audit, mailer: mailer, team: team}
}

func (f *teamFixture) invite(t *testing.T, email string) *models.TeamMember {
	t.Helper()
	res, err := f.team.Invite(context.Background(), f.org, email)
	require.NoError(t, err)
	return res.Member
}

func (f *teamFixture) complete(t *testing.T, email string) *models.TeamMember {
	t.Helper()
	member := f.invite(t, email)
	completed, err := f.team.MarkCompleted(context.Background(), f.org, member.ID)
	require.NoError(t, err)
	return completed
}
