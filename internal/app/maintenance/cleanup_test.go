package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/teamcredits/internal/cache"
	dbtestutil "github.com/charlesng35/teamcredits/internal/database/testutil"
	"github.com/charlesng35/teamcredits/internal/models"
	"github.com/charlesng35/teamcredits/internal/pricing"
	"github.com/charlesng35/teamcredits/internal/services"
	"github.com/charlesng35/teamcredits/pkg/money"
)

func TestCleanerRunOnce(t *testing.T) {
	db := dbtestutil.MustOpenTestDB(t, dbtestutil.WithAutoMigrate())
	now := time.Now().UTC()

	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)
	teamSvc, err := services.NewTeamService(db, auditSvc, nil, services.TeamLinks{})
	require.NoError(t, err)
	policy, err := pricing.NewPolicy(money.New(100, "inr"), nil)
	require.NoError(t, err)
	creditSvc, err := services.NewCreditService(db, auditSvc, teamSvc, policy)
	require.NoError(t, err)

	org := &models.Organization{ManagerEmail: "manager@example.com"}
	require.NoError(t, db.Create(org).Error)
	member := &models.TeamMember{OrganizationID: org.ID, Email: "member@example.com", Status: models.TeamMemberPending, InvitedAt: now}
	require.NoError(t, db.Create(member).Error)

	stale := &models.CreditGrant{
		BaseModel:         models.BaseModel{CreatedAt: now.Add(-48 * time.Hour)},
		OrganizationID:    org.ID,
		TeamMemberID:      member.ID,
		PurchaseReference: "pr_stale",
		Amount:            1,
		UnitPrice:         100,
		TotalCost:         100,
		Currency:          "inr",
		Status:            models.CreditGrantPendingPayment,
	}
	fresh := &models.CreditGrant{
		OrganizationID:    org.ID,
		TeamMemberID:      member.ID,
		PurchaseReference: "pr_fresh",
		Amount:            1,
		UnitPrice:         100,
		TotalCost:         100,
		Currency:          "inr",
		Status:            models.CreditGrantPendingPayment,
	}
	require.NoError(t, db.Create(stale).Error)
	require.NoError(t, db.Create(fresh).Error)

	require.NoError(t, db.Create(&models.AuditLog{Action: "old.action", Result: "success", CreatedAt: now.AddDate(0, 0, -30)}).Error)
	require.NoError(t, db.Create(&models.AuditLog{Action: "new.action", Result: "success", CreatedAt: now}).Error)

	store := cache.NewDatabaseStore(db)
	require.NoError(t, db.Create(&models.CacheEntry{Key: "expired", Value: []byte("1"), ExpiresAt: now.Add(-time.Minute)}).Error)
	require.NoError(t, store.Set(context.Background(), "live", []byte("1"), time.Hour))

	core, logs := observer.New(zap.InfoLevel)
	c := NewCleaner(store, auditSvc, creditSvc,
		WithNow(func() time.Time { return now }),
		WithAuditRetentionDays(7),
		WithPendingExpiry(24*time.Hour),
		WithLogger(zap.New(core)),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	stats, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.CacheEntriesPurged)
	require.Equal(t, int64(1), stats.AuditLogsDeleted)
	require.Equal(t, int64(1), stats.StalePendingGrants)
	require.Equal(t, 1, logs.FilterMessage("pending credit grants awaiting payment").Len())

	// Reporting never transitions grants.
	var reloaded models.CreditGrant
	require.NoError(t, db.First(&reloaded, "id = ?", stale.ID).Error)
	require.Equal(t, models.CreditGrantPendingPayment, reloaded.Status)

	_, ok, err := store.Get(context.Background(), "live")
	require.NoError(t, err)
	require.True(t, ok)
}

type failingPurger struct{}

func (failingPurger) PurgeExpired(context.Context) (int64, error) {
	return 0, errors.New("purge failed")
}

type failingPruner struct{}

func (failingPruner) CleanupOlderThan(context.Context, int) (int64, error) {
	return 0, errors.New("prune failed")
}

func TestCleanerRunOnceCollectsErrors(t *testing.T) {
	c := NewCleaner(failingPurger{}, failingPruner{}, nil)

	_, err := c.RunOnce(context.Background())
	require.ErrorContains(t, err, "purge failed")
	require.ErrorContains(t, err, "prune failed")
}

func TestCleanerStartWithoutJobs(t *testing.T) {
	c := NewCleaner(nil, nil, nil)
	require.NoError(t, c.Start())
	<-c.Stop().Done()
}

func TestCleanerStartRejectsInvalidSchedule(t *testing.T) {
	c := NewCleaner(failingPurger{}, nil, nil, WithCacheSchedule("not a schedule"))
	require.Error(t, c.Start())
}
