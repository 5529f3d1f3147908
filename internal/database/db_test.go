package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/teamcredits/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(context.Background(), db))
}

func TestOpenSQLiteFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "teamcredits.sqlite")

	db, err := Open(Config{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, AutoMigrate(db))
	require.FileExists(t, path)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestAutoMigrateCreatesTables(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	for _, model := range []any{
		&models.Organization{},
		&models.TeamMember{},
		&models.CreditGrant{},
		&models.AuditLog{},
		&models.CacheEntry{},
	} {
		require.True(t, db.Migrator().HasTable(model), "missing table for %T", model)
	}
}

func TestTeamMemberEmailUniquePerOrganization(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	org := models.Organization{ManagerEmail: "manager@example.com"}
	require.NoError(t, db.Create(&org).Error)

	first := models.TeamMember{OrganizationID: org.ID, Email: "member@example.com", Status: models.TeamMemberPending, InvitedAt: time.Now()}
	require.NoError(t, db.Create(&first).Error)

	dup := models.TeamMember{OrganizationID: org.ID, Email: "member@example.com", Status: models.TeamMemberPending, InvitedAt: time.Now()}
	require.Error(t, db.Create(&dup).Error)
}

func TestAutoMigrateNilHandle(t *testing.T) {
	require.Error(t, AutoMigrate(nil))
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = Close(db)
	})

	return db
}
