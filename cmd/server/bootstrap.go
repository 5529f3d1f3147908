package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/teamcredits/internal/api"
	"github.com/charlesng35/teamcredits/internal/app"
	"github.com/charlesng35/teamcredits/internal/app/maintenance"
	iauth "github.com/charlesng35/teamcredits/internal/auth"
	"github.com/charlesng35/teamcredits/internal/cache"
	"github.com/charlesng35/teamcredits/internal/database"
	"github.com/charlesng35/teamcredits/internal/middleware"
	"github.com/charlesng35/teamcredits/internal/monitoring"
	"github.com/charlesng35/teamcredits/internal/monitoring/checks"
	"github.com/charlesng35/teamcredits/internal/payments"
	"github.com/charlesng35/teamcredits/internal/pricing"
	"github.com/charlesng35/teamcredits/internal/services"
	"github.com/charlesng35/teamcredits/pkg/id"
	"github.com/charlesng35/teamcredits/pkg/logger"
	"github.com/charlesng35/teamcredits/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *cache.RedisStore
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises databases, caches, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	var store cache.Store = dbStore
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
			stack.Redis = nil
		} else {
			store = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}
	stack.RateStore = middleware.NewCacheRateStore(store)

	identity, err := newIdentityProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	gate, err := iauth.NewGate(identity, store, cfg.Auth.GateConfig(), iauth.WithGateLogger(logger.WithModule("auth")))
	if err != nil {
		return nil, fmt.Errorf("initialise identity gate: %w", err)
	}

	mailer, err := newMailer(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := payments.NewStripeProvider(cfg.Payments.StripeConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise payment provider: %w", err)
	}

	basePrice, err := cfg.Pricing.BasePriceMoney()
	if err != nil {
		return nil, err
	}
	policy, err := pricing.NewPolicy(basePrice, nil)
	if err != nil {
		return nil, fmt.Errorf("initialise pricing policy: %w", err)
	}

	references, err := id.NewGenerator(cfg.Credits.NodeID, services.PurchaseReferencePrefix)
	if err != nil {
		return nil, fmt.Errorf("initialise purchase reference generator: %w", err)
	}

	auditSvc, err := services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}
	orgSvc, err := services.NewOrganizationService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise organization service: %w", err)
	}
	teamSvc, err := services.NewTeamService(stack.DB, auditSvc, mailer, cfg.Team.TeamLinks())
	if err != nil {
		return nil, fmt.Errorf("initialise team service: %w", err)
	}
	creditSvc, err := services.NewCreditService(stack.DB, auditSvc, teamSvc, policy,
		services.WithEligibleStatuses(cfg.Credits.EligibleStatuses()...),
		services.WithReferenceGenerator(references.Next),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise credit service: %w", err)
	}
	paymentSvc, err := services.NewPaymentService(creditSvc, provider, services.WithPaymentTimeout(cfg.Payments.Timeout))
	if err != nil {
		return nil, fmt.Errorf("initialise payment service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(dbStore, auditSvc, creditSvc,
			maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
			maintenance.WithPendingExpiry(cfg.Credits.PendingExpiry),
			maintenance.WithCacheSchedule(cfg.Maintenance.CacheSchedule),
			maintenance.WithAuditSchedule(cfg.Maintenance.AuditSchedule),
			maintenance.WithPendingSchedule(cfg.Maintenance.PendingSchedule),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	var redisPinger checks.RedisPinger
	if stack.Redis != nil {
		redisPinger = stack.Redis
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:            stack.DB,
		Config:        cfg,
		Gate:          gate,
		Authenticator: identity,
		Organizations: orgSvc,
		Team:          teamSvc,
		Credits:       creditSvc,
		Payments:      paymentSvc,
		RateStore:     stack.RateStore,
		Probes:        []monitoring.Check{checks.Redis(redisPinger, cfg.Cache.Redis.Enabled, cfg.Cache.Redis.Timeout)},
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs still running at shutdown", zap.Error(ctx.Err()))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func newIdentityProvider(ctx context.Context, cfg *app.Config) (iauth.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Auth.Provider)) {
	case app.AuthProviderFirebase:
		provider, err := iauth.NewFirebaseProvider(ctx, cfg.Auth.FirebaseConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise firebase provider: %w", err)
		}
		return provider, nil
	case app.AuthProviderLocal:
		provider, err := iauth.NewLocalProvider(cfg.Auth.LocalConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise local identity provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("auth.provider %q is not supported", cfg.Auth.Provider)
	}
}

func newMailer(cfg *app.Config) (mail.Mailer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Email.Provider)) {
	case app.EmailProviderSendGrid:
		mailer, err := mail.NewSendGridMailer(cfg.Email.SendGridSettings())
		if err != nil {
			return nil, fmt.Errorf("initialise sendgrid mailer: %w", err)
		}
		return mailer, nil
	case app.EmailProviderSMTP:
		settings := cfg.Email.SMTPSettings()
		settings.Enabled = true
		mailer, err := mail.NewSMTPMailer(settings)
		if err != nil {
			return nil, fmt.Errorf("initialise smtp mailer: %w", err)
		}
		return mailer, nil
	case app.EmailProviderLog:
		return mail.NewLogMailer(cfg.Email.From, logger.WithModule("mail")), nil
	default:
		return nil, fmt.Errorf("email.provider %q is not supported", cfg.Email.Provider)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
		dbCfg.Options = cfg.Database.Postgres.Options
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
		dbCfg.Options = cfg.Database.MySQL.Options
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if err := database.Close(db); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
