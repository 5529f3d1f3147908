package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/teamcredits/pkg/logger"
	"github.com/charlesng35/teamcredits/pkg/metrics"
)

const (
	defaultAuditRetentionDays = 90
	defaultPendingExpiry      = 24 * time.Hour
	defaultCacheSpec          = "@hourly"
	defaultAuditSpec          = "@daily"
	defaultPendingSpec        = "@hourly"
)

// CachePurger removes expired cache rows.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// AuditPruner deletes audit logs past the retention window.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// PendingCounter counts pending credit grants created before a cutoff.
type PendingCounter interface {
	CountStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner coordinates background maintenance: purging expired cache entries,
// pruning stale audit logs and reporting abandoned checkouts. Pending grants
// are only reported, never transitioned.
type Cleaner struct {
	cache     CachePurger
	audit     AuditPruner
	pending   PendingCounter
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int
	expiry    time.Duration

	cacheSchedule   string
	auditSchedule   string
	pendingSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cutoff comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithLogger overrides the maintenance logger.
func WithLogger(log *zap.Logger) Option {
	return func(cleaner *Cleaner) {
		if log != nil {
			cleaner.log = log
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithPendingExpiry sets the age after which a pending grant is reported as stale.
func WithPendingExpiry(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.expiry = d
		}
	}
}

// WithCacheSchedule overrides the cron expression for cache purging.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron expression for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// WithPendingSchedule overrides the cron expression for the stale grant report.
func WithPendingSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.pendingSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. Any nil dependency results in the
// corresponding job being skipped.
func NewCleaner(cache CachePurger, audit AuditPruner, pending PendingCounter, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		cache:           cache,
		audit:           audit,
		pending:         pending,
		now:             time.Now,
		retention:       defaultAuditRetentionDays,
		expiry:          defaultPendingExpiry,
		cacheSchedule:   defaultCacheSpec,
		auditSchedule:   defaultAuditSpec,
		pendingSchedule: defaultPendingSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

func (c *Cleaner) enabled() bool {
	return c.cache != nil || c.audit != nil || c.pending != nil
}

// Start registers jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled() {
		return nil
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if _, err := c.purgeCache(context.Background()); err != nil {
				c.log.Warn("cache purge failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			if _, err := c.pruneAudit(context.Background()); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.pending != nil {
		if _, err := c.cron.AddFunc(c.pendingSchedule, func() {
			if _, err := c.reportStalePending(context.Background()); err != nil {
				c.log.Warn("stale grant report failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// Stats summarises a maintenance pass.
type Stats struct {
	CacheEntriesPurged int64
	AuditLogsDeleted   int64
	StalePendingGrants int64
}

// RunOnce executes every configured job sequentially, collecting all errors.
func (c *Cleaner) RunOnce(ctx context.Context) (Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		stats Stats
		errs  error
		err   error
	)

	if c.cache != nil {
		stats.CacheEntriesPurged, err = c.purgeCache(ctx)
		errs = multierr.Append(errs, err)
	}
	if c.audit != nil {
		stats.AuditLogsDeleted, err = c.pruneAudit(ctx)
		errs = multierr.Append(errs, err)
	}
	if c.pending != nil {
		stats.StalePendingGrants, err = c.reportStalePending(ctx)
		errs = multierr.Append(errs, err)
	}

	return stats, errs
}

func (c *Cleaner) purgeCache(ctx context.Context) (int64, error) {
	removed, err := c.cache.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.log.Debug("purged expired cache entries", zap.Int64("count", removed))
	}
	return removed, nil
}

func (c *Cleaner) pruneAudit(ctx context.Context) (int64, error) {
	return c.audit.CleanupOlderThan(ctx, c.retention)
}

func (c *Cleaner) reportStalePending(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.expiry)
	count, err := c.pending.CountStalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.StalePendingGrants.Set(float64(count))
	if count > 0 {
		c.log.Info("pending credit grants awaiting payment",
			zap.Int64("count", count),
			zap.Duration("older_than", c.expiry))
	}
	return count, nil
}
