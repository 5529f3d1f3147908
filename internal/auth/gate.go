package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/teamcredits/internal/cache"
	"github.com/charlesng35/teamcredits/pkg/crypto"
	apperrors "github.com/charlesng35/teamcredits/pkg/errors"
	"github.com/charlesng35/teamcredits/pkg/metrics"
)

const (
	defaultVerifyTimeout = 5 * time.Second
	identityCachePrefix  = "identity:"
)

// GateConfig tunes token verification. A zero CacheTTL disables caching.
type GateConfig struct {
	CacheTTL time.Duration
	Timeout  time.Duration
}

// Gate resolves bearer tokens into actors. Verified results may be cached but
// never beyond the token's own expiry.
type Gate struct {
	verifier IdentityVerifier
	store    cache.Store
	cfg      GateConfig
	now      func() time.Time
	logger   *zap.Logger
}

// GateOption configures optional Gate behaviour.
type GateOption func(*Gate)

// WithGateClock overrides the clock used for expiry checks.
func WithGateClock(clock func() time.Time) GateOption {
	return func(g *Gate) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithGateLogger sets the logger used for cache failures.
func WithGateLogger(logger *zap.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate constructs a Gate. store may be nil to disable caching.
func NewGate(verifier IdentityVerifier, store cache.Store, cfg GateConfig, opts ...GateOption) (*Gate, error) {
	if verifier == nil {
		return nil, errors.New("auth: identity verifier is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultVerifyTimeout
	}
	gate := &Gate{
		verifier: verifier,
		store:    store,
		cfg:      cfg,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(gate)
	}
	return gate, nil
}

// ExtractBearer returns the token from an Authorization header value.
func ExtractBearer(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

// Verify returns the actor for token or apperrors.ErrUnauthorized.
func (g *Gate) Verify(ctx context.Context, token string) (*Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		metrics.IdentityVerifications.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrUnauthorized.WithInternal(ErrInvalidToken)
	}

	key := identityCachePrefix + crypto.Fingerprint(token)
	if actor := g.cached(ctx, key); actor != nil {
		metrics.IdentityVerifications.WithLabelValues("cached").Inc()
		return actor, nil
	}

	verifyCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	actor, err := g.verifier.VerifyToken(verifyCtx, token)
	if err != nil {
		metrics.IdentityVerifications.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrUnauthorized.WithInternal(err)
	}
	if actor == nil || strings.TrimSpace(actor.Email) == "" {
		metrics.IdentityVerifications.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrUnauthorized.WithInternal(ErrInvalidToken)
	}
	if !actor.ExpiresAt.IsZero() && !g.now().Before(actor.ExpiresAt) {
		metrics.IdentityVerifications.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrUnauthorized.WithInternal(ErrInvalidToken)
	}

	g.remember(ctx, key, actor)
	metrics.IdentityVerifications.WithLabelValues("success").Inc()
	return actor, nil
}

func (g *Gate) cached(ctx context.Context, key string) *Actor {
	if g.store == nil || g.cfg.CacheTTL <= 0 {
		return nil
	}
	raw, ok, err := g.store.Get(ctx, key)
	if err != nil {
		g.logger.Warn("identity cache read failed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	var actor Actor
	if err := json.Unmarshal(raw, &actor); err != nil {
		_ = g.store.Delete(ctx, key)
		return nil
	}
	if actor.ExpiresAt.IsZero() || !g.now().Before(actor.ExpiresAt) {
		_ = g.store.Delete(ctx, key)
		return nil
	}
	return &actor
}

func (g *Gate) remember(ctx context.Context, key string, actor *Actor) {
	if g.store == nil || g.cfg.CacheTTL <= 0 || actor.ExpiresAt.IsZero() {
		return
	}
	ttl := min(g.cfg.CacheTTL, actor.ExpiresAt.Sub(g.now()))
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(actor)
	if err != nil {
		return
	}
	if err := g.store.Set(ctx, key, raw, ttl); err != nil {
		g.logger.Warn("identity cache write failed", zap.Error(err))
	}
}
