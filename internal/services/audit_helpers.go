package services

import "context"

type requestMetaKey struct{}

// RequestMeta carries client details attached to audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta returns a context carrying client details for audit logging.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ensureContext(ctx), requestMetaKey{}, meta)
}

// recordAudit logs the supplied entry while tolerating audit failures.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	if meta, ok := ensureContext(ctx).Value(requestMetaKey{}).(RequestMeta); ok {
		if entry.IPAddress == "" {
			entry.IPAddress = meta.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = meta.UserAgent
		}
	}
	_ = audit.Log(ctx, entry)
}
