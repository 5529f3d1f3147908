package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidToken reports a missing, malformed, expired or rejected bearer token.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrInvalidCredentials reports a failed password sign-in.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrProviderUnavailable reports that the identity provider could not be reached.
	ErrProviderUnavailable = errors.New("auth: identity provider unavailable")
)

// Actor is the verified caller behind a bearer token. Managers are identified
// by email.
type Actor struct {
	Subject   string    `json:"sub"`
	Email     string    `json:"email"`
	Provider  string    `json:"provider"`
	ExpiresAt time.Time `json:"exp"`
}

// IdentityVerifier checks a bearer token with the identity provider.
type IdentityVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Actor, error)
}

// Session is returned by a successful password sign-in.
type Session struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	Email        string `json:"email"`
}

// Authenticator exchanges email and password for a Session.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
}

// Provider is an identity backend that both issues and verifies tokens.
type Provider interface {
	IdentityVerifier
	Authenticator
}
