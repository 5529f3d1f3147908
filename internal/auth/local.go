package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/teamcredits/pkg/crypto"
)

// LocalAccount is a manager allowed to sign in to the local provider.
type LocalAccount struct {
	Email        string
	PasswordHash string
}

// LocalConfig configures the development identity provider.
type LocalConfig struct {
	JWT      JWTConfig
	Accounts []LocalAccount
}

// LocalProvider issues and verifies HS256 tokens for configured accounts. It
// stands in for Firebase outside production.
type LocalProvider struct {
	jwt      *JWTService
	accounts map[string]string
}

// NewLocalProvider constructs a LocalProvider.
func NewLocalProvider(cfg LocalConfig) (*LocalProvider, error) {
	svc, err := NewJWTService(cfg.JWT)
	if err != nil {
		return nil, err
	}

	accounts := make(map[string]string, len(cfg.Accounts))
	for _, account := range cfg.Accounts {
		email := strings.ToLower(strings.TrimSpace(account.Email))
		if email == "" || strings.TrimSpace(account.PasswordHash) == "" {
			return nil, errors.New("local auth: account requires email and password hash")
		}
		accounts[email] = account.PasswordHash
	}

	return &LocalProvider{jwt: svc, accounts: accounts}, nil
}

// VerifyToken validates a token previously issued by SignIn.
func (p *LocalProvider) VerifyToken(_ context.Context, token string) (*Actor, error) {
	claims, err := p.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, ok := p.accounts[strings.ToLower(claims.Email)]; !ok {
		return nil, fmt.Errorf("%w: account no longer configured", ErrInvalidToken)
	}

	return &Actor{
		Subject:   claims.Subject,
		Email:     strings.ToLower(claims.Email),
		Provider:  "local",
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SignIn checks the bcrypt hash of a configured account and mints a token.
func (p *LocalProvider) SignIn(_ context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, ok := p.accounts[email]
	if !ok || !crypto.VerifyPassword(hash, password) {
		return nil, ErrInvalidCredentials
	}

	token, _, err := p.jwt.GenerateAccessToken("local:"+email, email)
	if err != nil {
		return nil, err
	}

	return &Session{
		IDToken:   token,
		ExpiresIn: int64(p.jwt.TTL().Seconds()),
		Email:     email,
	}, nil
}
