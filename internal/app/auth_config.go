package app

import (
	"strings"

	"github.com/charlesng35/teamcredits/internal/auth"
)

// Identity provider names accepted in auth.provider.
const (
	AuthProviderFirebase = "firebase"
	AuthProviderLocal    = "local"
)

// GateConfig converts AuthConfig into the identity gate parameters.
func (c AuthConfig) GateConfig() auth.GateConfig {
	return auth.GateConfig{
		CacheTTL: c.CacheTTL,
		Timeout:  c.Timeout,
	}
}

// FirebaseConfig converts AuthConfig into Firebase provider parameters.
func (c AuthConfig) FirebaseConfig() auth.FirebaseConfig {
	return auth.FirebaseConfig{
		ProjectID:      strings.TrimSpace(c.Firebase.ProjectID),
		APIKey:         strings.TrimSpace(c.Firebase.APIKey),
		SignInEndpoint: strings.TrimSpace(c.Firebase.SignInEndpoint),
		KeysURL:        strings.TrimSpace(c.Firebase.KeysURL),
		Timeout:        c.Timeout,
	}
}

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.Local.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.Local.JWT.Secret,
		Issuer:         c.Local.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// LocalConfig converts AuthConfig into local provider parameters.
func (c AuthConfig) LocalConfig() auth.LocalConfig {
	accounts := make([]auth.LocalAccount, 0, len(c.Local.Accounts))
	for _, entry := range c.Local.Accounts {
		accounts = append(accounts, auth.LocalAccount{
			Email:        strings.ToLower(strings.TrimSpace(entry.Email)),
			PasswordHash: strings.TrimSpace(entry.PasswordHash),
		})
	}
	return auth.LocalConfig{
		JWT:      c.JWTServiceConfig(),
		Accounts: accounts,
	}
}
