package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/teamcredits/pkg/crypto"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults fills secrets that may be generated safely outside prod.
// It returns a map describing which keys were generated so callers can log the event without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if cfg.Server.Environment != EnvProduction &&
		strings.EqualFold(cfg.Auth.Provider, "local") &&
		strings.TrimSpace(cfg.Auth.Local.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.Local.JWT.Secret = secret
		generated["auth.local.jwt.secret"] = true
	}

	return generated, nil
}
