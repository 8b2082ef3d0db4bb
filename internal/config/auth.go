package config

import "fmt"

// minProductionSecretLen is the HS256 key size recommended by RFC 7518 §3.2.
const minProductionSecretLen = 32

// AuthConfig configures verification of operator bearer tokens.
// Tokens are issued by the login service; this service only verifies them.
type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET"`
	Issuer    string `envconfig:"ISSUER"`
}

// Validate checks the secret is present and, in production, long enough.
func (c *AuthConfig) Validate(environment string) error {
	if c.JWTSecret == "" {
		return fmt.Errorf("auth JWT secret is required")
	}
	if environment == EnvironmentProduction && len(c.JWTSecret) < minProductionSecretLen {
		return fmt.Errorf("auth JWT secret must be at least %d characters in production", minProductionSecretLen)
	}
	return nil
}
