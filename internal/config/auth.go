package config

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// minSecretLength guards against trivially brute-forced HS256 keys.
const minSecretLength = 16

// maxBcryptCost bounds login latency; cost 15 already takes seconds.
const maxBcryptCost = 14

// TokenIssuer is the iss claim on every mentor token.
const TokenIssuer = "codecraft"

// JWTConfig holds the signing settings for mentor tokens.
type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// NewJWTConfig derives the token settings from cfg. JWT_SECRET must be set
// and at least 16 bytes long.
func NewJWTConfig(cfg *Config) (*JWTConfig, error) {
	if len(cfg.JWTSecret) < minSecretLength {
		return nil, fmt.Errorf("config error: JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if cfg.JWTExpirationHours < 1 {
		return nil, fmt.Errorf("config error: JWT_EXPIRATION_HOURS must be at least 1, got %d", cfg.JWTExpirationHours)
	}
	return &JWTConfig{
		Secret: cfg.JWTSecret,
		Issuer: TokenIssuer,
		TTL:    time.Duration(cfg.JWTExpirationHours) * time.Hour,
	}, nil
}

// PasswordConfig hashes and verifies mentor passwords.
type PasswordConfig struct {
	BcryptCost int
	Pepper     string
}

// NewPasswordConfig derives the hashing settings from cfg.
func NewPasswordConfig(cfg *Config) (*PasswordConfig, error) {
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > maxBcryptCost {
		return nil, fmt.Errorf("config error: BCRYPT_COST must be %d-%d, got %d", bcrypt.MinCost, maxBcryptCost, cfg.BcryptCost)
	}
	return &PasswordConfig{BcryptCost: cfg.BcryptCost, Pepper: cfg.PasswordPepper}, nil
}

// HashPassword returns the bcrypt hash of the peppered password.
func (c *PasswordConfig) HashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw+c.Pepper), c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether pw matches storedHash.
func (c *PasswordConfig) VerifyPassword(pw, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(pw+c.Pepper)) == nil
}
