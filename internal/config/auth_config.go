package config

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// AuthConfig holds the token and lockout settings for the auth subsystem.
// All values come from environment variables with production-ready defaults.
type AuthConfig struct {
	JWTSecret       []byte
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// PruneWindow is how long a revoked token is kept around so that
	// reuse of a recently-rotated token can still be detected.
	PruneWindow        time.Duration
	LockoutMaxAttempts int
	LockoutDuration    time.Duration
}

// LoadAuthConfig loads auth configuration from environment variables.
func LoadAuthConfig() *AuthConfig {
	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		jwtSecret = []byte("default-secret-key-change-in-production")
		logrus.Warn("JWT_SECRET not set, using default secret")
	}

	cfg := &AuthConfig{
		JWTSecret:          jwtSecret,
		Issuer:             getEnv("JWT_ISSUER", "halcyon-game-backend"),
		AccessTokenTTL:     getDuration("ACCESS_TOKEN_TTL", 2*time.Hour),
		RefreshTokenTTL:    getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		PruneWindow:        getDuration("TOKEN_PRUNE_WINDOW", 48*time.Hour),
		LockoutMaxAttempts: getInt("LOCKOUT_MAX_ATTEMPTS", 5),
		LockoutDuration:    getDuration("LOCKOUT_DURATION", 15*time.Minute),
	}

	logrus.Infof("Access token TTL: %s", cfg.AccessTokenTTL)
	logrus.Infof("Refresh token TTL: %s", cfg.RefreshTokenTTL)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			return parsed
		}
		logrus.Warnf("Invalid duration for %s, using default %s", key, defaultValue)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if raw := os.Getenv(key); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			return value
		}
		logrus.Warnf("Invalid integer for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}
