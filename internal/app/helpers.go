package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/forumhub/core/internal/config"
	jwtpkg "github.com/forumhub/core/internal/pkg/jwt"
	"go.uber.org/zap"
)

// applyRuntimeSettings installs process wide settings: the link signing
// secret and the local time zone.
func applyRuntimeSettings(cfg *config.AppConfig, logger *zap.Logger) error {
	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		jwtpkg.SetSecret(secret)
	} else {
		logger.Warn("jwt_secret is empty, unsubscribe links use the built-in default secret")
	}

	if cfg.Timezone == "" {
		return nil
	}
	loc, err := config.ParseTimezone(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	time.Local = loc
	_ = os.Setenv("TZ", cfg.Timezone)
	return nil
}

// humanizeDuration rounds d to its largest whole unit for display.
func humanizeDuration(d time.Duration) string {
	for _, unit := range []time.Duration{24 * time.Hour, time.Hour, time.Minute} {
		if d >= unit {
			return d.Truncate(unit).String()
		}
	}
	return d.Truncate(time.Second).String()
}
