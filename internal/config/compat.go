package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnv reads environment variables that are not represented by
// dedicated CLI flags in the serve command, then the variable names used by
// earlier deployments (MONGO_URI, GOOGLE_CLIENT_ID, ...). A legacy variable
// only applies when its MEDB_ counterpart is unset.
func (c *Config) ApplyEnv() error {
	if c == nil {
		return nil
	}

	var err error
	if err = applyBoolEnv("MEDB_DB_MIGRATE_AT_START", &c.DatastoreMigrateAtStart); err != nil {
		return err
	}
	if err = applyDurationEnv("MEDB_SESSION_TTL", &c.SessionTTL); err != nil {
		return err
	}
	if err = applyBoolEnv("MEDB_SESSION_COOKIE_SECURE", &c.SessionCookieSecure); err != nil {
		return err
	}
	if err = applyDurationEnv("MEDB_LAST_ACTIVE_INTERVAL", &c.LastActiveInterval); err != nil {
		return err
	}
	if err = applyBoolEnv("MEDB_CORS_ENABLED", &c.CORSEnabled); err != nil {
		return err
	}
	applyStringEnv("MEDB_CORS_ORIGINS", &c.CORSOrigins)
	applyStringEnv("MEDB_DB_NAME", &c.DBName)

	return c.applyLegacyEnv()
}

func (c *Config) applyLegacyEnv() error {
	applyLegacyString("MONGO_URI", "MEDB_DB_URL", &c.DBURL)
	applyLegacyString("MONGODB_URI", "MEDB_DB_URL", &c.DBURL)
	applyLegacyString("GOOGLE_CLIENT_ID", "MEDB_GOOGLE_CLIENT_ID", &c.GoogleClientID)
	applyLegacyString("GOOGLE_CLIENT_SECRET", "MEDB_GOOGLE_CLIENT_SECRET", &c.GoogleClientSecret)
	applyLegacyString("ADMIN_EMAILS", "MEDB_ADMIN_EMAILS", &c.AdminEmails)
	applyLegacyString("CLIENT_URL", "MEDB_CLIENT_URL", &c.ClientURL)
	applyLegacyString("SESSION_SECRET", "MEDB_SESSION_SECRET", &c.SessionSecret)
	applyLegacyString("REDIS_URL", "MEDB_REDIS_URL", &c.RedisURL)
	if os.Getenv("MEDB_PORT") == "" {
		if err := applyIntEnv("PORT", &c.Listener.Port); err != nil {
			return err
		}
	}
	return nil
}

func applyLegacyString(legacyKey, key string, dest *string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	applyStringEnv(legacyKey, dest)
}

func applyStringEnv(key string, dest *string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	*dest = raw
}

func applyIntEnv(key string, dest *int) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dest = v
	return nil
}

func applyBoolEnv(key string, dest *bool) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dest = v
	return nil
}

func applyDurationEnv(key string, dest *time.Duration) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := parseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dest = v
	return nil
}

func parseDuration(raw string) (time.Duration, error) {
	v := strings.TrimSpace(strings.ToUpper(raw))
	if v == "" {
		return 0, fmt.Errorf("empty duration")
	}

	// Go duration first (e.g. 30s, 5m).
	if d, err := time.ParseDuration(strings.ToLower(v)); err == nil {
		return d, nil
	}

	// Minimal ISO-8601 support: PT#H#M#S
	if !strings.HasPrefix(v, "PT") {
		return 0, fmt.Errorf("unsupported format %q", raw)
	}
	rest := strings.TrimPrefix(v, "PT")
	if rest == "" {
		return 0, fmt.Errorf("invalid format %q", raw)
	}
	total := time.Duration(0)
	for len(rest) > 0 {
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 0 || i >= len(rest) {
			return 0, fmt.Errorf("invalid format %q", raw)
		}
		n, err := strconv.Atoi(rest[:i])
		if err != nil {
			return 0, fmt.Errorf("invalid format %q", raw)
		}
		switch rest[i] {
		case 'H':
			total += time.Duration(n) * time.Hour
		case 'M':
			total += time.Duration(n) * time.Minute
		case 'S':
			total += time.Duration(n) * time.Second
		default:
			return 0, fmt.Errorf("invalid format %q", raw)
		}
		rest = rest[i+1:]
	}
	if total <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return total, nil
}
