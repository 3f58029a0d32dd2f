package config

import "strings"

// defaulted trims s and substitutes fallback when nothing is left.
func defaulted(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

func normalizeDatabaseConfig(cfg DatabaseRuntimeConfig) DatabaseRuntimeConfig {
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.Host = defaulted(cfg.Host, defaultDBHost)
	cfg.User = defaulted(cfg.User, defaultDBUser)
	cfg.Password = defaulted(cfg.Password, defaultDBPassword)
	cfg.Name = defaulted(cfg.Name, defaultDBName)
	cfg.Charset = defaulted(cfg.Charset, defaultDBCharset)
	cfg.Loc = defaulted(cfg.Loc, defaultDBLoc)
	if cfg.Port == 0 {
		cfg.Port = defaultDBPort
	}
	cfg.Params = cleanParams(cfg.Params)
	return cfg
}

func normalizeRedisConfig(cfg RedisRuntimeConfig) RedisRuntimeConfig {
	cfg.URL = redisURLWithScheme(cfg.URL)
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.URL == "" {
		cfg.Host = defaulted(cfg.Host, defaultRedisHost)
	}
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Password = strings.TrimSpace(cfg.Password)
	if cfg.Port == 0 {
		cfg.Port = defaultRedisPort
	}
	cfg.Scheme = redisScheme(cfg.Scheme, cfg.TLS)
	return cfg
}

// redisScheme returns "redis" or "rediss". Anything else falls back to what
// tls implies.
func redisScheme(scheme string, tls bool) string {
	switch s := strings.ToLower(strings.TrimSpace(scheme)); s {
	case "redis", "rediss":
		return s
	}
	if tls {
		return "rediss"
	}
	return "redis"
}

// redisURLWithScheme accepts "host:port/db" shorthand as well as full URLs.
func redisURLWithScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "redis://") || strings.HasPrefix(raw, "rediss://") {
		return raw
	}
	return "redis://" + raw
}

// normalizeOrigins drops blanks and trailing slashes from allowed_origins.
func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	return strings.ToLower(defaulted(env, defaultEnv))
}

func cleanParams(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
