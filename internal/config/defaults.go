package config

import "github.com/knadh/koanf/providers/confmap"

// DefaultConfig returns the built-in settings as a flat koanf map.
func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"app_env": "development",

		"server.port":            8080,
		"server.allowed_origins": []string{"http://localhost:3000"},

		"database.path":         "./reminders.db",
		"database.busy_timeout": "5s",

		"auth.jwt_secret": "",
		"auth.token_ttl":  "168h",

		"log.level":  "info",
		"log.pretty": true,

		"scheduler.spec":                     "@every 1m",
		"scheduler.lookahead":                "5m",
		"scheduler.catch_up":                 false,
		"scheduler.workers":                  4,
		"scheduler.max_consecutive_failures": 0,

		"notify.send_timeout":  "30s",
		"notify.rate_per_sec":  5,
		"notify.timezone":      "UTC",
		"notify.dashboard_url": "http://localhost:3000/dashboard",
		"notify.app_name":      "Necessity Reminder",

		"smtp.host":     "smtp.gmail.com",
		"smtp.port":     587,
		"smtp.username": "",
		"smtp.password": "",
		"smtp.from":     "",
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}
