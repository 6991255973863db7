package config

import (
	"os"
	"strconv"
	"time"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/store"
)

// applyEnvOverrides maps the short deployment environment variables onto
// the configuration. These are the variables a docker-compose deployment
// sets; they take precedence over the config file.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Inference.BaseURL, "AI_SERVICE_URL")
	setString(&cfg.Library.BaseURL, "LIBRARY_URL")
	setString(&cfg.Library.APIKey, "LIBRARY_API_KEY")

	setString(&cfg.Storage.UploadDir, "UPLOAD_DIR")
	setString(&cfg.Storage.ArtifactDir, "ARTIFACT_DIR")

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Type = store.DatabaseTypePostgres
		cfg.Database.Postgres.Host = host
	}
	setInt(&cfg.Database.Postgres.Port, "DB_PORT")
	setString(&cfg.Database.Postgres.Database, "DB_NAME")
	setString(&cfg.Database.Postgres.User, "DB_USER")
	setString(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setString(&cfg.Database.Postgres.SSLMode, "DB_SSLMODE")

	setMillis(&cfg.Models.AutoTimeout, "MODEL_TIMEOUT_AUTO_MS")
	setMillis(&cfg.Models.ManualTimeout, "MODEL_TIMEOUT_MANUAL_MS")
	setMillis(&cfg.Worker.Tick, "WORKER_TICK_MS")

	if raw := os.Getenv("AUTO_START_WORKER"); raw != "" {
		if enabled, err := strconv.ParseBool(raw); err == nil {
			cfg.Worker.AutoStart = &enabled
		}
	}
	setInt(&cfg.API.Port, "PORT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setMillis(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			*dst = time.Duration(ms) * time.Millisecond
		}
	}
}
