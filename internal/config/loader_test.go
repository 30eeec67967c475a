package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allKeys = []string{
	"RESERVAS_ENV_FILE",
	"RESERVAS_HTTP_PORT",
	"RESERVAS_DB_DRIVER",
	"RESERVAS_DB_DSN",
	"RESERVAS_JWT_SECRET",
	"RESERVAS_ACCESS_TOKEN_TTL",
	"RESERVAS_REFRESH_TOKEN_TTL",
	"RESERVAS_TIMEZONE",
	"RESERVAS_OCCURRENCE_BATCH_SIZE",
	"RESERVAS_HOLIDAYS",
	"RESERVAS_LOG_LEVEL",
	"RESERVAS_LOG_FORMAT",
	"RESERVAS_CORS_ORIGINS",
	"RESERVAS_REDIS_ADDR",
	"RESERVAS_REDIS_PASSWORD",
	"RESERVAS_REDIS_STREAM",
	"RESERVAS_MQTT_BROKER",
	"RESERVAS_MQTT_CLIENT_ID",
	"RESERVAS_MQTT_TOPIC",
	"RESERVAS_ADMIN_EMAIL",
	"RESERVAS_ADMIN_PASSWORD",
}

// clearEnv empties every variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestFromEnv(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RESERVAS_JWT_SECRET", "super-secret")

		cfg, err := FromEnv()
		if err != nil {
			t.Fatalf("FromEnv returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 || cfg.Addr() != ":8080" {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.DBDriver != DriverSQLite || cfg.DBDSN != "file:reservas.db?_pragma=foreign_keys(1)" {
			t.Fatalf("unexpected default database %q %q", cfg.DBDriver, cfg.DBDSN)
		}
		if cfg.AccessTokenTTL != 30*time.Minute || cfg.RefreshTokenTTL != 168*time.Hour {
			t.Fatalf("unexpected token TTLs %s %s", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
		}
		if cfg.Timezone == nil || cfg.Timezone.String() != "America/Sao_Paulo" {
			t.Fatalf("unexpected timezone %v", cfg.Timezone)
		}
		if cfg.OccurrenceBatchSize != 500 || cfg.Holidays != HolidaysBrazil {
			t.Fatalf("unexpected generation defaults %d %q", cfg.OccurrenceBatchSize, cfg.Holidays)
		}
		if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
			t.Fatalf("unexpected logging defaults %q %q", cfg.LogLevel, cfg.LogFormat)
		}
		if cfg.RedisStream != "reservas:audit" || cfg.MQTTTopic != "reservas/notifications" {
			t.Fatalf("unexpected messaging defaults %q %q", cfg.RedisStream, cfg.MQTTTopic)
		}
		if cfg.RedisAddr != "" || cfg.MQTTBroker != "" || len(cfg.CORSOrigins) != 0 {
			t.Fatalf("expected optional integrations to be disabled")
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RESERVAS_DB_DRIVER", "postgres")
		t.Setenv("RESERVAS_ADMIN_EMAIL", "root@uni.br")

		_, err := FromEnv()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "missing required environment variables: RESERVAS_DB_DSN, RESERVAS_JWT_SECRET, RESERVAS_ADMIN_PASSWORD"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses every field", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RESERVAS_JWT_SECRET", "secret-value")
		t.Setenv("RESERVAS_HTTP_PORT", "9090")
		t.Setenv("RESERVAS_DB_DRIVER", "POSTGRES")
		t.Setenv("RESERVAS_DB_DSN", "postgres://localhost/reservas?sslmode=disable")
		t.Setenv("RESERVAS_ACCESS_TOKEN_TTL", "15m")
		t.Setenv("RESERVAS_REFRESH_TOKEN_TTL", "24h")
		t.Setenv("RESERVAS_TIMEZONE", "UTC")
		t.Setenv("RESERVAS_OCCURRENCE_BATCH_SIZE", "100")
		t.Setenv("RESERVAS_HOLIDAYS", "none")
		t.Setenv("RESERVAS_LOG_LEVEL", "DEBUG")
		t.Setenv("RESERVAS_LOG_FORMAT", "text")
		t.Setenv("RESERVAS_CORS_ORIGINS", "http://localhost:3000, https://reservas.uni.br ,")
		t.Setenv("RESERVAS_REDIS_ADDR", "localhost:6379")
		t.Setenv("RESERVAS_MQTT_BROKER", "tcp://localhost:1883")
		t.Setenv("RESERVAS_ADMIN_EMAIL", "root@uni.br")
		t.Setenv("RESERVAS_ADMIN_PASSWORD", "bootstrap-pass")

		cfg, err := FromEnv()
		if err != nil {
			t.Fatalf("FromEnv returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 || cfg.DBDriver != DriverPostgres {
			t.Fatalf("unexpected port/driver %d %q", cfg.HTTPPort, cfg.DBDriver)
		}
		if cfg.AccessTokenTTL != 15*time.Minute || cfg.RefreshTokenTTL != 24*time.Hour {
			t.Fatalf("unexpected TTLs %s %s", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
		}
		if cfg.Timezone != time.UTC {
			t.Fatalf("expected UTC, got %v", cfg.Timezone)
		}
		if cfg.OccurrenceBatchSize != 100 || cfg.Holidays != HolidaysNone || cfg.LogLevel != "debug" || cfg.LogFormat != "text" {
			t.Fatalf("unexpected values %+v", cfg)
		}
		if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://reservas.uni.br" {
			t.Fatalf("unexpected CORS origins %v", cfg.CORSOrigins)
		}
		if cfg.AdminPassword != "bootstrap-pass" {
			t.Fatalf("unexpected admin password %q", cfg.AdminPassword)
		}
	})

	t.Run("reports invalid values together", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RESERVAS_JWT_SECRET", "secret")
		t.Setenv("RESERVAS_HTTP_PORT", "abc")
		t.Setenv("RESERVAS_DB_DRIVER", "mysql")
		t.Setenv("RESERVAS_ACCESS_TOKEN_TTL", "-1m")
		t.Setenv("RESERVAS_TIMEZONE", "Mars/Olympus")
		t.Setenv("RESERVAS_OCCURRENCE_BATCH_SIZE", "0")
		t.Setenv("RESERVAS_HOLIDAYS", "moon")
		t.Setenv("RESERVAS_LOG_FORMAT", "xml")

		_, err := FromEnv()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "invalid environment variables: RESERVAS_HTTP_PORT, RESERVAS_DB_DRIVER, RESERVAS_ACCESS_TOKEN_TTL, RESERVAS_TIMEZONE, RESERVAS_OCCURRENCE_BATCH_SIZE, RESERVAS_HOLIDAYS, RESERVAS_LOG_FORMAT"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "test.env")
	content := "RESERVAS_JWT_SECRET=from-file\nRESERVAS_HTTP_PORT=7070\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("RESERVAS_ENV_FILE", path)
	t.Setenv("RESERVAS_HTTP_PORT", "6060")
	t.Cleanup(func() { os.Unsetenv("RESERVAS_JWT_SECRET") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.JWTSecret != "from-file" {
		t.Fatalf("expected secret from file, got %q", cfg.JWTSecret)
	}
	if cfg.HTTPPort != 6060 {
		t.Fatalf("expected process environment to win, got %d", cfg.HTTPPort)
	}
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("RESERVAS_ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	t.Setenv("RESERVAS_JWT_SECRET", "secret")

	if _, err := Load(); err != nil {
		t.Fatalf("expected missing env file to be ignored, got %v", err)
	}
}
