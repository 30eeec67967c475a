package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Holiday calendars.
const (
	HolidaysBrazil         = "br"
	HolidaysBrazilOptional = "br-optional"
	HolidaysNone           = "none"
)

// Config captures environment driven configuration values for the reservation service.
type Config struct {
	HTTPPort int

	DBDriver string
	DBDSN    string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	Timezone            *time.Location
	OccurrenceBatchSize int
	// Holidays selects the holiday calendar: br, br-optional or none.
	Holidays string

	LogLevel  string
	LogFormat string

	CORSOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisStream   string

	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	AdminEmail    string
	AdminPassword string
}

// Load reads an optional .env file (or the file named by RESERVAS_ENV_FILE)
// and then parses the process environment. Variables already set in the
// environment win over the file.
func Load() (Config, error) {
	path := strings.TrimSpace(os.Getenv("RESERVAS_ENV_FILE"))
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	return FromEnv()
}

// FromEnv parses configuration values from the current process environment.
//
// Defaults are applied to optional fields. Missing and invalid variables are
// reported together, missing first.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPPort:            8080,
		DBDriver:            DriverSQLite,
		DBDSN:               "file:reservas.db?_pragma=foreign_keys(1)",
		AccessTokenTTL:      30 * time.Minute,
		RefreshTokenTTL:     7 * 24 * time.Hour,
		OccurrenceBatchSize: 500,
		Holidays:            HolidaysBrazil,
		LogLevel:            "info",
		LogFormat:           "json",
		RedisStream:         "reservas:audit",
		MQTTClientID:        "reservas",
		MQTTTopic:           "reservas/notifications",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := env("RESERVAS_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "RESERVAS_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if driver := strings.ToLower(env("RESERVAS_DB_DRIVER")); driver != "" {
		switch driver {
		case DriverSQLite, DriverPostgres:
			cfg.DBDriver = driver
		default:
			invalid = append(invalid, "RESERVAS_DB_DRIVER")
		}
	}

	if dsn := env("RESERVAS_DB_DSN"); dsn != "" {
		cfg.DBDSN = dsn
	} else if cfg.DBDriver == DriverPostgres {
		missing = append(missing, "RESERVAS_DB_DSN")
	}

	if secret := env("RESERVAS_JWT_SECRET"); secret == "" {
		missing = append(missing, "RESERVAS_JWT_SECRET")
	} else {
		cfg.JWTSecret = secret
	}

	parseDuration("RESERVAS_ACCESS_TOKEN_TTL", &cfg.AccessTokenTTL, &invalid)
	parseDuration("RESERVAS_REFRESH_TOKEN_TTL", &cfg.RefreshTokenTTL, &invalid)

	tzName := env("RESERVAS_TIMEZONE")
	if tzName == "" {
		tzName = "America/Sao_Paulo"
	}
	if loc, err := time.LoadLocation(tzName); err != nil {
		invalid = append(invalid, "RESERVAS_TIMEZONE")
	} else {
		cfg.Timezone = loc
	}

	if sizeValue := env("RESERVAS_OCCURRENCE_BATCH_SIZE"); sizeValue != "" {
		size, err := strconv.Atoi(sizeValue)
		if err != nil || size <= 0 {
			invalid = append(invalid, "RESERVAS_OCCURRENCE_BATCH_SIZE")
		} else {
			cfg.OccurrenceBatchSize = size
		}
	}

	if holidays := strings.ToLower(env("RESERVAS_HOLIDAYS")); holidays != "" {
		switch holidays {
		case HolidaysBrazil, HolidaysBrazilOptional, HolidaysNone:
			cfg.Holidays = holidays
		default:
			invalid = append(invalid, "RESERVAS_HOLIDAYS")
		}
	}

	if level := strings.ToLower(env("RESERVAS_LOG_LEVEL")); level != "" {
		switch level {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = level
		default:
			invalid = append(invalid, "RESERVAS_LOG_LEVEL")
		}
	}

	if format := strings.ToLower(env("RESERVAS_LOG_FORMAT")); format != "" {
		switch format {
		case "json", "text":
			cfg.LogFormat = format
		default:
			invalid = append(invalid, "RESERVAS_LOG_FORMAT")
		}
	}

	for _, origin := range strings.Split(env("RESERVAS_CORS_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	cfg.RedisAddr = env("RESERVAS_REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("RESERVAS_REDIS_PASSWORD")
	if stream := env("RESERVAS_REDIS_STREAM"); stream != "" {
		cfg.RedisStream = stream
	}

	cfg.MQTTBroker = env("RESERVAS_MQTT_BROKER")
	if clientID := env("RESERVAS_MQTT_CLIENT_ID"); clientID != "" {
		cfg.MQTTClientID = clientID
	}
	if topic := env("RESERVAS_MQTT_TOPIC"); topic != "" {
		cfg.MQTTTopic = topic
	}

	cfg.AdminEmail = env("RESERVAS_ADMIN_EMAIL")
	cfg.AdminPassword = os.Getenv("RESERVAS_ADMIN_PASSWORD")
	if cfg.AdminEmail != "" && cfg.AdminPassword == "" {
		missing = append(missing, "RESERVAS_ADMIN_PASSWORD")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseDuration(key string, dst *time.Duration, invalid *[]string) {
	value := env(key)
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		*invalid = append(*invalid, key)
		return
	}
	*dst = d
}
