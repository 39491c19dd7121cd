package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultChannelID = "SettlementApp"
const defaultChannelKey = "SettlementKey001"
const defaultRequestQueue = "transaction_accept"
const defaultVerdictQueue = "transaction_result"

type Config struct {
	// DatabaseDSN empty means run on the in-memory store.
	DatabaseDSN   string
	MigrationsDir string
	// AMQPURL empty means run on the in-process broker.
	AMQPURL      string
	RequestQueue string
	VerdictQueue string
	HTTPAddr     string
	MetricsAddr  string
	ChannelID    string
	ChannelKey   string
	// Dispatch retry policy for publishing verification requests.
	DispatchMaxAttempts int
	DispatchBackoffBase time.Duration
}

func Load() (Config, error) {
	// .env is optional; production relies on real environment variables.
	_ = godotenv.Load()

	cfg := Config{
		DatabaseDSN:         strings.TrimSpace(os.Getenv("DATABASE_DSN")),
		MigrationsDir:       getEnv("MIGRATIONS_DIR", filepath.Join("migrations")),
		AMQPURL:             strings.TrimSpace(os.Getenv("AMQP_URL")),
		RequestQueue:        getEnv("REQUEST_QUEUE", defaultRequestQueue),
		VerdictQueue:        getEnv("VERDICT_QUEUE", defaultVerdictQueue),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:         getEnv("METRICS_ADDR", ":9090"),
		ChannelID:           getEnv("CHANNEL_ID", defaultChannelID),
		ChannelKey:          getEnv("CHANNEL_KEY", defaultChannelKey),
		DispatchMaxAttempts: getEnvInt("DISPATCH_MAX_ATTEMPTS", 5),
		DispatchBackoffBase: getEnvDuration("DISPATCH_BACKOFF_BASE", 200*time.Millisecond),
	}

	if cfg.DatabaseDSN != "" {
		cfg.DatabaseDSN = normalizeConnectionString(cfg.DatabaseDSN)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// normalizeConnectionString accepts both libpq keyword DSNs and the
// semicolon-separated form used by operations tooling, producing a
// libpq keyword string either way.
func normalizeConnectionString(raw string) string {
	if !strings.Contains(raw, ";") {
		return raw
	}

	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	hasSSLMode := false

	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}

		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])

		switch key {
		case "host":
			out = append(out, "host="+val)
		case "port":
			out = append(out, "port="+val)
		case "database":
			out = append(out, "dbname="+val)
		case "username":
			out = append(out, "user="+val)
		case "password":
			out = append(out, "password="+val)
		case "timeout", "connect timeout":
			out = append(out, "connect_timeout="+val)
		case "sslmode":
			hasSSLMode = true
			out = append(out, "sslmode="+val)
		default:
			out = append(out, key+"="+val)
		}
	}

	if len(out) == 0 {
		return raw
	}

	if !hasSSLMode {
		out = append(out, "sslmode=disable")
	}

	return strings.Join(out, " ")
}
