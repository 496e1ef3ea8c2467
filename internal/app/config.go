package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr        string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	LogLevel        string
	LogFormat       string
	SpoolDir        string

	RoomCodeLength int

	// Liveness policy. A device idle past DisconnectAfter is marked
	// disconnected; past EvictAfter it is removed from its room.
	SweepInterval   time.Duration
	DisconnectAfter time.Duration
	EvictAfter      time.Duration

	// Transfer policy.
	ExpireInterval    time.Duration
	PendingTTL        time.Duration
	TerminalRetention time.Duration

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

func LoadConfig() Config {
	disconnectAfter := getEnvDuration("DEVICE_DISCONNECT_AFTER", 45*time.Second)
	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DB", "roomdrop"),
		MongoCollection: getEnv("MONGO_COLLECTION", "transfer_history"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
		SpoolDir:        getEnv("SPOOL_DIR", "spool"),

		RoomCodeLength: int(getEnvInt64("ROOM_CODE_LENGTH", 6)),

		SweepInterval:   getEnvDuration("LIVENESS_SWEEP_INTERVAL", 10*time.Second),
		DisconnectAfter: disconnectAfter,
		EvictAfter:      getEnvDuration("DEVICE_EVICT_AFTER", 3*disconnectAfter),

		ExpireInterval:    getEnvDuration("TRANSFER_EXPIRE_INTERVAL", 30*time.Second),
		PendingTTL:        getEnvDuration("TRANSFER_PENDING_TTL", 5*time.Minute),
		TerminalRetention: getEnvDuration("TRANSFER_RETENTION", time.Hour),

		CORSAllowedOrigins: splitCommaSeparated(getEnv("CORS_ALLOWED_ORIGINS", "")),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 100),
		RateLimitBurst:     int(getEnvInt64("RATE_LIMIT_BURST", 200)),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func splitCommaSeparated(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
