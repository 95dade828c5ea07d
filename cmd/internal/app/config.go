package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" or "pretty"

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Session token signing secret (HMAC-SHA256, min 32 bytes) and
	// cookie lifetime.
	TokenSecret  string
	TokenTTL     time.Duration
	CookieSecure bool

	UploadDir string

	ChatQueueSize  int
	ChatKeepalive  time.Duration
	AllowedOrigins []string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("GATHER_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("GATHER_LOG_LEVEL", "info"),
		LogFormat: EnvString("GATHER_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("GATHER_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("GATHER_HTTP_READ_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("GATHER_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("GATHER_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("GATHER_DATABASE_URL", ""),
		DBSchema:    EnvString("GATHER_DB_SCHEMA", "gather"),
		DBMaxConns:  EnvInt32("GATHER_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("GATHER_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("GATHER_READINESS_REQUIRE_DB", false),

		TokenSecret:  EnvString("GATHER_TOKEN_SECRET", ""),
		TokenTTL:     EnvDuration("GATHER_TOKEN_TTL", 7*24*time.Hour),
		CookieSecure: EnvBool("GATHER_COOKIE_SECURE", false),

		UploadDir: EnvString("GATHER_UPLOAD_DIR", "uploads"),

		ChatQueueSize:  EnvInt("GATHER_CHAT_QUEUE", 64),
		ChatKeepalive:  EnvDuration("GATHER_CHAT_KEEPALIVE", 25*time.Second),
		AllowedOrigins: EnvCSV("GATHER_ALLOWED_ORIGINS", "http://localhost,http://127.0.0.1"),
	}
}
