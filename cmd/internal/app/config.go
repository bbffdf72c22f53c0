package app

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"warden/cmd/security/password"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	Env string

	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Empty means the in-memory store.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	DBSchema    string
	DBMigrate   bool

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	Password password.Config

	TokenSecret string
	TokenIssuer string
	VerifyTTL   time.Duration
	LoginTTL    time.Duration
	ResetTTL    time.Duration

	NotifyDriver  string // log | smtp | kafka
	VerifyBaseURL string
	ResetBaseURL  string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTimeout  time.Duration

	KafkaBrokers      []string
	KafkaTopic        string
	KafkaUsername     string
	KafkaPassword     string
	KafkaTLS          bool
	KafkaWriteTimeout time.Duration
}

// LoadConfig loads Config from environment variables with defaults.
// Outside prod, variables from a .env file in the working directory are
// applied first; the real environment always wins.
func LoadConfig() (Config, error) {
	env := strings.ToLower(EnvString("WARDEN_ENV", "dev"))
	if env != "prod" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	pw, err := loadPasswordConfig()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Env: env,

		HTTPAddr:  EnvString("WARDEN_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("WARDEN_LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(EnvString("WARDEN_LOG_FORMAT", "json")),

		ReadHeaderTimeout: EnvDuration("WARDEN_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("WARDEN_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("WARDEN_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("WARDEN_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("WARDEN_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("WARDEN_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("WARDEN_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("WARDEN_DB_MIN_CONNS", 0),
		DBSchema:    EnvString("WARDEN_DB_SCHEMA", "warden"),
		DBMigrate:   EnvBool("WARDEN_DB_MIGRATE", true),

		ReadinessRequireDB: EnvBool("WARDEN_READINESS_REQUIRE_DB", false),

		Password: pw,

		TokenSecret: EnvString("WARDEN_TOKEN_SECRET", ""),
		TokenIssuer: EnvString("WARDEN_TOKEN_ISSUER", "warden"),
		VerifyTTL:   EnvDuration("WARDEN_TOKEN_VERIFY_TTL", time.Hour),
		LoginTTL:    EnvDuration("WARDEN_TOKEN_LOGIN_TTL", time.Hour),
		ResetTTL:    EnvDuration("WARDEN_TOKEN_RESET_TTL", 15*time.Minute),

		NotifyDriver:  strings.ToLower(EnvString("WARDEN_NOTIFY_DRIVER", "log")),
		VerifyBaseURL: EnvString("WARDEN_VERIFY_BASE_URL", "http://localhost:8080/auth/verify/{token}"),
		ResetBaseURL:  EnvString("WARDEN_RESET_BASE_URL", ""),

		SMTPHost:     EnvString("WARDEN_SMTP_HOST", ""),
		SMTPPort:     EnvInt("WARDEN_SMTP_PORT", 587),
		SMTPUsername: EnvString("WARDEN_SMTP_USERNAME", ""),
		SMTPPassword: EnvString("WARDEN_SMTP_PASSWORD", ""),
		SMTPFrom:     EnvString("WARDEN_SMTP_FROM", ""),
		SMTPFromName: EnvString("WARDEN_SMTP_FROM_NAME", "Warden"),
		SMTPTimeout:  EnvDuration("WARDEN_SMTP_TIMEOUT", 15*time.Second),

		KafkaBrokers:      EnvList("WARDEN_KAFKA_BROKERS"),
		KafkaTopic:        EnvString("WARDEN_KAFKA_TOPIC", "warden.notifications"),
		KafkaUsername:     EnvString("WARDEN_KAFKA_USERNAME", ""),
		KafkaPassword:     EnvString("WARDEN_KAFKA_PASSWORD", ""),
		KafkaTLS:          EnvBool("WARDEN_KAFKA_TLS", false),
		KafkaWriteTimeout: EnvDuration("WARDEN_KAFKA_WRITE_TIMEOUT", 10*time.Second),
	}, nil
}

// loadPasswordConfig applies WARDEN_PASSWORD_* and WARDEN_ARGON2_* over
// password.DefaultConfig and rejects out-of-range values.
func loadPasswordConfig() (password.Config, error) {
	pw := password.DefaultConfig()

	pol := &pw.Policy
	pol.MinLength = EnvInt("WARDEN_PASSWORD_MIN_LEN", pol.MinLength)
	pol.MaxLength = EnvInt("WARDEN_PASSWORD_MAX_LEN", pol.MaxLength)
	pol.RejectVeryWeak = EnvBool("WARDEN_PASSWORD_REJECT_VERY_WEAK", pol.RejectVeryWeak)

	p := &pw.Params
	p.MemoryKiB = EnvUint32("WARDEN_ARGON2_MEMORY_KIB", p.MemoryKiB)
	p.Iterations = EnvUint32("WARDEN_ARGON2_ITERATIONS", p.Iterations)
	p.Parallelism = uint8(min(EnvUint32("WARDEN_ARGON2_PARALLELISM", uint32(p.Parallelism)), math.MaxUint8)) // #nosec G115 -- clamped.
	p.SaltLength = EnvUint32("WARDEN_ARGON2_SALT_LEN", p.SaltLength)
	p.KeyLength = EnvUint32("WARDEN_ARGON2_KEY_LEN", p.KeyLength)

	if err := pw.Check(); err != nil {
		return password.Config{}, fmt.Errorf("config: %w", err)
	}
	return pw, nil
}
