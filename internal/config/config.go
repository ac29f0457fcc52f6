package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"cybergrid/internal/adapters/recaptcha"
)

// ErrInvalid wraps validation failures; Load's other errors are warnings.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Env                  string        `validate:"required,oneof=development production test"`
	ListenAddr           string        `validate:"required"`
	DatabaseURL          string        `validate:"omitempty,url"`
	RecaptchaSiteKey     string        `validate:"required"`
	RecaptchaSecret      string
	ChallengeMaxAttempts int           `validate:"min=1"`
	ChallengeRetryDelay  time.Duration `validate:"gt=0"`
	AnalysisDelay        time.Duration `validate:"gte=0"`
	CheckWorkers         int           `validate:"min=1"`
	SessionTTL           time.Duration `validate:"gt=0"`
	LogLevel             string        `validate:"required,oneof=trace debug info warn warning error"`
}

// Development reports whether debug-only capabilities such as the
// verification bypass may be exposed.
func (c Config) Development() bool { return c.Env == "development" }

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads a .env file if present, then the environment. A bad .env file
// or an unparsable number or duration is reported as a non-fatal warning
// alongside a usable config, the value falling back to its default; invalid
// values are fatal. APP_ENV defaults to production; development must be set
// explicitly.
func Load() (Config, error) {
	var warns []error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		warns = append(warns, fmt.Errorf("load .env: %w", err))
	}

	cfg := Config{
		Env:                  getenv("APP_ENV", "production"),
		ListenAddr:           getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RecaptchaSiteKey:     getenv("RECAPTCHA_SITE_KEY", recaptcha.TestSiteKey),
		RecaptchaSecret:      os.Getenv("RECAPTCHA_SECRET"),
		ChallengeMaxAttempts: getenvInt("CHALLENGE_MAX_ATTEMPTS", 3, &warns),
		ChallengeRetryDelay:  getenvDuration("CHALLENGE_RETRY_DELAY", 2*time.Second, &warns),
		AnalysisDelay:        getenvDuration("ANALYSIS_DELAY", 1500*time.Millisecond, &warns),
		CheckWorkers:         getenvInt("CHECK_WORKERS", 4, &warns),
		SessionTTL:           getenvDuration("SESSION_TTL", 30*time.Minute, &warns),
		LogLevel:             getenv("LOG_LEVEL", "info"),
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, errors.Join(warns...)
}

func getenvInt(key string, def int, warns *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		*warns = append(*warns, fmt.Errorf("%s=%q is not an integer, using %d", key, v, def))
		return def
	}
	return out
}

func getenvDuration(key string, def time.Duration, warns *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		*warns = append(*warns, fmt.Errorf("%s=%q is not a duration, using %s", key, v, def))
		return def
	}
	return out
}
