package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	LogMode         string
	CORSAllowOrigin []string
	DatabaseURL     string

	ObjectStoreType      string
	LocalStoreDir        string
	LocalStorePublicRead bool
	PublicBaseURL        string
	AWSRegion            string
	S3Bucket             string
	S3Prefix             string
	S3PublicBaseURL      string
	S3Endpoint           string
	SSEKMSKeyID          string
	GCSBucket            string
	GCSPublicBaseURL     string
	SignedURLTTL         time.Duration

	JWTSecret          string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string
	LoginURL           string

	GenerationServiceURL     string
	GenerationHTTPTimeout    time.Duration
	GenerationDisplayTimeout time.Duration
	GenerationSQSQueueURL    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		LogMode:         getEnv("LOG_MODE", env),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,

		ObjectStoreType:      normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:        getEnv("LOCAL_STORE_DIR", "./data"),
		LocalStorePublicRead: getBool("LOCAL_STORE_PUBLIC_READ", env != "production"),
		PublicBaseURL:        strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		AWSRegion:            getEnv("AWS_REGION", ""),
		S3Bucket:             getEnv("S3_BUCKET", ""),
		S3Prefix:             getEnv("S3_PREFIX", ""),
		S3PublicBaseURL:      getEnv("S3_PUBLIC_BASE_URL", ""),
		S3Endpoint:           getEnv("S3_ENDPOINT", ""),
		SSEKMSKeyID:          getEnv("SSE_KMS_KEY_ID", ""),
		GCSBucket:            getEnv("GCS_BUCKET", ""),
		GCSPublicBaseURL:     getEnv("GCS_PUBLIC_BASE_URL", ""),
		SignedURLTTL:         getDuration("SIGNED_URL_TTL", 15*time.Minute),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      getEnv("UI_REDIRECT_URL", ""),
		LoginURL:           getEnv("LOGIN_URL", "/api/v1/auth/google/start"),

		GenerationServiceURL:     strings.TrimRight(getEnv("GENERATION_SERVICE_URL", ""), "/"),
		GenerationHTTPTimeout:    getDuration("GENERATION_HTTP_TIMEOUT", 3*time.Minute),
		GenerationDisplayTimeout: getDuration("GENERATION_DISPLAY_TIMEOUT", 90*time.Second),
		GenerationSQSQueueURL:    getEnv("GENERATION_SQS_QUEUE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config %s invalid int: %v", key, err)
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("config %s invalid duration %q", key, raw)
		return def
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "gcs", "firebase":
		return "gcs"
	default:
		return "local"
	}
}
