package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	Env            string
	URL            string
	DatabaseName   string
	BaseURL        string
	Port           string
	RequestTimeout time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	// RedisURL enables cross-instance change fan-out when set
	RedisURL string

	SensitiveZones string

	Media      MediaConfig
	Cloudinary CloudinaryConfig
	Minio      MinioConfig

	SendgridAPIKey  string
	DigestFromEmail string
	DigestSchedule  string

	// Admin is created at startup when no account with its email exists
	Admin AdminConfig
}

// AdminConfig seeds the first admin account, admins can only be created by admins
type AdminConfig struct {
	Email    string
	Password string
	Name     string
}

// MediaConfig selects the upload backend: "cloudinary" or "minio"
type MediaConfig struct {
	Provider string
	MaxBytes int64
}

// CloudinaryConfig holds the image hosting account and upload preset
type CloudinaryConfig struct {
	CloudName    string
	UploadPreset string
	APIKey       string
	APISecret    string
	Folder       string
}

// MinioConfig holds the object storage endpoint and bucket
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// New sets up all config related services
func New() *Config {
	// a missing .env is fine, the real environment wins either way
	_ = godotenv.Load()

	env := getEnv("ENV", "local")
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		Env:            env,
		URL:            os.Getenv("DB_URI"),
		DatabaseName:   getEnv("DB_NAME", "swachhsnap"),
		BaseURL:        os.Getenv("BASE_URL"),
		Port:           getEnv("PORT", "8080"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 30*time.Second),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  getDuration("TOKEN_TTL", 24*time.Hour),

		RedisURL: os.Getenv("REDIS_URL"),

		SensitiveZones: os.Getenv("SENSITIVE_ZONES"),

		Media: MediaConfig{
			Provider: strings.ToLower(getEnv("MEDIA_PROVIDER", "cloudinary")),
			MaxBytes: int64(getInt("MEDIA_MAX_BYTES", 10<<20)),
		},
		Cloudinary: CloudinaryConfig{
			CloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
			UploadPreset: os.Getenv("CLOUDINARY_UPLOAD_PRESET"),
			APIKey:       os.Getenv("CLOUDINARY_API_KEY"),
			APISecret:    os.Getenv("CLOUDINARY_API_SECRET"),
			Folder:       getEnv("CLOUDINARY_FOLDER", "swachhsnap"),
		},
		Minio: MinioConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getEnv("MINIO_BUCKET", "swachhsnap"),
			UseSSL:    getBool("MINIO_USE_SSL", true),
			PublicURL: os.Getenv("MINIO_PUBLIC_URL"),
		},

		SendgridAPIKey:  os.Getenv("SENDGRID_API_KEY"),
		DigestFromEmail: getEnv("DIGEST_FROM_EMAIL", "no-reply@swachhsnap.in"),
		DigestSchedule:  getEnv("DIGEST_SCHEDULE", "0 3 * * *"),

		Admin: AdminConfig{
			Email:    os.Getenv("ADMIN_EMAIL"),
			Password: os.Getenv("ADMIN_PASSWORD"),
			Name:     getEnv("ADMIN_NAME", "Municipal Admin"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With("error", err).Error(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"response": fmt.Sprintf("%s, %v", message, err)})
}
