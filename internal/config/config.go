package config

import (
	"crypto/rand"
	"encoding/base64"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinJWTSecretLength is the shortest signing secret accepted in production.
const MinJWTSecretLength = 32

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	LogLevel    string

	JWTSecret string
	JWTTTL    time.Duration

	// S3-compatible object storage holding case documents
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	SignedURLTTL      time.Duration

	CaseNumberRetries int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	environment := getEnv("APP_ENV", "development")
	secret := getEnv("JWT_SECRET", "")
	if environment == "production" && len(secret) < MinJWTSecretLength {
		log.Fatalf("[CRITICAL] JWT_SECRET must be at least %d characters in production", MinJWTSecretLength)
	}
	if secret == "" {
		secret = generateSecret()
		log.Println("[INFO] Generated temporary JWT secret for development. Set JWT_SECRET to keep tokens valid across restarts.")
	}

	return &Config{
		Port:              getEnv("PORT", "3000"),
		Environment:       environment,
		DatabaseURL:       getEnv("DATABASE_URL", "sqlite:advocate.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		JWTSecret:         secret,
		JWTTTL:            getEnvDuration("JWT_TTL", 7*24*time.Hour),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", "auto"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		SignedURLTTL:      getEnvDuration("SIGNED_URL_TTL", 60*time.Second),
		CaseNumberRetries: getEnvInt("CASE_NUMBER_RETRIES", 5),
	}
}

// IsDevelopment reports anything that is not production.
func (c *Config) IsDevelopment() bool {
	return c.Environment != "production"
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func generateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Printf("[WARNING] Failed to generate secret: %v", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}
