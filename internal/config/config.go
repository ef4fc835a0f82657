package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	// Magic links
	AppURL          string
	MagicLinkExpiry time.Duration

	// IGDB (Twitch client credentials)
	IGDBClientID     string
	IGDBClientSecret string
	IGDBTokenURL     string
	IGDBAPIURL       string
	IGDBTimeout      time.Duration

	// Object storage (S3 compatible)
	S3Endpoint       string
	S3PublicEndpoint string
	S3Region         string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	S3DisableSSL     bool
	MaxUploadBytes   int

	// Optional fan-out infrastructure
	RedisAddr     string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaClientID string

	// Admin
	AdminEmails  string
	AdminUserIDs string
	AdminToken   string

	// Server
	Port        string
	CORSOrigins string
}

// LoadDotEnv reads .env files in priority order. Values already present in the
// environment win, and missing files are ignored.
func LoadDotEnv() {
	env := getEnv("APP_ENV", "development")

	_ = godotenv.Load(".env." + env + ".local")
	if env != "test" {
		_ = godotenv.Load(".env.local")
	}
	_ = godotenv.Load(".env." + env)
	_ = godotenv.Load(".env")
}

func Load() *Config {
	return &Config{
		Env: getEnv("APP_ENV", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "gamebox"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m"), 15*time.Minute),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "720h"), 720*time.Hour),

		AppURL:          strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
		MagicLinkExpiry: parseDuration(getEnv("MAGIC_LINK_EXPIRY", "15m"), 15*time.Minute),

		IGDBClientID:     getEnv("IGDB_CLIENT_ID", ""),
		IGDBClientSecret: getEnv("IGDB_CLIENT_SECRET", ""),
		IGDBTokenURL:     getEnv("IGDB_TOKEN_URL", "https://id.twitch.tv/oauth2/token"),
		IGDBAPIURL:       strings.TrimRight(getEnv("IGDB_API_URL", "https://api.igdb.com/v4"), "/"),
		IGDBTimeout:      parseDuration(getEnv("IGDB_TIMEOUT", "10s"), 10*time.Second),

		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3PublicEndpoint: strings.TrimRight(getEnv("S3_PUBLIC_ENDPOINT", ""), "/"),
		S3Region:         getEnv("S3_REGION", "us-east-1"),
		S3Bucket:         getEnv("S3_BUCKET", "gamebox-media"),
		S3AccessKey:      getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:      getEnv("S3_SECRET_KEY", ""),
		S3DisableSSL:     getEnv("S3_DISABLE_SSL", "false") == "true",
		MaxUploadBytes:   parseInt(getEnv("MAX_UPLOAD_BYTES", "26214400"), 25*1024*1024),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		KafkaBrokers:  parseCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "gamebox.activity"),
		KafkaClientID: getEnv("KAFKA_CLIENT_ID", "gamebox"),

		AdminEmails:  getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// IGDBEnabled reports whether game metadata lookups can reach IGDB.
func (c *Config) IGDBEnabled() bool {
	return c.IGDBClientID != "" && c.IGDBClientSecret != ""
}

func (c *Config) StorageEnabled() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
