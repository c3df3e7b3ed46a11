package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	MongoURI string
	DBName   string
	Port     string

	GeminiAPIKey        string
	GeminiAnalysisModel string
	GeminiImageModel    string

	SendGridAPIKey string
	EmailFromName  string
	EmailFrom      string
	SupportEmail   string

	CheckoutAPIURL    string
	CheckoutAPIKey    string
	CheckoutProductID string
	PublicBaseURL     string

	JWTSecret   string
	AdminAPIKey string

	AWSRegion     string
	AWSBucketName string

	AllowedOrigins []string

	StorageQuotaBytes int
	HistoryMaxItems   int
	SavedMaxItems     int
	ImageMaxSide      int
	ThumbnailMaxSide  int
	SessionTTL        time.Duration
)

// LoadConfig loads environment variables from .env file
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values or system environment variables")
	}

	MongoURI = getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017/")
	DBName = getEnvOrDefault("DB_NAME", "hair_director")
	Port = getEnvOrDefault("PORT", "8080")

	GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	GeminiAnalysisModel = getEnvOrDefault("GEMINI_ANALYSIS_MODEL", "gemini-2.5-flash")
	GeminiImageModel = getEnvOrDefault("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image")

	SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
	EmailFromName = getEnvOrDefault("EMAIL_FROM_NAME", "Hair Director")
	EmailFrom = getEnvOrDefault("EMAIL_FROM", "no-reply@hairdirector.app")
	SupportEmail = getEnvOrDefault("SUPPORT_EMAIL", "support@hairdirector.app")

	CheckoutAPIURL = getEnvOrDefault("CHECKOUT_API_URL", "https://api.polar.sh/v1")
	CheckoutAPIKey = os.Getenv("CHECKOUT_API_KEY")
	CheckoutProductID = os.Getenv("CHECKOUT_PRODUCT_ID")
	PublicBaseURL = strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:5173"), "/")

	JWTSecret = os.Getenv("JWT_SECRET")
	AdminAPIKey = os.Getenv("ADMIN_API_KEY")

	AWSRegion = getEnvOrDefault("AWS_REGION", "ap-south-1")
	AWSBucketName = os.Getenv("AWS_BUCKET_NAME")

	AllowedOrigins = splitList(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:5173"))

	StorageQuotaBytes = getEnvIntOrDefault("STORAGE_QUOTA_BYTES", 5*1024*1024)
	HistoryMaxItems = getEnvIntOrDefault("HISTORY_MAX_ITEMS", 10)
	SavedMaxItems = getEnvIntOrDefault("SAVED_MAX_ITEMS", 50)
	ImageMaxSide = getEnvIntOrDefault("IMAGE_MAX_SIDE", 1024)
	ThumbnailMaxSide = getEnvIntOrDefault("THUMBNAIL_MAX_SIDE", 256)
	SessionTTL = getEnvDurationOrDefault("SESSION_TTL", 24*time.Hour)
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", key, valStr, defaultValue, err)
		return defaultValue
	}
	return val
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := time.ParseDuration(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %s. Error: %v", key, valStr, defaultValue, err)
		return defaultValue
	}
	return val
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
