package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	JWTSecret        string
	TokenTTL         time.Duration
	UploadDir        string
	UploadBaseURL    string
	GeoIPDBPath      string
	CozeBaseURL      string
	CozeToken        string
	CozeAnalysisBot  string
	CozeStyleBots    map[string]string
	TripoBaseURL     string
	TripoAPIKey      string
	SoraBaseURL      string
	SoraAPIKey       string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
}

// styleBotEnv maps style identifiers to the environment variable carrying the
// matching Coze bot id.
var styleBotEnv = map[string]string{
	"cute":           "COZE_BOT_CUTE",
	"steampunk":      "COZE_BOT_STEAMPUNK",
	"japanese_comic": "COZE_BOT_JAPANESE_COMIC",
	"american_comic": "COZE_BOT_AMERICAN_COMIC",
	"profession":     "COZE_BOT_PROFESSION",
	"cyberpunk":      "COZE_BOT_CYBERPUNK",
	"gothic":         "COZE_BOT_GOTHIC",
	"realistic":      "COZE_BOT_REALISTIC",
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		TokenTTL:         time.Minute * time.Duration(getEnvInt("TOKEN_TTL_MINUTES", 24*60)),
		UploadDir:        getEnv("UPLOAD_DIR", "./uploads"),
		UploadBaseURL:    getEnv("UPLOAD_BASE_URL", "/uploads"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		CozeBaseURL:      getEnv("COZE_BASE_URL", "https://api.coze.cn"),
		CozeToken:        os.Getenv("COZE_AUTHORIZATION"),
		CozeAnalysisBot:  os.Getenv("COZE_BOT_PICTURE_ANALYSIS"),
		// The tripo client appends /v2/openapi itself, so the base stays bare.
		TripoBaseURL:     getEnv("TRIPO_BASE_URL", "https://api.tripo3d.ai"),
		TripoAPIKey:      os.Getenv("TRIPO_API_KEY"),
		SoraBaseURL:      os.Getenv("SORA_BASE_URL"),
		SoraAPIKey:       os.Getenv("SORA_API_KEY"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	cfg.CozeStyleBots = make(map[string]string, len(styleBotEnv))
	for style, key := range styleBotEnv {
		if v := os.Getenv(key); v != "" {
			cfg.CozeStyleBots[style] = v
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
