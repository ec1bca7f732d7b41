package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret  string
	CronSecret string

	// Business calendar. All day-offset math runs in this zone.
	BusinessTZ *time.Location

	// Reminder sending kill switch. When false the engine still counts
	// attempts and escalates; it just never talks to SMTP.
	NotifsEnabled bool

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	FrontendURL string
	AppName     string

	ERPBaseURL string
	ERPToken   string

	// Per-pass worker bound for the phase runner.
	PassWorkers int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	cfg.JWTSecret = mustGetenv("JWT_SECRET")
	cfg.CronSecret = mustGetenv("CRON_SECRET")

	tzName := getenv("BUSINESS_TZ", "America/Denver")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, err
	}
	cfg.BusinessTZ = loc

	cfg.NotifsEnabled = getenv("NOTIFS_ENABLED", "false") == "true"

	cfg.SMTPHost = getenv("SMTP_HOST", "")
	cfg.SMTPPort = getenvInt("SMTP_PORT", 587)
	cfg.SMTPUser = getenv("AUTO_EMAIL", "")
	cfg.SMTPPassword = getenv("AUTO_EMAIL_PASSWORD", "")
	cfg.SMTPFrom = getenv("SMTP_FROM", cfg.SMTPUser)

	cfg.FrontendURL = strings.TrimRight(getenv("FRONTEND_URL", "http://localhost:3000"), "/")
	cfg.AppName = getenv("APP_NAME", "MLD")

	cfg.ERPBaseURL = strings.TrimRight(getenv("ERP_BASE_URL", ""), "/")
	cfg.ERPToken = getenv("ERP_TOKEN", "")

	cfg.PassWorkers = getenvInt("PASS_WORKERS", 8)
	if cfg.PassWorkers < 1 {
		cfg.PassWorkers = 1
	}

	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}
