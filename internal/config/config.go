package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var AppEnv Config

type Config struct {
	Env              string
	Port             string
	MongoURI         string
	DBName           string
	CollectionPrefix string
	JWTSecret        string
	AccessTokenTTL   time.Duration

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	RazorpayTimeout       time.Duration

	ShiprocketEmail          string
	ShiprocketPassword       string
	ShiprocketBaseURL        string
	ShiprocketPickupLocation string
	ShiprocketTimeout        time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	AdminEmail   string

	OutboxSchedule    string
	OutboxMaxAttempts int
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// fileDefaults mirrors the optional YAML file pointed to by CONFIG_FILE.
// Environment variables always win over it.
type fileDefaults map[string]string

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}

	defaults := fileDefaults{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			log.Println("config file not loaded:", err)
		} else {
			defaults = loaded
		}
	}

	AppEnv = build(defaults)
}

func build(d fileDefaults) Config {
	return Config{
		Env:              d.get("APP_ENV", "development"),
		Port:             d.get("PORT", "8080"),
		MongoURI:         d.get("MONGO_URI", ""),
		DBName:           d.get("DB_NAME", "gamya"),
		CollectionPrefix: d.get("COLLECTION_PREFIX", ""),
		JWTSecret:        d.get("JWT_SECRET", ""),
		AccessTokenTTL:   d.getDuration("ACCESS_TOKEN_TTL", 7*24*60, time.Minute),

		RazorpayKeyID:         d.get("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:     d.get("RAZORPAY_KEY_SECRET", ""),
		RazorpayWebhookSecret: d.get("RAZORPAY_WEBHOOK_SECRET", ""),
		RazorpayTimeout:       d.getDuration("RAZORPAY_TIMEOUT", 30, time.Second),

		ShiprocketEmail:          d.get("SHIPROCKET_EMAIL", ""),
		ShiprocketPassword:       d.get("SHIPROCKET_PASSWORD", ""),
		ShiprocketBaseURL:        d.get("SHIPROCKET_BASE_URL", "https://apiv2.shiprocket.in/v1/external"),
		ShiprocketPickupLocation: d.get("SHIPROCKET_PICKUP_LOCATION", "Primary"),
		ShiprocketTimeout:        d.getDuration("SHIPROCKET_TIMEOUT", 30, time.Second),

		SMTPHost:     d.get("SMTP_HOST", ""),
		SMTPPort:     d.getInt("SMTP_PORT", 587),
		SMTPUser:     d.get("SMTP_USER", ""),
		SMTPPassword: d.get("SMTP_PASSWORD", ""),
		MailFrom:     d.get("MAIL_FROM", ""),
		AdminEmail:   d.get("ADMIN_EMAIL", ""),

		OutboxSchedule:    d.get("OUTBOX_SCHEDULE", "@every 1m"),
		OutboxMaxAttempts: d.getInt("OUTBOX_MAX_ATTEMPTS", 5),
	}
}

func loadFile(path string) (fileDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var loaded fileDefaults
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing YAML config: %w", err)
	}
	return loaded, nil
}

func (d fileDefaults) get(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	if value := strings.TrimSpace(d[key]); value != "" {
		return value
	}
	return defaultValue
}

func (d fileDefaults) getInt(key string, defaultValue int) int {
	if parsed, err := strconv.Atoi(d.get(key, "")); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func (d fileDefaults) getDuration(key string, defaultValue int, unit time.Duration) time.Duration {
	return time.Duration(d.getInt(key, defaultValue)) * unit
}
