package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	PrefsCacheTTL time.Duration

	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppAPIVersion    string
	WhatsAppBaseURL       string
	WhatsAppVerifyToken   string
	WhatsAppAppSecret     string

	SMSProvider              string
	SMSFromNumber            string
	TelnyxAPIKey             string
	TelnyxMessagingProfileID string
	TwilioAccountSID         string
	TwilioAuthToken          string
	TwilioFromNumber         string

	CancellationTokenTTL   time.Duration
	LateCancellationWindow time.Duration
	InboundMatchWindow     time.Duration
	BusinessTimezone       string
	UnmatchedOwnerID       string
	ReminderInterval       time.Duration

	CalendarSyncURL     string
	CalendarSyncToken   string
	CalendarQueueURL    string
	CalendarSyncTimeout time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ReminderRunsTable   string
	ArchiveBucket       string
	ArchivePrefix       string

	SendGridAPIKey      string
	SendGridFromEmail   string
	SESFromEmail        string
	SESConfigurationSet string
	EmailFromName       string

	AdminJWTSecret       string
	ReminderTriggerToken string
	CORSAllowedOrigins   []string
	RateLimitRPS         float64
	RateLimitBurst       int
	RateLimitWindow      time.Duration
	RateLimitRedis       bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		PrefsCacheTTL: getEnvAsDuration("PREFS_CACHE_TTL", 5*time.Minute),

		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppAPIVersion:    getEnv("WHATSAPP_API_VERSION", "v19.0"),
		WhatsAppBaseURL:       getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),

		SMSProvider:              strings.ToLower(getEnv("SMS_PROVIDER", "auto")),
		SMSFromNumber:            getEnv("SMS_FROM_NUMBER", ""),
		TelnyxAPIKey:             getEnv("TELNYX_API_KEY", ""),
		TelnyxMessagingProfileID: getEnv("TELNYX_MESSAGING_PROFILE_ID", ""),
		TwilioAccountSID:         getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:          getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:         getEnv("TWILIO_FROM_NUMBER", ""),

		CancellationTokenTTL:   getEnvAsDuration("CANCELLATION_TOKEN_TTL", 24*time.Hour),
		LateCancellationWindow: getEnvAsDuration("LATE_CANCELLATION_WINDOW", 6*time.Hour),
		InboundMatchWindow:     getEnvAsDuration("INBOUND_MATCH_WINDOW", 72*time.Hour),
		BusinessTimezone:       getEnv("BUSINESS_TIMEZONE", "Asia/Jerusalem"),
		UnmatchedOwnerID:       getEnv("UNMATCHED_OWNER_ID", "00000000-0000-0000-0000-000000000000"),
		ReminderInterval:       getEnvAsDuration("REMINDER_INTERVAL", 0),

		CalendarSyncURL:     getEnv("CALENDAR_SYNC_URL", ""),
		CalendarSyncToken:   getEnv("CALENDAR_SYNC_TOKEN", ""),
		CalendarQueueURL:    getEnv("CALENDAR_QUEUE_URL", ""),
		CalendarSyncTimeout: getEnvAsDuration("CALENDAR_SYNC_TIMEOUT", 15*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ReminderRunsTable:   getEnv("REMINDER_RUNS_TABLE", ""),
		ArchiveBucket:       getEnv("ARCHIVE_BUCKET", ""),
		ArchivePrefix:       getEnv("ARCHIVE_PREFIX", "notification-logs"),

		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:   getEnv("SENDGRID_FROM_EMAIL", ""),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),
		SESConfigurationSet: getEnv("SES_CONFIGURATION_SET", ""),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "SalonBook"),

		AdminJWTSecret:       getEnv("ADMIN_JWT_SECRET", ""),
		ReminderTriggerToken: getEnv("REMINDER_TRIGGER_TOKEN", ""),
		CORSAllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:         getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:       getEnvAsInt("RATE_LIMIT_BURST", 20),
		RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitRedis:       getEnvAsBool("RATE_LIMIT_REDIS", false),
	}
}

// WhatsAppConfigured reports whether outbound WhatsApp credentials are present.
func (c *Config) WhatsAppConfigured() bool {
	return c.WhatsAppAccessToken != "" && c.WhatsAppPhoneNumberID != ""
}

// Location resolves BusinessTimezone, falling back to UTC when the zone is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
