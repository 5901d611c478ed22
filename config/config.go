package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds everything the relay reads from the environment. It is
// built once at startup and passed by reference; handlers never touch
// the environment themselves.
type Config struct {
	AppEnv    string // "local" or "azure"
	Port      string
	UploadDir string
	PublicDir string

	FFmpegPath     string
	TranscodeGrace time.Duration

	TranscribeURL      string
	TranscribeModel    string
	TranscribeLanguage string
	OpenAIAPIKey       string

	NotifyEnabled bool

	TenantID     string
	ClientID     string
	ClientSecret string
	Sender       string

	SMTPHost   string
	SMTPPort   int
	SMTPSecure bool
	SMTPUser   string
	SMTPPass   string
	Recipient  string

	RequiredGroupID string
	DevUserName     string
	DevUserEmail    string
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:    getenv("APP_ENV", "local"),
		Port:      getenv("PORT", "3000"),
		UploadDir: getenv("UPLOAD_DIR", "uploads"),
		PublicDir: getenv("PUBLIC_DIR", "public"),

		FFmpegPath: getenv("FFMPEG_PATH", "ffmpeg"),

		TranscribeURL:      getenv("TRANSCRIBE_URL", "https://api.openai.com/v1/audio/transcriptions"),
		TranscribeModel:    getenv("TRANSCRIBE_MODEL", "whisper-1"),
		TranscribeLanguage: getenv("TRANSCRIBE_LANGUAGE", "it"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),

		NotifyEnabled: getenv("NOTIFY_ENABLED", "true") == "true",

		TenantID:     os.Getenv("M365_TENANT_ID"),
		ClientID:     os.Getenv("M365_CLIENT_ID"),
		ClientSecret: os.Getenv("M365_CLIENT_SECRET"),
		Sender:       os.Getenv("M365_SENDER"),

		SMTPHost:   os.Getenv("SMTP_HOST"),
		SMTPSecure: os.Getenv("SMTP_SECURE") == "true",
		SMTPUser:   os.Getenv("SMTP_USER"),
		SMTPPass:   os.Getenv("SMTP_PASS"),
		Recipient:  os.Getenv("SMTP_TO"),

		RequiredGroupID: os.Getenv("REQUIRED_GROUP_ID"),
		DevUserName:     getenv("DEV_USER_NAME", "Dev User"),
		DevUserEmail:    getenv("DEV_USER_EMAIL", "dev@example.com"),
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable is not set")
	}
	if cfg.AppEnv == "azure" && cfg.RequiredGroupID == "" {
		return nil, errors.New("REQUIRED_GROUP_ID is required when APP_ENV=azure")
	}
	if cfg.NotifyEnabled && cfg.Recipient == "" {
		return nil, errors.New("SMTP_TO is required when notification is enabled")
	}

	graceMS := 300
	if v := os.Getenv("TRANSCODE_GRACE_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, errors.New("TRANSCODE_GRACE_MS must be a non-negative integer")
		}
		graceMS = n
	}
	cfg.TranscodeGrace = time.Duration(graceMS) * time.Millisecond

	cfg.SMTPPort = 587
	if v := os.Getenv("SMTP_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, errors.New("SMTP_PORT must be a positive integer")
		}
		cfg.SMTPPort = n
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
