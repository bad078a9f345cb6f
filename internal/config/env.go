package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// LayoutConfig holds the caller-overridable knobs of the print layout.
type LayoutConfig struct {
	ImagesPerRow int
	RowsPerPage  int
	Margin       float64
	RowSpacing   float64
}

// CommunesConfig locates the commune spreadsheet and its JSON extract.
type CommunesConfig struct {
	Spreadsheet string
	Sheet       string
	Output      string
}

// ServerConfig defines the HTTP service.
type ServerConfig struct {
	Port          string
	OutputDir     string
	StaticDir     string
	IntervalsFile string
}

// RedisConfig selects the Redis reservation store. Empty URL means file-backed.
type RedisConfig struct {
	URL       string
	KeyPrefix string
}

// S3Config enables publishing of produced artifacts.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether artifacts should be uploaded.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Layout   LayoutConfig
	Communes CommunesConfig
	Server   ServerConfig
	Redis    RedisConfig
	S3       S3Config
}

// Load reads an optional .env file and then builds the configuration from the environment.
func Load(files ...string) Config {
	// missing .env is the normal case outside local development
	_ = godotenv.Load(files...)
	return FromEnv()
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", ""),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_qrprint",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Layout = LayoutConfig{
		ImagesPerRow: parseInt(getEnv("LAYOUT_IMAGES_PER_ROW", "4"), 4),
		RowsPerPage:  parseInt(getEnv("LAYOUT_ROWS_PER_PAGE", "2"), 2),
		Margin:       parseFloat(getEnv("LAYOUT_MARGIN", "30"), 30),
		RowSpacing:   parseFloat(getEnv("LAYOUT_ROW_SPACING", "20"), 20),
	}

	cfg.Communes = CommunesConfig{
		Spreadsheet: getEnv("COMMUNES_XLSX", "../ListesCommunesProcasef_URM_BoundouOfficiel.xlsx"),
		Sheet:       getEnv("COMMUNES_SHEET", ""),
		Output:      getEnv("COMMUNES_JSON", "communes.json"),
	}

	cfg.Server = ServerConfig{
		Port:          getEnv("PORT", "3000"),
		OutputDir:     getEnv("OUTPUT_DIR", "output"),
		StaticDir:     getEnv("STATIC_DIR", "public"),
		IntervalsFile: getEnv("INTERVALS_FILE", "intervals.json"),
	}

	cfg.Redis = RedisConfig{
		URL:       getEnv("REDIS_URL", ""),
		KeyPrefix: getEnv("REDIS_KEY_PREFIX", "qrprint"),
	}

	cfg.S3 = S3Config{
		Bucket:          getEnv("AWS_S3_BUCKET", ""),
		Prefix:          strings.Trim(getEnv("AWS_S3_PREFIX", "prints"), "/"),
		Region:          getEnv("AWS_REGION", ""),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
