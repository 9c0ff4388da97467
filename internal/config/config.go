package config

import (
	"os"
	"strconv"
	"time"
)

// StorageConfig selects and configures the storage directory backend.
type StorageConfig struct {
	Backend     string
	Dir         string
	MaxUploadMB int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// PrinterConfig holds the SMB print share settings used by the print bridge.
type PrinterConfig struct {
	Binary     string
	Host       string
	Share      string
	User       string
	Password   string
	TimeoutSec int
	Strict     bool
}

// NetworkConfig controls how the kiosk discovers the address it advertises to phones.
type NetworkConfig struct {
	ProbeAddr  string
	FallbackIP string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables.
type AppConfig struct {
	Port     string
	Timezone string
	Storage  StorageConfig
	MinIO    MinIOConfig
	Printer  PrinterConfig
	Network  NetworkConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() *AppConfig {
	return &AppConfig{
		Port:     getEnv("PORT", "5000"),
		Timezone: getEnv("APP_TIMEZONE", "UTC"),
		Storage: StorageConfig{
			Backend:     getEnv("STORAGE_BACKEND", "local"),
			Dir:         getEnv("STORAGE_DIR", "/session_data"),
			MaxUploadMB: getEnvInt("UPLOAD_MAX_MB", 64),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			Prefix:    getEnv("MINIO_PREFIX", "uploads/"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Printer: PrinterConfig{
			Binary:     getEnv("PRINTER_BINARY", "smbclient"),
			Host:       getEnv("PRINTER_HOST", "host.docker.internal"),
			Share:      getEnv("PRINTER_SHARE", "ShopPrinter"),
			User:       getEnv("PRINTER_USER", "Guest"),
			Password:   getEnv("PRINTER_PASSWORD", ""),
			TimeoutSec: getEnvInt("PRINT_TIMEOUT_SEC", 60),
			Strict:     getEnvBool("PRINT_STRICT", false),
		},
		Network: NetworkConfig{
			ProbeAddr:  getEnv("NET_PROBE_ADDR", "10.255.255.255:1"),
			FallbackIP: getEnv("NET_FALLBACK_IP", "127.0.0.1"),
		},
	}
}

// Location resolves the configured time zone, falling back to UTC when it is unknown.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BodyLimit is the maximum request body size in bytes accepted by the HTTP server.
func (c StorageConfig) BodyLimit() int {
	if c.MaxUploadMB <= 0 {
		return 64 << 20
	}
	return c.MaxUploadMB << 20
}

// PrintTimeout is the upper bound for a single print job.
func (c PrinterConfig) PrintTimeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
