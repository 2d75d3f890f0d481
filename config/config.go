package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL string
	SQLitePath  string
	LogLevel    string
	LogFile     string
	LogMaxSize  int64

	ObjectStore ObjectStoreConfig
	Images      ImageConfig
	Scheduler   SchedulerConfig
	JobTimeout  time.Duration
	APIAddr     string
	WebhookURL  string

	Source *SourceConfig
}

type ObjectStoreConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for DO Spaces, R2, etc.
	AccessKeyID     string
	SecretAccessKey string
	Folder          string
}

type ImageConfig struct {
	MinDimension int
	JPEGQuality  int
	Concurrency  int
}

type SchedulerConfig struct {
	Cron      string
	Interval  time.Duration
	BatchSize int
}

// SourceConfig describes the scraped site: where the pages live and the
// markers used to locate the overview sections.
type SourceConfig struct {
	Name                 string `yaml:"name"`
	AllowedHost          string `yaml:"allowed_host"`
	Referer              string `yaml:"referer"`
	UserAgent            string `yaml:"user_agent"`
	PropertyNameLabel    string `yaml:"property_name_label"`
	ApartmentSuffix      string `yaml:"apartment_suffix"`
	CommonOverviewMarker string `yaml:"common_overview_marker"`
	TrafficLabel         string `yaml:"traffic_label"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "jobs.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", "daemon.log"),
		LogMaxSize:  int64(getEnvInt("LOG_MAX_SIZE", 0)),
		ObjectStore: ObjectStoreConfig{
			Bucket:          getEnv("S3_BUCKET", "mansion-watch"),
			Region:          getEnv("S3_REGION", "ap-northeast-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			Folder:          getEnv("S3_FOLDER", "property_images"),
		},
		Images: ImageConfig{
			MinDimension: getEnvInt("IMAGE_MIN_DIMENSION", 50),
			JPEGQuality:  getEnvInt("IMAGE_JPEG_QUALITY", 50),
			Concurrency:  getEnvInt("IMAGE_CONCURRENCY", 4),
		},
		Scheduler: SchedulerConfig{
			Cron:      os.Getenv("SCRAPE_CRON"),
			BatchSize: getEnvInt("SCRAPE_BATCH_SIZE", 20),
		},
		JobTimeout: getEnvDuration("JOB_TIMEOUT", 5*time.Minute),
		APIAddr:    getEnv("API_ADDR", ":8080"),
		WebhookURL: os.Getenv("WEBHOOK_URL"),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	source, err := loadSourceConfig(getEnv("SOURCE_CONFIG", "config/source.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Source = source

	return cfg, nil
}

// loadSourceConfig reads the site descriptor, falling back to the SUUMO
// defaults when no file is present.
func loadSourceConfig(path string) (*SourceConfig, error) {
	source := DefaultSourceConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return source, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, source); err != nil {
		return nil, err
	}
	return source, nil
}

func DefaultSourceConfig() *SourceConfig {
	return &SourceConfig{
		Name:                 "suumo",
		AllowedHost:          "suumo.jp",
		Referer:              "https://suumo.jp/",
		UserAgent:            "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		PropertyNameLabel:    "物件名",
		ApartmentSuffix:      " 　【マンション】",
		CommonOverviewMarker: "共通概要",
		TrafficLabel:         "交通",
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
