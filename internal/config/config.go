package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/krxlab/stock-insight/internal/indicators"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Collector CollectorConfig
	OpenAI    OpenAIConfig
	Kakao     KakaoConfig
	Report    ReportConfig
	Analysis  AnalysisConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration. PriceRetentionDays
// bounds how far back daily bars are kept; zero keeps everything.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	DBName             string
	SSLMode            string
	PriceRetentionDays int
}

// RedisConfig holds the collector cache settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// KafkaConfig holds Kafka topics and brokers
type KafkaConfig struct {
	Brokers      []string
	SignalsTopic string
	PriceTopic   string
	GroupID      string
}

// CollectorConfig holds upstream data-source settings
type CollectorConfig struct {
	MarketBaseURL     string
	DartBaseURL       string
	DartAPIKey        string
	NaverAPIBaseURL   string
	NaverClientID     string
	NaverClientSecret string
	Timeout           time.Duration
	RateLimit         float64
	Burst             int
}

// OpenAIConfig holds the AI analyzer settings
type OpenAIConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// KakaoConfig holds the Kakao notification settings
type KakaoConfig struct {
	RESTAPIKey string
	TokenPath  string
}

// ReportConfig holds report rendering settings
type ReportConfig struct {
	OutputDir string
	BaseURL   string
	Keep      int
}

// AnalysisConfig holds the analysis run parameters. Indicators can be
// overridden from a YAML file pointed to by ANALYSIS_CONFIG.
type AnalysisConfig struct {
	File       string            `yaml:"-"`
	Indicators indicators.Params `yaml:"indicators"`
	Period     string            `yaml:"period"`
	TopCount   int               `yaml:"top_count"`
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", "postgres"),
			Password:           getEnv("DB_PASSWORD", "postgres"),
			DBName:             getEnv("DB_NAME", "stockinsight"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			PriceRetentionDays: getEnvInt("PRICE_RETENTION_DAYS", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: getEnvDuration("REDIS_CACHE_TTL", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:      strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			SignalsTopic: getEnv("KAFKA_SIGNALS_TOPIC", "stock-signals"),
			PriceTopic:   getEnv("KAFKA_PRICE_TOPIC", "stock-price-bars"),
			GroupID:      getEnv("KAFKA_GROUP_ID", "stock-insight"),
		},
		Collector: CollectorConfig{
			MarketBaseURL:     getEnv("MARKET_BASE_URL", "https://api.finance.naver.com"),
			DartBaseURL:       getEnv("DART_BASE_URL", "https://opendart.fss.or.kr/api"),
			DartAPIKey:        getEnv("DART_API_KEY", ""),
			NaverAPIBaseURL:   getEnv("NAVER_API_BASE_URL", "https://openapi.naver.com"),
			NaverClientID:     getEnv("NAVER_CLIENT_ID", ""),
			NaverClientSecret: getEnv("NAVER_CLIENT_SECRET", ""),
			Timeout:           getEnvDuration("COLLECTOR_TIMEOUT", 10*time.Second),
			RateLimit:         getEnvFloat("COLLECTOR_RATE_LIMIT", 5),
			Burst:             getEnvInt("COLLECTOR_BURST", 5),
		},
		OpenAI: OpenAIConfig{
			APIKey:    getEnv("OPENAI_API_KEY", ""),
			Model:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens: getEnvInt("OPENAI_MAX_TOKENS", 1000),
		},
		Kakao: KakaoConfig{
			RESTAPIKey: getEnv("KAKAO_REST_API_KEY", ""),
			TokenPath:  getEnv("KAKAO_TOKEN_PATH", "kakao_token.json"),
		},
		Report: ReportConfig{
			OutputDir: getEnv("REPORT_OUTPUT_DIR", "reports"),
			BaseURL:   getEnv("REPORT_BASE_URL", ""),
			Keep:      getEnvInt("REPORT_KEEP", 10),
		},
		Analysis: AnalysisConfig{
			File:       getEnv("ANALYSIS_CONFIG", ""),
			Indicators: indicators.DefaultParams(),
			Period:     getEnv("ANALYSIS_PERIOD", "3m"),
			TopCount:   getEnvInt("ANALYSIS_TOP_COUNT", 5),
		},
	}
}

// LoadAnalysisFile overlays analysis parameters from a YAML file
func (c *Config) LoadAnalysisFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read analysis config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c.Analysis); err != nil {
		return fmt.Errorf("failed to parse analysis config: %w", err)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Enabled reports whether the AI analyzer is configured
func (o *OpenAIConfig) Enabled() bool {
	return o.APIKey != ""
}

// Enabled reports whether Kakao notifications are configured
func (k *KakaoConfig) Enabled() bool {
	return k.RESTAPIKey != ""
}

// DartEnabled reports whether the DART collector is configured
func (c *CollectorConfig) DartEnabled() bool {
	return c.DartAPIKey != ""
}

// NewsEnabled reports whether the Naver news collector is configured
func (c *CollectorConfig) NewsEnabled() bool {
	return c.NaverClientID != "" && c.NaverClientSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
