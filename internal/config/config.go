/**
 * Configuration for the blockparse worker.
 *
 * Loaded from environment variables; .env is read by the entry point.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds worker configuration
type Config struct {
	// Redis queue configuration
	RedisURL   string
	QueueName  string
	ResultList string

	// PostgreSQL configuration
	DatabaseURL string

	// Document-AI backend (optional; local layout path is used when the
	// endpoint is unset)
	DocAIEndpoint      string
	DocAILargeEndpoint string
	DocAIAPIKey        string

	// Layout-detection model service
	LayoutModelURL string

	// Layout disambiguation thresholds
	DetectionThreshold float64
	OverlapThreshold   float64
	AmbiguityMargin    float64
	MinGapHeight       float64
	MinGapArea         float64

	// Post-processing floors
	MinRegionWidth  float64
	MinRegionHeight float64
	MinRegionArea   float64

	// OCR configuration
	TesseractLanguages []string

	// HTML parsing
	HTMLMinValidLines int

	// Translation
	TargetLanguages       []string
	MinLanguageProportion float64

	// Worker configuration
	WorkerConcurrency int
	SkipParsed        bool

	// Debug overlays; disabled when empty
	DebugDir string

	// Backend response cache; disabled when empty
	CacheDir string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:              getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueName:             getEnvOrDefault("QUEUE_NAME", "blockparse:jobs"),
		ResultList:            getEnvOrDefault("RESULT_LIST", "blockparse:results"),
		DatabaseURL:           getEnvOrThrow("DATABASE_URL"),
		DocAIEndpoint:         getEnvOrDefault("DOCAI_ENDPOINT", ""),
		DocAILargeEndpoint:    getEnvOrDefault("DOCAI_LARGE_ENDPOINT", ""),
		DocAIAPIKey:           getEnvOrDefault("DOCAI_API_KEY", ""),
		LayoutModelURL:        getEnvOrDefault("LAYOUT_MODEL_URL", "http://localhost:8070"),
		DetectionThreshold:    getEnvAsFloatOrDefault("DETECTION_THRESHOLD", 0.4),
		OverlapThreshold:      getEnvAsFloatOrDefault("OVERLAP_THRESHOLD", 0.7),
		AmbiguityMargin:       getEnvAsFloatOrDefault("AMBIGUITY_MARGIN", 0.15),
		MinGapHeight:          getEnvAsFloatOrDefault("MIN_GAP_HEIGHT", 40),
		MinGapArea:            getEnvAsFloatOrDefault("MIN_GAP_AREA", 5000),
		MinRegionWidth:        getEnvAsFloatOrDefault("MIN_REGION_WIDTH", 15),
		MinRegionHeight:       getEnvAsFloatOrDefault("MIN_REGION_HEIGHT", 10),
		MinRegionArea:         getEnvAsFloatOrDefault("MIN_REGION_AREA", 300),
		TesseractLanguages:    getEnvAsListOrDefault("TESSERACT_LANGUAGES", []string{"eng"}),
		HTMLMinValidLines:     getEnvAsIntOrDefault("HTML_MIN_NO_LINES_FOR_VALID_TEXT", 6),
		TargetLanguages:       getEnvAsListOrDefault("TARGET_LANGUAGES", []string{"en"}),
		MinLanguageProportion: getEnvAsFloatOrDefault("MIN_LANGUAGE_PROPORTION", 0.4),
		WorkerConcurrency:     getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		SkipParsed:            getEnvAsBoolOrDefault("SKIP_PARSED", true),
		DebugDir:              getEnvOrDefault("DEBUG_DIR", ""),
		CacheDir:              getEnvOrDefault("DOCAI_CACHE_DIR", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DetectionThreshold < 0 || c.DetectionThreshold > 1 {
		return fmt.Errorf("DETECTION_THRESHOLD must be in [0,1], got %f", c.DetectionThreshold)
	}
	if c.OverlapThreshold <= 0 || c.OverlapThreshold > 1 {
		return fmt.Errorf("OVERLAP_THRESHOLD must be in (0,1], got %f", c.OverlapThreshold)
	}
	if c.AmbiguityMargin < 0 || c.AmbiguityMargin > 1 {
		return fmt.Errorf("AMBIGUITY_MARGIN must be in [0,1], got %f", c.AmbiguityMargin)
	}
	if c.DocAIEndpoint != "" && c.DocAIAPIKey == "" {
		return fmt.Errorf("DOCAI_API_KEY is required when DOCAI_ENDPOINT is set")
	}
	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}
	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrThrow gets environment variable or panics
func getEnvOrThrow(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	return strings.EqualFold(valueStr, "true")
}

// getEnvAsListOrDefault gets a comma-separated environment variable or
// returns default
func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(strings.ToLower(valueStr), ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
