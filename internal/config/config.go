package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"idscan/internal/logger"
	"idscan/internal/ocr"
	"idscan/internal/server"
	"idscan/internal/store"
)

// OCR engines
const (
	EngineTesseract  = "tesseract"
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
	EngineOpenAI     = "openai"
)

// Store drivers
const (
	StoreNone      = "none"
	StoreMemory    = "memory"
	StoreRedis     = "redis"
	StorePostgres  = "postgres"
	StoreSheets    = "sheets"
	StoreFirestore = "firestore"
)

type Config struct {
	// OCR Configuration
	OCREngine     string
	TesseractPath string
	TesseractLang string
	TesseractPSMs []int
	TessdataDir   string
	UploadDir     string

	// Google Cloud Configuration
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// OpenAI Configuration
	OpenAIAPIKey string
	OpenAIModel  string

	// Persistence Configuration
	StoreDriver          string
	RedisURL             string
	DatabaseURL          string
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// HTTP Configuration
	HTTPAddr       string
	MaxUploadBytes int64
	RequestTimeout time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	psms, err := parseInts(getEnv("TESSERACT_PSM", "3,4,6"))
	if err != nil {
		return nil, fmt.Errorf("TESSERACT_PSM: %w", err)
	}
	maxUpload, err := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "10485760"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
	}
	timeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("REQUEST_TIMEOUT: %w", err)
	}

	config := &Config{
		OCREngine:             strings.ToLower(getEnv("OCR_ENGINE", EngineTesseract)),
		TesseractPath:         getEnv("TESSERACT_PATH", "tesseract"),
		TesseractLang:         getEnv("TESSERACT_LANG", "eng"),
		TesseractPSMs:         psms,
		TessdataDir:           getEnv("TESSDATA_DIR", ""),
		UploadDir:             getEnv("UPLOAD_DIR", "uploads"),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		StoreDriver:           strings.ToLower(getEnv("STORE_DRIVER", StoreNone)),
		RedisURL:              getEnv("REDIS_URL", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		GoogleSheetURL:        getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:  getEnv("GOOGLE_SHEET_WORKSHEET", "AadharData"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":5000"),
		MaxUploadBytes:        maxUpload,
		RequestTimeout:        timeout,
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.OCREngine {
	case EngineTesseract:
		if len(c.TesseractPSMs) == 0 {
			return fmt.Errorf("TESSERACT_PSM needs at least one page segmentation mode")
		}
	case EngineVision:
	case EngineDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for OCR_ENGINE=documentai")
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for OCR_ENGINE=documentai")
		}
	case EngineOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for OCR_ENGINE=openai")
		}
	default:
		return fmt.Errorf("unknown OCR_ENGINE %q", c.OCREngine)
	}

	switch c.StoreDriver {
	case StoreNone, StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for STORE_DRIVER=redis")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=postgres")
		}
	case StoreSheets:
		if c.GoogleSheetURL == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL is required for STORE_DRIVER=sheets")
		}
	case StoreFirestore:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for STORE_DRIVER=firestore")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// OCROptions selects the recognizer for OCREngine.
func (c *Config) OCROptions() ocr.Options {
	return ocr.Options{
		Engine: c.OCREngine,
		Tesseract: ocr.TesseractConfig{
			Path:        c.TesseractPath,
			Lang:        c.TesseractLang,
			PSMs:        c.TesseractPSMs,
			TessdataDir: c.TessdataDir,
		},
		DocumentAI: ocr.DocumentAIConfig{
			ProjectID:   c.GoogleCloudProject,
			Location:    c.GoogleCloudLocation,
			ProcessorID: c.DocumentAIProcessorID,
			Timeout:     c.RequestTimeout,
		},
		OpenAI: ocr.OpenAIConfig{
			APIKey: c.OpenAIAPIKey,
			Model:  c.OpenAIModel,
		},
	}
}

func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:         c.StoreDriver,
		RedisURL:       c.RedisURL,
		DatabaseURL:    c.DatabaseURL,
		SheetURL:       c.GoogleSheetURL,
		SheetWorksheet: c.GoogleSheetWorksheet,
		ProjectID:      c.GoogleCloudProject,
	}
}

func (c *Config) ServerOptions() server.Options {
	return server.Options{
		Addr:           c.HTTPAddr,
		UploadDir:      c.UploadDir,
		MaxUploadBytes: c.MaxUploadBytes,
		RequestTimeout: c.RequestTimeout,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInts(list string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}
