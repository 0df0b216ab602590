// Package config loads the pipeline configuration from the environment, with
// optional .env file support.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/chaptermark/chaptermark/pkg/errs"
	"github.com/chaptermark/chaptermark/pkg/logging"
)

const (
	// ProviderLocal selects the Ollama backend as primary.
	ProviderLocal = "local"

	// ProviderGemini selects the Gemini backend as primary.
	ProviderGemini = "gemini"
)

const (
	defaultLocalModel    = "llama3.1"
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultTimeout       = 300 * time.Second
	defaultReviewPasses  = 2
	defaultOutputDir     = "output"
	defaultWhisperBinary = "whisper-cli"
	defaultWhisperModel  = "models/ggml-base.en.bin"
	defaultWhisperLang   = "en"
	defaultWhisperThread = 4
)

// Config is the full pipeline configuration, constructed once per run and
// passed by reference. Nothing mutates it after Load.
type Config struct {
	// Provider selection.
	Provider       string
	EnableFallback bool

	// Local backend.
	LocalModelName string
	OllamaBaseURL  string

	// Remote backend.
	GeminiAPIKey string
	GeminiModel  string

	// Generation tuning shared by both backends.
	ModelParameters map[string]any
	AnalysisTimeout time.Duration

	// Review protocol. ReviewPasses counts the initial analysis as pass 1,
	// so two passes mean one review round.
	EnableReview bool
	ReviewPasses int
	ReviewModels []string

	// Output handling.
	OutputDir            string
	SkipExisting         bool
	OverlayChapterTitles bool

	// Transcription.
	WhisperBinary    string
	WhisperModelPath string
	WhisperLanguage  string
	WhisperThreads   int
}

// Load reads configuration from the environment. If envFile names an existing
// file it is loaded first; real environment variables always win over file
// values.
func Load(ctx context.Context, envFile string) (*Config, error) {
	log := logging.NewLogger(ctx)

	if envFile != "" {
		if _, err := os.Stat(envFile); err != nil {
			return nil, errs.Wrap(errs.KindFileSystem, "environment file not found", map[string]any{
				"file_path": envFile,
				"operation": "config load",
			}, err)
		}
		if err := godotenv.Load(envFile); err != nil {
			return nil, errs.Wrap(errs.KindFileSystem, "failed to load environment file", map[string]any{
				"file_path": envFile,
				"operation": "config load",
			}, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Warnf("failed to load .env: %v", err)
		}
	}

	cfg := &Config{
		Provider:             strings.ToLower(getEnv("AI_PROVIDER", ProviderLocal)),
		EnableFallback:       getBool("ENABLE_FALLBACK", true),
		LocalModelName:       getEnv("LOCAL_MODEL_NAME", defaultLocalModel),
		OllamaBaseURL:        getEnv("OLLAMA_BASE_URL", defaultOllamaBaseURL),
		GeminiAPIKey:         strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:          getEnv("GEMINI_MODEL", defaultGeminiModel),
		AnalysisTimeout:      getSeconds("ANALYSIS_TIMEOUT", defaultTimeout),
		EnableReview:         getBool("ENABLE_REVIEW", false),
		ReviewPasses:         getInt("REVIEW_PASSES", defaultReviewPasses),
		ReviewModels:         getList("REVIEW_MODELS"),
		OutputDir:            getEnv("OUTPUT_DIR", defaultOutputDir),
		SkipExisting:         getBool("SKIP_EXISTING", false),
		OverlayChapterTitles: getBool("OVERLAY_CHAPTER_TITLES", false),
		WhisperBinary:        getEnv("WHISPER_BINARY", defaultWhisperBinary),
		WhisperModelPath:     getEnv("WHISPER_MODEL_PATH", defaultWhisperModel),
		WhisperLanguage:      getEnv("WHISPER_LANGUAGE", defaultWhisperLang),
		WhisperThreads:       getInt("WHISPER_THREADS", defaultWhisperThread),
	}

	if raw := strings.TrimSpace(os.Getenv("MODEL_PARAMETERS")); raw != "" {
		params := map[string]any{}
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, errs.Wrap(errs.KindValidation, "MODEL_PARAMETERS is not valid JSON", map[string]any{
				"operation": "config load",
			}, err)
		}
		cfg.ModelParameters = params
	}

	return cfg, nil
}

// Problems audits the configuration and returns every issue found, one
// human-readable string each. Empty means valid.
func (c *Config) Problems() []string {
	var problems []string

	switch c.Provider {
	case ProviderLocal, ProviderGemini:
	default:
		problems = append(problems, fmt.Sprintf("AI_PROVIDER must be %q or %q, got %q", ProviderLocal, ProviderGemini, c.Provider))
	}

	if c.Provider == ProviderGemini || c.EnableFallback {
		if c.GeminiAPIKey == "" {
			problems = append(problems, "GEMINI_API_KEY is required when the Gemini backend can be used")
		} else if c.GeminiAPIKey == "your_api_key_here" {
			problems = append(problems, "GEMINI_API_KEY is still the template placeholder")
		}
	}

	if strings.TrimSpace(c.LocalModelName) == "" {
		problems = append(problems, "LOCAL_MODEL_NAME must not be empty")
	}
	if !strings.HasPrefix(c.OllamaBaseURL, "http://") && !strings.HasPrefix(c.OllamaBaseURL, "https://") {
		problems = append(problems, fmt.Sprintf("OLLAMA_BASE_URL must be an http(s) URL, got %q", c.OllamaBaseURL))
	}
	if c.AnalysisTimeout <= 0 {
		problems = append(problems, "ANALYSIS_TIMEOUT must be positive")
	}
	if c.EnableReview && c.ReviewPasses < 2 {
		problems = append(problems, "REVIEW_PASSES must be at least 2 when review is enabled")
	}
	if c.WhisperThreads < 1 {
		problems = append(problems, "WHISPER_THREADS must be at least 1")
	}

	return problems
}

// Validate returns a single validation error aggregating every problem, or
// nil if the configuration is usable.
func (c *Config) Validate() error {
	problems := c.Problems()
	if len(problems) == 0 {
		return nil
	}
	return errs.Validation("configuration is invalid", map[string]any{
		"operation": "config validation",
		"issues":    strings.Join(problems, "; "),
	})
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	switch value {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func getInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getSeconds(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return time.Duration(parsed * float64(time.Second))
}

func getList(key string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
