package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	SearchFirecrawl = "firecrawl"
	SearchBrave     = "brave"
	SearchArxiv     = "arxiv"
)

type Config struct {
	FirecrawlAPIKey  string
	FirecrawlBaseURL string
	GeminiAPIKey     string
	BraveAPIKey      string
	SearchProvider   string
	LLMBackend       string
	AnalysisModel    string
	ReportModel      string
	Port             string
	DatabaseURL      string
	CallTimeout      time.Duration
	RequestTimeout   time.Duration
	SearchLimit      int
	ExtractLimit     int
	FallbackLimit    int
	FindingMaxChars  int
	DefaultDepth     int

	// Output token caps for the analysis and report calls
	AnalysisMaxTokens int
	ReportMaxTokens   int
}

// MissingEnvError lists required environment variables that are not set.
type MissingEnvError struct {
	Vars []string
}

func (e *MissingEnvError) Error() string {
	return "Missing required environment variables: " + strings.Join(e.Vars, ", ")
}

// Load reads configuration from the environment, after merging a .env file
// from the working directory if one exists.
func Load() *Config {
	// It's okay if .env doesn't exist, as long as env vars are set
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	SetDefaults(v)
	return FromViper(v)
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("FIRECRAWL_BASE_URL", "https://api.firecrawl.dev")
	v.SetDefault("SEARCH_PROVIDER", SearchFirecrawl)
	v.SetDefault("LLM_BACKEND", "langchaingo")
	v.SetDefault("ANALYSIS_MODEL", "gemini-2.5-flash")
	v.SetDefault("REPORT_MODEL", "gemini-2.5-flash")
	v.SetDefault("PORT", "8081")
	v.SetDefault("CALL_TIMEOUT", "90s")
	v.SetDefault("REQUEST_TIMEOUT", "10m")
	v.SetDefault("SEARCH_LIMIT", 10)
	v.SetDefault("EXTRACT_LIMIT", 5)
	v.SetDefault("FALLBACK_LIMIT", 3)
	v.SetDefault("FINDING_MAX_CHARS", 4000)
	v.SetDefault("DEFAULT_DEPTH", 3)
	v.SetDefault("ANALYSIS_MAX_TOKENS", 8192)
	v.SetDefault("REPORT_MAX_TOKENS", 32768)
}

func FromViper(v *viper.Viper) *Config {
	geminiKey := v.GetString("GEMINI_API_KEY")
	if geminiKey == "" {
		geminiKey = v.GetString("GOOGLE_API_KEY")
	}

	return &Config{
		FirecrawlAPIKey:  v.GetString("FIRECRAWL_API_KEY"),
		FirecrawlBaseURL: v.GetString("FIRECRAWL_BASE_URL"),
		GeminiAPIKey:     geminiKey,
		BraveAPIKey:      v.GetString("BRAVE_API_KEY"),
		SearchProvider:   strings.ToLower(strings.TrimSpace(v.GetString("SEARCH_PROVIDER"))),
		LLMBackend:       strings.ToLower(strings.TrimSpace(v.GetString("LLM_BACKEND"))),
		AnalysisModel:    v.GetString("ANALYSIS_MODEL"),
		ReportModel:      v.GetString("REPORT_MODEL"),
		Port:             v.GetString("PORT"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		CallTimeout:      duration(v, "CALL_TIMEOUT", 90*time.Second),
		RequestTimeout:   duration(v, "REQUEST_TIMEOUT", 10*time.Minute),
		SearchLimit:      v.GetInt("SEARCH_LIMIT"),
		ExtractLimit:     v.GetInt("EXTRACT_LIMIT"),
		FallbackLimit:    v.GetInt("FALLBACK_LIMIT"),
		FindingMaxChars:  v.GetInt("FINDING_MAX_CHARS"),
		DefaultDepth:     v.GetInt("DEFAULT_DEPTH"),

		AnalysisMaxTokens: v.GetInt("ANALYSIS_MAX_TOKENS"),
		ReportMaxTokens:   v.GetInt("REPORT_MAX_TOKENS"),
	}
}

// duration reads key as a Go duration ("90s", "10m"). A bare number is taken
// as seconds; an unparsable value yields def.
func duration(v *viper.Viper, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

// Validate reports every missing credential at once and rejects unknown
// provider names.
func (c *Config) Validate() error {
	var missing []string
	if c.FirecrawlAPIKey == "" {
		missing = append(missing, "FIRECRAWL_API_KEY")
	}
	if c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.SearchProvider == SearchBrave && c.BraveAPIKey == "" {
		missing = append(missing, "BRAVE_API_KEY")
	}
	if len(missing) > 0 {
		return &MissingEnvError{Vars: missing}
	}

	switch c.SearchProvider {
	case "", SearchFirecrawl, SearchBrave, SearchArxiv:
	default:
		return fmt.Errorf("unknown SEARCH_PROVIDER %q", c.SearchProvider)
	}
	return nil
}
