package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FIRECRAWL_API_KEY", "fc")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google")

	cfg := Load()
	assert.Equal(t, "fc", cfg.FirecrawlAPIKey)
	assert.Equal(t, "google", cfg.GeminiAPIKey)
	assert.Equal(t, SearchFirecrawl, cfg.SearchProvider)
	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 90*time.Second, cfg.CallTimeout)
	assert.Equal(t, 10*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.ExtractLimit)
	assert.Equal(t, 3, cfg.FallbackLimit)
	assert.Equal(t, 3, cfg.DefaultDepth)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("GEMINI_API_KEY", "gem")
	v.Set("GOOGLE_API_KEY", "ignored")
	v.Set("SEARCH_PROVIDER", " Brave ")
	v.Set("CALL_TIMEOUT", "15s")
	v.Set("EXTRACT_LIMIT", "2")

	cfg := FromViper(v)
	assert.Equal(t, "gem", cfg.GeminiAPIKey)
	assert.Equal(t, SearchBrave, cfg.SearchProvider)
	assert.Equal(t, 15*time.Second, cfg.CallTimeout)
	assert.Equal(t, 2, cfg.ExtractLimit)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantMissing []string
		wantErr     bool
	}{
		{name: "complete", cfg: Config{FirecrawlAPIKey: "a", GeminiAPIKey: "b", SearchProvider: SearchFirecrawl}},
		{name: "nothing set", cfg: Config{}, wantMissing: []string{"FIRECRAWL_API_KEY", "GEMINI_API_KEY"}, wantErr: true},
		{name: "brave without key", cfg: Config{FirecrawlAPIKey: "a", GeminiAPIKey: "b", SearchProvider: SearchBrave}, wantMissing: []string{"BRAVE_API_KEY"}, wantErr: true},
		{name: "arxiv", cfg: Config{FirecrawlAPIKey: "a", GeminiAPIKey: "b", SearchProvider: SearchArxiv}},
		{name: "unknown provider", cfg: Config{FirecrawlAPIKey: "a", GeminiAPIKey: "b", SearchProvider: "bing"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)

			var missing *MissingEnvError
			if tt.wantMissing == nil {
				assert.False(t, errors.As(err, &missing))
				return
			}
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tt.wantMissing, missing.Vars)
		})
	}
}

func TestMissingEnvErrorMessage(t *testing.T) {
	err := &MissingEnvError{Vars: []string{"FIRECRAWL_API_KEY", "GEMINI_API_KEY"}}
	assert.Equal(t, "Missing required environment variables: FIRECRAWL_API_KEY, GEMINI_API_KEY", err.Error())
}

func TestDurationSettings(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unitless means seconds", "90", 90 * time.Second},
		{"fractional seconds", "1.5", 1500 * time.Millisecond},
		{"go duration", "2m", 2 * time.Minute},
		{"invalid keeps default", "soon", 90 * time.Second},
		{"blank keeps default", " ", 90 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.Set("CALL_TIMEOUT", tt.value)

			cfg := FromViper(v)
			assert.Equal(t, tt.want, cfg.CallTimeout)
		})
	}
}

func TestMaxTokenSettings(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg := FromViper(v)
	assert.Equal(t, 8192, cfg.AnalysisMaxTokens)
	assert.Equal(t, 32768, cfg.ReportMaxTokens)

	v.Set("REPORT_MAX_TOKENS", "4096")
	assert.Equal(t, 4096, FromViper(v).ReportMaxTokens)
}
