// Package config loads linkaudit settings from an optional TOML or YAML file,
// a .env file and the process environment, in increasing order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docutag/linkaudit"
	"github.com/docutag/linkaudit/browser"
	"github.com/docutag/linkaudit/llm"
	"github.com/docutag/linkaudit/storage"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a string ("10s", "500ms") in config files
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler, used by both TOML and YAML decoding
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// HTTPConfig configures probes and content fetching
type HTTPConfig struct {
	Timeout      Duration `toml:"timeout" yaml:"timeout"`
	UserAgent    string   `toml:"user_agent" yaml:"user_agent"`
	Delay        Duration `toml:"delay" yaml:"delay"`
	MaxRedirects int      `toml:"max_redirects" yaml:"max_redirects"`
	MaxBodyBytes int64    `toml:"max_body_bytes" yaml:"max_body_bytes"`
}

// RepairConfig configures replacement search
type RepairConfig struct {
	MinScore    float64 `toml:"min_score" yaml:"min_score"`
	MaxProbes   int     `toml:"max_probes" yaml:"max_probes"`
	RequireLive *bool   `toml:"require_live" yaml:"require_live"`
}

// AnalysisConfig configures content analysis
type AnalysisConfig struct {
	ChunkSize       int      `toml:"chunk_size" yaml:"chunk_size"`
	MaxChars        int      `toml:"max_chars" yaml:"max_chars"`
	MinContentChars int      `toml:"min_content_chars" yaml:"min_content_chars"`
	Timeout         Duration `toml:"timeout" yaml:"timeout"`
}

// BrowserConfig configures the headless browser
type BrowserConfig struct {
	Enabled  bool     `toml:"enabled" yaml:"enabled"`
	Timeout  Duration `toml:"timeout" yaml:"timeout"`
	WaitTime Duration `toml:"wait_time" yaml:"wait_time"`
}

// StorageConfig selects where reports are written. S3 is used when a bucket is set.
type StorageConfig struct {
	Path string           `toml:"path" yaml:"path"`
	S3   storage.S3Config `toml:"s3" yaml:"s3"`
}

// Config is the complete file configuration
type Config struct {
	HTTP     HTTPConfig     `toml:"http" yaml:"http"`
	Repair   RepairConfig   `toml:"repair" yaml:"repair"`
	Analysis AnalysisConfig `toml:"analysis" yaml:"analysis"`
	LLM      llm.Config     `toml:"llm" yaml:"llm"`
	Browser  BrowserConfig  `toml:"browser" yaml:"browser"`
	Storage  StorageConfig  `toml:"storage" yaml:"storage"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	d := linkaudit.DefaultConfig()
	b := browser.DefaultConfig()
	live := d.RequireLiveCandidate
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      Duration{d.HTTPTimeout},
			UserAgent:    d.UserAgent,
			Delay:        Duration{d.RequestDelay},
			MaxRedirects: d.MaxRedirects,
			MaxBodyBytes: d.MaxBodyBytes,
		},
		Repair: RepairConfig{
			MinScore:    d.MinRepairScore,
			MaxProbes:   d.MaxCandidateProbes,
			RequireLive: &live,
		},
		Analysis: AnalysisConfig{
			ChunkSize:       d.AnalysisChunkSize,
			MaxChars:        d.AnalysisMaxChars,
			MinContentChars: d.MinContentChars,
			Timeout:         Duration{d.AnalysisTimeout},
		},
		LLM:     llm.Config{Provider: llm.ProviderOllama},
		Browser: BrowserConfig{Timeout: Duration{b.Timeout}, WaitTime: Duration{b.WaitTime}},
		Storage: StorageConfig{Path: "."},
	}
}

// Load reads the config file at path on top of the defaults. An empty path
// returns the defaults. The format follows the extension: .toml, .yaml or .yml.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .toml, .yaml or .yml)", ext)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the environment
// without overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides file values with environment variables
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("LINKAUDIT_TIMEOUT"); v != "" {
		if err := c.HTTP.Timeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("LINKAUDIT_TIMEOUT: %w", err)
		}
	}
	if v := os.Getenv("LINKAUDIT_DELAY"); v != "" {
		if err := c.HTTP.Delay.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("LINKAUDIT_DELAY: %w", err)
		}
	}
	if v := os.Getenv("LINKAUDIT_USER_AGENT"); v != "" {
		c.HTTP.UserAgent = v
	}
	if v := os.Getenv("LINKAUDIT_MIN_SCORE"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LINKAUDIT_MIN_SCORE: %w", err)
		}
		c.Repair.MinScore = score
	}
	if v := os.Getenv("LINKAUDIT_BROWSER"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LINKAUDIT_BROWSER: %w", err)
		}
		c.Browser.Enabled = enabled
	}
	if v := os.Getenv("LINKAUDIT_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}

	if v := os.Getenv("LINKAUDIT_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LINKAUDIT_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" && c.provider() == llm.ProviderOllama {
		c.LLM.BaseURL = v
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv(apiKeyEnv(c.provider()))
	}

	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		c.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		c.Storage.S3.Region = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.Storage.S3.Bucket = v
	}
	if v := os.Getenv("S3_PREFIX"); v != "" {
		c.Storage.S3.Prefix = v
	}
	if v := os.Getenv("S3_ACCESS_KEY_ID"); v != "" {
		c.Storage.S3.AccessKeyID = v
	}
	if v := os.Getenv("S3_SECRET_ACCESS_KEY"); v != "" {
		c.Storage.S3.SecretAccessKey = v
	}
	if v := os.Getenv("S3_USE_PATH_STYLE"); v != "" {
		c.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}
	return nil
}

func (c *Config) provider() string {
	p := strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if p == "" {
		return llm.ProviderOllama
	}
	return p
}

func apiKeyEnv(provider string) string {
	switch provider {
	case llm.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case llm.ProviderClaude, "anthropic":
		return "ANTHROPIC_API_KEY"
	case llm.ProviderGemini:
		return "GEMINI_API_KEY"
	}
	return ""
}

// Auditor converts the file settings into the core configuration.
// Zero values fall back to the core defaults.
func (c *Config) Auditor() linkaudit.Config {
	cfg := linkaudit.Config{
		HTTPTimeout:        c.HTTP.Timeout.Duration,
		UserAgent:          c.HTTP.UserAgent,
		RequestDelay:       c.HTTP.Delay.Duration,
		MaxRedirects:       c.HTTP.MaxRedirects,
		MaxBodyBytes:       c.HTTP.MaxBodyBytes,
		MinRepairScore:     c.Repair.MinScore,
		MaxCandidateProbes: c.Repair.MaxProbes,
		AnalysisChunkSize:  c.Analysis.ChunkSize,
		AnalysisMaxChars:   c.Analysis.MaxChars,
		MinContentChars:    c.Analysis.MinContentChars,
		AnalysisTimeout:    c.Analysis.Timeout.Duration,
	}
	cfg.RequireLiveCandidate = c.Repair.RequireLive == nil || *c.Repair.RequireLive
	return cfg
}

// BrowserSettings converts the browser section, sharing the HTTP user agent
func (c *Config) BrowserSettings() browser.Config {
	b := browser.DefaultConfig()
	if c.Browser.Timeout.Duration > 0 {
		b.Timeout = c.Browser.Timeout.Duration
	}
	if c.Browser.WaitTime.Duration > 0 {
		b.WaitTime = c.Browser.WaitTime.Duration
	}
	if c.HTTP.UserAgent != "" {
		b.UserAgent = c.HTTP.UserAgent
	}
	return b
}

// UseS3 reports whether reports go to S3 instead of the local filesystem
func (c *Config) UseS3() bool {
	return c.Storage.S3.Bucket != ""
}

// Sink opens the report storage: S3 when a bucket is configured, the local directory otherwise
func (c *Config) Sink(ctx context.Context) (storage.Sink, error) {
	if c.UseS3() {
		s3, err := storage.NewS3Storage(ctx, c.Storage.S3)
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	path := c.Storage.Path
	if path == "" {
		path = "."
	}
	fs, err := storage.New(storage.Config{BasePath: path})
	if err != nil {
		return nil, err
	}
	return fs, nil
}
