package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gauravpcu/vendor-statements-sub000/internal/classify"
	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/internal/mapping"
	"github.com/gauravpcu/vendor-statements-sub000/internal/matching"
	"github.com/gauravpcu/vendor-statements-sub000/internal/oracle"
	"github.com/gauravpcu/vendor-statements-sub000/internal/verification"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

// EnvPrefix prefixes every environment override, e.g. VSTMT_MATCHING_DATE_TOLERANCE_DAYS.
const EnvPrefix = "VSTMT"

type Config struct {
	FieldsFile string `mapstructure:"fields_file" yaml:"fields_file"`
	Workers    int    `mapstructure:"workers" yaml:"workers"`

	OpenAI         OpenAIConfig         `mapstructure:"openai" yaml:"openai"`
	Overlay        OverlayConfig        `mapstructure:"overlay" yaml:"overlay"`
	Candidates     CandidatesConfig     `mapstructure:"candidates" yaml:"candidates"`
	Mapping        MappingConfig        `mapstructure:"mapping" yaml:"mapping"`
	Matching       MatchingConfig       `mapstructure:"matching" yaml:"matching"`
	Classification ClassificationConfig `mapstructure:"classification" yaml:"classification"`
	Log            LogConfig            `mapstructure:"log" yaml:"log"`
}

type OpenAIConfig struct {
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Model             string        `mapstructure:"model" yaml:"model"`
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

type OverlayConfig struct {
	DBPath   string        `mapstructure:"db_path" yaml:"db_path"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

type CandidatesConfig struct {
	DBPath          string        `mapstructure:"db_path" yaml:"db_path"`
	SheetURL        string        `mapstructure:"sheet_url" yaml:"sheet_url"`
	SheetRange      string        `mapstructure:"sheet_range" yaml:"sheet_range"`
	CredentialsFile string        `mapstructure:"credentials_file" yaml:"credentials_file"`
	SearchLimit     int           `mapstructure:"search_limit" yaml:"search_limit"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type MappingConfig struct {
	FuzzyFloor         float64       `mapstructure:"fuzzy_floor" yaml:"fuzzy_floor"`
	AutoApplyThreshold float64       `mapstructure:"auto_apply_threshold" yaml:"auto_apply_threshold"`
	MaxSuggestions     int           `mapstructure:"max_suggestions" yaml:"max_suggestions"`
	OracleTimeout      time.Duration `mapstructure:"oracle_timeout" yaml:"oracle_timeout"`
}

type MatchingConfig struct {
	NameThreshold      float64            `mapstructure:"name_threshold" yaml:"name_threshold"`
	DateToleranceDays  int                `mapstructure:"date_tolerance_days" yaml:"date_tolerance_days"`
	AmountThresholdPct float64            `mapstructure:"amount_threshold_pct" yaml:"amount_threshold_pct"`
	Weights            map[string]float64 `mapstructure:"weights" yaml:"weights"`
}

type ClassificationConfig struct {
	FoundThreshold   float64 `mapstructure:"found_threshold" yaml:"found_threshold"`
	PartialThreshold float64 `mapstructure:"partial_threshold" yaml:"partial_threshold"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`
	Output     string `mapstructure:"output" yaml:"output"`
}

// DefaultDir is where config init writes and where the config file is searched for.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".vendor-statements"), nil
}

// Defaults returns the built-in settings as a nested map, in the shape of the
// config file.
func Defaults() map[string]any {
	mapDefaults := mapping.DefaultConfig()
	matchDefaults := matching.DefaultConfig()
	classification := classify.DefaultConfig()
	ai := oracle.DefaultConfig()
	pipeline := verification.DefaultConfig()
	logging := logger.DefaultConfig()

	weights := make(map[string]any, len(matchDefaults.Weights))
	for field, w := range matchDefaults.Weights {
		weights[field] = w
	}

	return map[string]any{
		"fields_file": "",
		"workers":     pipeline.Workers,
		"openai": map[string]any{
			"api_key":             "",
			"model":               ai.Model,
			"base_url":            "",
			"timeout":             ai.Timeout.String(),
			"requests_per_second": ai.RequestsPerSecond,
			"cache_ttl":           (time.Hour).String(),
		},
		"overlay": map[string]any{
			"db_path":   "vendor-statements.db",
			"cache_ttl": (5 * time.Minute).String(),
		},
		"candidates": map[string]any{
			"db_path":          "",
			"sheet_url":        "",
			"sheet_range":      "Invoices!A:Z",
			"credentials_file": "",
			"search_limit":     pipeline.SearchLimit,
			"timeout":          pipeline.ConnectorTimeout.String(),
		},
		"mapping": map[string]any{
			"fuzzy_floor":          mapDefaults.FuzzyFloor,
			"auto_apply_threshold": mapDefaults.AutoApplyThreshold,
			"max_suggestions":      mapDefaults.MaxSuggestions,
			"oracle_timeout":       mapDefaults.OracleTimeout.String(),
		},
		"matching": map[string]any{
			"name_threshold":       matchDefaults.NameThreshold,
			"date_tolerance_days":  matchDefaults.DateToleranceDays,
			"amount_threshold_pct": matchDefaults.AmountThresholdPct,
			"weights":              weights,
		},
		"classification": map[string]any{
			"found_threshold":   classification.FoundThreshold,
			"partial_threshold": classification.PartialThreshold,
		},
		"log": map[string]any{
			"level":       logging.Level,
			"format":      logging.Format,
			"time_format": logging.TimeFormat,
			"output":      logging.Output,
		},
	}
}

// SetDefaults registers every default on v under its dotted key.
func SetDefaults(v *viper.Viper) {
	setDefaults(v, "", Defaults())
}

func setDefaults(v *viper.Viper, prefix string, values map[string]any) {
	for key, value := range values {
		if nested, ok := value.(map[string]any); ok {
			setDefaults(v, prefix+key+".", nested)
			continue
		}
		v.SetDefault(prefix+key, value)
	}
}

// BindEnv makes VSTMT_* variables override their keys. The OpenAI key also
// falls back to the conventional OPENAI_API_KEY.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
}

// Load reads the effective configuration from v, which should already have
// its config file, env bindings and flags attached.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive: %w", models.ErrInvalidConfiguration)
	}
	if err := c.MappingConfig().Validate(); err != nil {
		return err
	}
	if err := c.MatchingConfig().Validate(); err != nil {
		return err
	}
	if err := c.ClassifyConfig().Validate(); err != nil {
		return err
	}
	if c.Candidates.DBPath != "" && c.Candidates.SheetURL != "" {
		return fmt.Errorf("candidates.db_path and candidates.sheet_url are mutually exclusive: %w", models.ErrInvalidConfiguration)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		TimeFormat: c.Log.TimeFormat,
		Output:     c.Log.Output,
	}
}

func (c *Config) MappingConfig() mapping.Config {
	return mapping.Config{
		FuzzyFloor:         c.Mapping.FuzzyFloor,
		AutoApplyThreshold: c.Mapping.AutoApplyThreshold,
		MaxSuggestions:     c.Mapping.MaxSuggestions,
		OracleTimeout:      c.Mapping.OracleTimeout,
		Workers:            c.Workers,
	}
}

func (c *Config) MatchingConfig() matching.Config {
	weights := make(map[string]float64, len(c.Matching.Weights))
	for field, w := range c.Matching.Weights {
		weights[field] = w
	}
	return matching.Config{
		NameThreshold:      c.Matching.NameThreshold,
		DateToleranceDays:  c.Matching.DateToleranceDays,
		AmountThresholdPct: c.Matching.AmountThresholdPct,
		Weights:            weights,
	}
}

func (c *Config) ClassifyConfig() classify.Config {
	return classify.Config{
		FoundThreshold:   c.Classification.FoundThreshold,
		PartialThreshold: c.Classification.PartialThreshold,
	}
}

func (c *Config) OracleConfig() oracle.Config {
	cfg := oracle.DefaultConfig()
	cfg.APIKey = c.OpenAI.APIKey
	cfg.BaseURL = c.OpenAI.BaseURL
	cfg.RequestsPerSecond = c.OpenAI.RequestsPerSecond
	if c.OpenAI.Model != "" {
		cfg.Model = c.OpenAI.Model
	}
	if c.OpenAI.Timeout > 0 {
		cfg.Timeout = c.OpenAI.Timeout
	}
	return cfg
}

func (c *Config) VerificationConfig() verification.Config {
	return verification.Config{
		Workers:          c.Workers,
		SearchLimit:      c.Candidates.SearchLimit,
		ConnectorTimeout: c.Candidates.Timeout,
	}
}
