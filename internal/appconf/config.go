// Package appconf holds the application configuration and the ways it is
// assembled: defaults, a JSON config file, .env files and the process environment.
package appconf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Environment int

const (
	Development Environment = iota
	Test
	Production
)

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// ParseEnvironment maps a name to an Environment. Unknown names are an error.
func ParseEnvironment(name string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "dev", "development":
		return Development, nil
	case "test":
		return Test, nil
	case "prod", "production":
		return Production, nil
	}
	return Development, fmt.Errorf("unknown environment %q", name)
}

const (
	DefaultPort                 = 4000
	DefaultRateLimit            = 100
	DefaultClickThresholdMeters = 100.0
	DefaultDBPath               = "cabview.db"
)

type Config struct {
	Port      int
	Env       Environment
	ApiKeys   []string
	Verbose   bool
	RateLimit int

	DBPath string

	// ClickThresholdMeters is the maximum distance for a map click to land on a station.
	ClickThresholdMeters float64
	// SpatialIndex switches nearest-station lookups from a linear scan to the R-tree.
	SpatialIndex bool

	JWTSecret string

	TextProcessorURL    string
	TextProcessorAPIKey string
	TextProcessorModel  string

	ReferenceLinesCSV    string
	ReferenceStationsCSV string
	ReferenceGTFS        string

	AllowedOrigins []string
}

// Default returns a development configuration with every default applied.
func Default() Config {
	return Config{
		Port:                 DefaultPort,
		Env:                  Development,
		RateLimit:            DefaultRateLimit,
		DBPath:               DefaultDBPath,
		ClickThresholdMeters: DefaultClickThresholdMeters,
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.ClickThresholdMeters <= 0 {
		return errors.New("click threshold must be positive")
	}
	if c.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	if c.DBPath == "" {
		return errors.New("database path is required")
	}
	if c.Env == Test && c.DBPath != ":memory:" {
		return fmt.Errorf("test environment must use an in-memory database, got %s", c.DBPath)
	}
	if c.Env == Production && c.JWTSecret == "" {
		return errors.New("jwt secret is required in production")
	}
	return nil
}

// FileConfig is the JSON shape of a config file. Pointer and zero values mean
// "not set" so that file values only override what they mention.
type FileConfig struct {
	Port                 int      `json:"port"`
	Env                  string   `json:"env"`
	ApiKeys              []string `json:"api-keys"`
	Verbose              bool     `json:"verbose"`
	RateLimit            *int     `json:"rate-limit"`
	DBPath               string   `json:"db-path"`
	ClickThresholdMeters float64  `json:"click-threshold-meters"`
	SpatialIndex         bool     `json:"spatial-index"`
	JWTSecret            string   `json:"jwt-secret"`
	TextProcessorURL     string   `json:"text-processor-url"`
	TextProcessorAPIKey  string   `json:"text-processor-api-key"`
	TextProcessorModel   string   `json:"text-processor-model"`
	ReferenceLinesCSV    string   `json:"reference-lines-csv"`
	ReferenceStationsCSV string   `json:"reference-stations-csv"`
	ReferenceGTFS        string   `json:"reference-gtfs"`
	AllowedOrigins       []string `json:"allowed-origins"`
}

// LoadFromFile reads a JSON config file.
func LoadFromFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var fc FileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if _, err := ParseEnvironment(fc.Env); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &fc, nil
}

// Apply overlays the values set in the file onto cfg.
func (fc *FileConfig) Apply(cfg Config) Config {
	if fc.Port != 0 {
		cfg.Port = fc.Port
	}
	if env, err := ParseEnvironment(fc.Env); err == nil && fc.Env != "" {
		cfg.Env = env
	}
	if len(fc.ApiKeys) > 0 {
		cfg.ApiKeys = fc.ApiKeys
	}
	cfg.Verbose = cfg.Verbose || fc.Verbose
	if fc.RateLimit != nil {
		cfg.RateLimit = *fc.RateLimit
	}
	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.ClickThresholdMeters > 0 {
		cfg.ClickThresholdMeters = fc.ClickThresholdMeters
	}
	cfg.SpatialIndex = cfg.SpatialIndex || fc.SpatialIndex
	setIfEmpty(&cfg.JWTSecret, fc.JWTSecret)
	setIfEmpty(&cfg.TextProcessorURL, fc.TextProcessorURL)
	setIfEmpty(&cfg.TextProcessorAPIKey, fc.TextProcessorAPIKey)
	setIfEmpty(&cfg.TextProcessorModel, fc.TextProcessorModel)
	setIfEmpty(&cfg.ReferenceLinesCSV, fc.ReferenceLinesCSV)
	setIfEmpty(&cfg.ReferenceStationsCSV, fc.ReferenceStationsCSV)
	setIfEmpty(&cfg.ReferenceGTFS, fc.ReferenceGTFS)
	if len(fc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}
	return cfg
}

func setIfEmpty(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// LoadDotEnv loads the given .env files into the process environment. Missing
// files are skipped; variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// ApplyEnv overlays CABVIEW_* environment variables onto cfg.
func ApplyEnv(cfg Config, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("CABVIEW_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid CABVIEW_PORT: %w", err)
		}
		cfg.Port = port
	}
	if v := getenv("CABVIEW_ENV"); v != "" {
		env, err := ParseEnvironment(v)
		if err != nil {
			return cfg, err
		}
		cfg.Env = env
	}
	if v := getenv("CABVIEW_API_KEYS"); v != "" {
		cfg.ApiKeys = SplitList(v)
	}
	if v := getenv("CABVIEW_CLICK_THRESHOLD_METERS"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid CABVIEW_CLICK_THRESHOLD_METERS: %w", err)
		}
		cfg.ClickThresholdMeters = threshold
	}
	setIfEmpty(&cfg.DBPath, getenv("CABVIEW_DB_PATH"))
	setIfEmpty(&cfg.JWTSecret, getenv("CABVIEW_JWT_SECRET"))
	setIfEmpty(&cfg.TextProcessorURL, getenv("CABVIEW_TEXT_PROCESSOR_URL"))
	setIfEmpty(&cfg.TextProcessorAPIKey, getenv("CABVIEW_TEXT_PROCESSOR_API_KEY"))
	setIfEmpty(&cfg.TextProcessorModel, getenv("CABVIEW_TEXT_PROCESSOR_MODEL"))
	return cfg, nil
}

// SplitList splits a comma separated list, trimming blanks and dropping empties.
func SplitList(input string) []string {
	out := []string{}
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
