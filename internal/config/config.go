package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/roach88/notionsync/internal/engine"
	"github.com/roach88/notionsync/internal/remote"
)

// Environment variables read by ApplyEnv.
const (
	EnvToken = "NOTION_TOKEN"
	EnvRoot  = "NOTION_ROOT_PAGE"
)

// DefaultDatabase is the mirror file used when none is configured.
const DefaultDatabase = "notion.db"

// Config is the resolved configuration of a sync.
type Config struct {
	Token       string
	Database    string
	Root        string
	Concurrency int
	// SubFetches caps the listings one container runs at once; 0 means
	// the same as Concurrency.
	SubFetches int
	Comments   string
	Retry      Retry
	API        API
}

// Retry configures the backoff for transient remote errors.
type Retry struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
}

// API configures the HTTP client.
type API struct {
	BaseURL   string
	Version   string
	PageSize  int
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

// Default returns the built-in configuration.
func Default() Config {
	b := engine.DefaultBackoff()
	return Config{
		Database:    DefaultDatabase,
		Concurrency: engine.DefaultConcurrency,
		Comments:    string(engine.CommentsPages),
		Retry: Retry{
			MaxAttempts:  b.MaxAttempts,
			InitialDelay: b.InitialDelay,
			MaxDelay:     b.MaxDelay,
			Multiplier:   b.Multiplier,
			Jitter:       b.Jitter,
		},
		API: API{
			BaseURL:   remote.DefaultBaseURL,
			Version:   remote.DefaultVersion,
			PageSize:  remote.DefaultPageSize,
			Timeout:   remote.DefaultTimeout,
			RateLimit: remote.DefaultRateLimit,
			Burst:     remote.DefaultBurst,
		},
	}
}

// fileConfig mirrors schema.cue. Absent keys stay nil and leave the
// current value alone.
type fileConfig struct {
	Token       *string    `yaml:"token"`
	Database    *string    `yaml:"database"`
	Root        *string    `yaml:"root"`
	Concurrency *int       `yaml:"concurrency"`
	SubFetches  *int       `yaml:"sub_fetches"`
	Comments    *string    `yaml:"comments"`
	Retry       *fileRetry `yaml:"retry"`
	API         *fileAPI   `yaml:"api"`
}

type fileRetry struct {
	MaxAttempts  *int     `yaml:"max_attempts"`
	InitialDelay *string  `yaml:"initial_delay"`
	MaxDelay     *string  `yaml:"max_delay"`
	Multiplier   *float64 `yaml:"multiplier"`
	Jitter       *float64 `yaml:"jitter"`
}

type fileAPI struct {
	BaseURL   *string  `yaml:"base_url"`
	Version   *string  `yaml:"version"`
	PageSize  *int     `yaml:"page_size"`
	Timeout   *string  `yaml:"timeout"`
	RateLimit *float64 `yaml:"rate_limit"`
	Burst     *int     `yaml:"burst"`
}

// Load returns the defaults overlaid with the config file at path. An empty
// path loads the defaults only.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cfg.ApplyYAML(data); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyYAML validates a config document and overlays the keys it sets.
func (c *Config) ApplyYAML(data []byte) error {
	if err := checkSchema(data); err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: decode: %w", err)
	}

	setString(&c.Token, fc.Token)
	setString(&c.Database, fc.Database)
	setString(&c.Root, fc.Root)
	setInt(&c.Concurrency, fc.Concurrency)
	setInt(&c.SubFetches, fc.SubFetches)
	setString(&c.Comments, fc.Comments)

	if r := fc.Retry; r != nil {
		setInt(&c.Retry.MaxAttempts, r.MaxAttempts)
		if err := setDuration(&c.Retry.InitialDelay, r.InitialDelay); err != nil {
			return fmt.Errorf("config: retry.initial_delay: %w", err)
		}
		if err := setDuration(&c.Retry.MaxDelay, r.MaxDelay); err != nil {
			return fmt.Errorf("config: retry.max_delay: %w", err)
		}
		setFloat(&c.Retry.Multiplier, r.Multiplier)
		setFloat(&c.Retry.Jitter, r.Jitter)
	}

	if a := fc.API; a != nil {
		setString(&c.API.BaseURL, a.BaseURL)
		setString(&c.API.Version, a.Version)
		setInt(&c.API.PageSize, a.PageSize)
		if err := setDuration(&c.API.Timeout, a.Timeout); err != nil {
			return fmt.Errorf("config: api.timeout: %w", err)
		}
		setFloat(&c.API.RateLimit, a.RateLimit)
		setInt(&c.API.Burst, a.Burst)
	}
	return nil
}

// ApplyEnv overlays the token and root from the environment. lookup is
// usually os.Getenv; empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) string) {
	if v := lookup(EnvToken); v != "" {
		c.Token = v
	}
	if v := lookup(EnvRoot); v != "" {
		c.Root = v
	}
}

// ValidateOption relaxes a check made by Validate.
type ValidateOption func(*validation)

type validation struct {
	skipToken bool
}

// SkipToken drops the token requirement, for callers that supply an
// authenticated client of their own.
func SkipToken() ValidateOption {
	return func(v *validation) { v.skipToken = true }
}

// Validate checks the resolved configuration. All problems are reported.
func (c *Config) Validate(opts ...ValidateOption) error {
	var v validation
	for _, opt := range opts {
		opt(&v)
	}

	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if c.Token == "" && !v.skipToken {
		fail("token is required (--token or %s)", EnvToken)
	}
	if c.Root == "" {
		fail("root page is required (argument or %s)", EnvRoot)
	}
	if c.Database == "" {
		fail("database path is required")
	}
	if c.Concurrency < 1 {
		fail("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.SubFetches < 0 {
		fail("sub_fetches must not be negative, got %d", c.SubFetches)
	}
	if _, err := engine.ParseCommentScope(c.Comments); err != nil {
		fail("%v", err)
	}
	if c.Retry.MaxAttempts < 1 {
		fail("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < c.Retry.InitialDelay {
		fail("retry delays must satisfy 0 <= initial_delay <= max_delay")
	}
	if c.Retry.Multiplier < 1 {
		fail("retry.multiplier must be at least 1, got %g", c.Retry.Multiplier)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		fail("retry.jitter must be within [0, 1], got %g", c.Retry.Jitter)
	}
	if c.API.PageSize < 1 || c.API.PageSize > remote.DefaultPageSize {
		fail("api.page_size must be within [1, %d], got %d", remote.DefaultPageSize, c.API.PageSize)
	}
	if c.API.RateLimit <= 0 || c.API.Burst < 1 {
		fail("api.rate_limit and api.burst must be positive")
	}
	return result.ErrorOrNil()
}

// Backoff returns the engine retry policy.
func (c *Config) Backoff() engine.Backoff {
	return engine.Backoff{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: c.Retry.InitialDelay,
		MaxDelay:     c.Retry.MaxDelay,
		Multiplier:   c.Retry.Multiplier,
		Jitter:       c.Retry.Jitter,
	}
}

// CommentScope returns the parsed comment scope. Call Validate first.
func (c *Config) CommentScope() engine.CommentScope {
	scope, err := engine.ParseCommentScope(c.Comments)
	if err != nil {
		return engine.CommentsPages
	}
	return scope
}

// RemoteConfig returns the HTTP client configuration.
func (c *Config) RemoteConfig() remote.Config {
	return remote.Config{
		Token:     c.Token,
		BaseURL:   c.API.BaseURL,
		Version:   c.API.Version,
		PageSize:  c.API.PageSize,
		Timeout:   c.API.Timeout,
		RateLimit: c.API.RateLimit,
		Burst:     c.API.Burst,
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
