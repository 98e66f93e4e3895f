// Package config loads profilesync configuration.
//
// Configuration is read from YAML, overlaid with environment variables and
// validated against an embedded CUE schema. Get exposes values by their
// YAML name for components that look settings up dynamically.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/profilesync/internal/model"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables that override file values.
const (
	EnvToken   = "PROFILESYNC_TOKEN"
	EnvAPIHost = "PROFILESYNC_API_HOST"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config is the complete client configuration.
type Config struct {
	Token         string        `yaml:"token" json:"token"`
	APIHost       string        `yaml:"api_host" json:"api_host"`
	Verbose       bool          `yaml:"verbose" json:"verbose"`
	SaveReferrer  bool          `yaml:"save_referrer" json:"save_referrer"`
	TruncateLimit int           `yaml:"truncate_limit" json:"truncate_limit"`
	HTTPTimeout   time.Duration `yaml:"http_timeout" json:"http_timeout"`
	Store         StoreConfig   `yaml:"store" json:"store"`
}

// StoreConfig selects the pending store backend.
type StoreConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
}

// Default returns the built-in configuration. Token is empty and must be
// supplied by a file or PROFILESYNC_TOKEN.
func Default() Config {
	return Config{
		APIHost:       "http://127.0.0.1:8080",
		TruncateLimit: model.DefaultTruncateLimit,
		HTTPTimeout:   10 * time.Second,
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    "profilesync.db",
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected. Parse
// does not validate; call Validate.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment overrides using lookup (os.LookupEnv in
// production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvToken); ok && v != "" {
		c.Token = v
	}
	if v, ok := lookup(EnvAPIHost); ok && v != "" {
		c.APIHost = v
	}
}

// Validate checks c against the embedded CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: cueerrors.Details(err, nil), Err: err}
	}
	return nil
}

// ValidationError reports a configuration that does not satisfy the schema.
type ValidationError struct {
	Details string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Names lists the keys accepted by Get, in display order.
var Names = []string{
	"token",
	"api_host",
	"verbose",
	"save_referrer",
	"truncate_limit",
	"http_timeout",
	"store.backend",
	"store.path",
}

// Get returns the value of a setting by its YAML name.
func (c Config) Get(name string) (any, bool) {
	switch name {
	case "token":
		return c.Token, true
	case "api_host":
		return c.APIHost, true
	case "verbose":
		return c.Verbose, true
	case "save_referrer":
		return c.SaveReferrer, true
	case "truncate_limit":
		return c.TruncateLimit, true
	case "http_timeout":
		return c.HTTPTimeout, true
	case "store.backend":
		return c.Store.Backend, true
	case "store.path":
		return c.Store.Path, true
	default:
		return nil, false
	}
}
