package people

import (
	"github.com/roach88/profilesync/internal/model"
	"github.com/roach88/profilesync/internal/transport"
)

// ConfigSource is a named-value lookup (implemented by config.Config).
type ConfigSource interface {
	Get(name string) (any, bool)
}

// Settings are the configuration values the dispatcher reads.
type Settings struct {
	Token         string
	APIHost       string
	Verbose       bool
	SaveReferrer  bool
	TruncateLimit int
}

// SettingsFrom reads Settings from src. Missing or mistyped names keep
// their zero value; a non-positive truncate limit becomes the default.
func SettingsFrom(src ConfigSource) Settings {
	var s Settings
	s.Token = lookup[string](src, "token")
	s.APIHost = lookup[string](src, "api_host")
	s.Verbose = lookup[bool](src, "verbose")
	s.SaveReferrer = lookup[bool](src, "save_referrer")
	s.TruncateLimit = lookup[int](src, "truncate_limit")
	return s.normalize()
}

func lookup[T any](src ConfigSource, name string) T {
	var zero T
	v, ok := src.Get(name)
	if !ok {
		return zero
	}
	t, ok := v.(T)
	if !ok {
		return zero
	}
	return t
}

func (s Settings) normalize() Settings {
	if s.TruncateLimit <= 0 {
		s.TruncateLimit = model.DefaultTruncateLimit
	}
	return s
}

// Endpoint returns the engage URL for these settings.
func (s Settings) Endpoint() string {
	return transport.Endpoint(s.APIHost, s.Verbose)
}
