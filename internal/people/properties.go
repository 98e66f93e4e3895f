package people

import (
	"net/url"
	"runtime"

	"github.com/roach88/profilesync/internal/model"
)

// Library identification sent with every SET.
const (
	LibraryName    = "profilesync-go"
	LibraryVersion = "0.1.0"
)

// DefaultProperties returns the properties merged beneath every SET.
func DefaultProperties() model.Object {
	return model.Object{
		"$lib":         model.String(LibraryName),
		"$lib_version": model.String(LibraryVersion),
		"$os":          model.String(runtime.GOOS),
	}
}

// ReferrerSource supplies initial referrer properties for SET when
// save_referrer is enabled. It returns nil when nothing is known.
type ReferrerSource func() model.Object

// StaticReferrer reports a fixed initial referrer. An empty referrer is
// reported as "$direct", matching how the profile API labels direct visits.
func StaticReferrer(referrer string) ReferrerSource {
	info := model.Object{
		"$initial_referrer":         model.String("$direct"),
		"$initial_referring_domain": model.String("$direct"),
	}
	if referrer != "" {
		info["$initial_referrer"] = model.String(referrer)
		if u, err := url.Parse(referrer); err == nil && u.Host != "" {
			info["$initial_referring_domain"] = model.String(u.Hostname())
		}
	}
	return func() model.Object {
		return info.Clone()
	}
}

// ConsentGuard reports whether the user has opted out of tracking.
type ConsentGuard func() bool

// underlay returns base overlaid with top: keys in top win.
func underlay(top, base model.Object) model.Object {
	out := make(model.Object, len(base)+len(top))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		out[k] = v
	}
	return out
}
