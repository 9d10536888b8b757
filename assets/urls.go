// Package assets resolves URLs for competition resources extracted under the
// local files directory and provides the small formatting helpers scoreboard
// consumers share.
package assets

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Extensions probed for resource files, in preference order.
var probeExtensions = []string{"svg", "png", "jpg", "jpeg", "gif", "webp"}

// Resolver probes the local files directory and builds consumer-facing URLs.
type Resolver struct {
	// Dir is the local files directory root.
	Dir string
	// URLPrefix is prepended to resolved resource paths.
	URLPrefix string
}

// probe looks for <name>.<ext> under the subdirectory, trying the exact name
// first and then its uppercase form, and returns the URL of the first hit.
func (r Resolver) probe(subdir, name string) string {
	if name == "" {
		return ""
	}
	for _, candidate := range []string{name, strings.ToUpper(name)} {
		for _, ext := range probeExtensions {
			file := candidate + "." + ext
			if _, err := os.Stat(filepath.Join(r.Dir, subdir, file)); err == nil {
				return path.Join(r.URLPrefix, subdir, file)
			}
		}
		if candidate == strings.ToUpper(name) {
			break
		}
	}
	return ""
}

// FlagURL returns the flag image URL for a team, or "" when none exists.
func (r Resolver) FlagURL(teamName string) string {
	return r.probe("flags", teamName)
}

// LogoURL returns the club or federation logo URL for a team.
func (r Resolver) LogoURL(teamName string) string {
	return r.probe("logos", teamName)
}

// PictureURL returns the athlete portrait URL keyed by athlete id.
func (r Resolver) PictureURL(athleteID string) string {
	return r.probe("pictures", athleteID)
}

// HeaderLogoURL returns the first event header image found among the given
// base names.
func (r Resolver) HeaderLogoURL(baseNames []string) string {
	for _, name := range baseNames {
		if url := r.probe("logos", name); url != "" {
			return url
		}
	}
	return ""
}
