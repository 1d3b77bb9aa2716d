// Package stream turns Qobuz track ids into short-lived playable URLs.
//
// A Resolver checks an expiry-aware Cache first, then drives a Fetcher
// through a bounded retry state machine and applies playback policy
// (demo rejection, quality fallback logging) before handing out a URL.
package stream

import (
	"fmt"
	"time"

	"github.com/vitiko98/mopidy-qobuz/backend/platform"
)

// FallbackRestriction is the restriction code Qobuz sets when it served a
// lower format than the one requested.
const FallbackRestriction = "FormatRestrictedByFormatAvailability"

// Descriptor is the outcome of one successful signed fetch. It is immutable
// once built and only valid for a short window after IssuedAt.
type Descriptor struct {
	TrackID      string
	URL          string
	Format       platform.Quality
	MimeType     string
	BitDepth     int
	SamplingRate float64
	Duration     int
	Restrictions []string
	// Demo marks 30 second previews served to ineligible accounts.
	Demo bool
	// QualityFallback is set when the served format is below the requested one.
	QualityFallback bool
	IssuedAt        time.Time
}

// Key identifies a cache slot.
type Key struct {
	TrackID string
	Format  platform.Quality
}

func (k Key) String() string {
	return k.TrackID + "/" + k.Format.FormatID()
}

// Key returns the cache key of d.
func (d *Descriptor) Key() Key {
	return Key{TrackID: d.TrackID, Format: d.Format}
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s [%d bit, %.1f kHz, format %s, demo=%t, fallback=%t]",
		d.TrackID, d.BitDepth, d.SamplingRate, d.Format.FormatID(), d.Demo, d.QualityFallback)
}

// HasFallbackRestriction reports whether codes contain the fallback marker.
func HasFallbackRestriction(codes []string) bool {
	for _, code := range codes {
		if code == FallbackRestriction {
			return true
		}
	}
	return false
}
