package platform

import (
	"fmt"
	"strconv"
	"strings"
)

// Quality is a Qobuz stream format identifier. The set is closed: any value
// outside the constants below is rejected before touching the network.
type Quality int

const (
	// QualityMP3 is MP3 at 320 kbps.
	QualityMP3 Quality = 5

	// QualityLossless is FLAC at 16 bit / 44.1 kHz (CD).
	QualityLossless Quality = 6

	// QualityHiRes96 is FLAC at 24 bit up to 96 kHz.
	QualityHiRes96 Quality = 7

	// QualityHiRes192 is FLAC at 24 bit up to 192 kHz.
	QualityHiRes192 Quality = 27
)

// DefaultQuality is used when nothing is configured.
const DefaultQuality = QualityLossless

// Qualities lists the supported formats from lowest to highest.
func Qualities() []Quality {
	return []Quality{QualityMP3, QualityLossless, QualityHiRes96, QualityHiRes192}
}

// Valid reports whether q is one of the supported formats.
func (q Quality) Valid() bool {
	switch q {
	case QualityMP3, QualityLossless, QualityHiRes96, QualityHiRes192:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Quality enum.
func (q Quality) String() string {
	switch q {
	case QualityMP3:
		return "mp3-320"
	case QualityLossless:
		return "flac-16-44.1"
	case QualityHiRes96:
		return "flac-24-96"
	case QualityHiRes192:
		return "flac-24-192"
	default:
		return "unknown(" + strconv.Itoa(int(q)) + ")"
	}
}

// FormatID returns the numeric identifier sent as format_id.
func (q Quality) FormatID() string {
	return strconv.Itoa(int(q))
}

// ParseQuality accepts either the numeric format id or the String form.
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		q := Quality(n)
		if !q.Valid() {
			return 0, fmt.Errorf("%w: format id %d", ErrInvalidQuality, n)
		}
		return q, nil
	}
	for _, q := range Qualities() {
		if q.String() == s {
			return q, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown quality level %q", ErrInvalidQuality, s)
}
