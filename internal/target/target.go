// Package target defines the Target configuration tuple and the slug
// rules used to derive its id from its label.
package target

import (
	"fmt"
	"strings"

	"github.com/conneroisu/netpulse/internal/perr"
)

const (
	// MaxTargets is the most targets a single configuration may name.
	MaxTargets = 10

	// MaxIDLen is the longest an id may be, excluding the implicit
	// string terminator the source format reserves a byte for.
	MaxIDLen = 63

	// MaxLabelLen mirrors the source's 64-byte label buffer.
	MaxLabelLen = 63

	// MaxHostLen mirrors the source's 256-byte host buffer.
	MaxHostLen = 255
)

// Target is an immutable probe destination. Construct with New so id is
// always derived consistently from label.
type Target struct {
	ID      string
	Host    string
	Port    uint16
	Label   string
	Enabled bool
}

// New validates host, port and label and returns a Target with ID
// slugified from label. The Target is enabled by default; callers
// disable it explicitly.
func New(host string, port uint16, label string) (Target, error) {
	if host == "" || len(host) > MaxHostLen {
		return Target{}, fmt.Errorf("%w: host %q", perr.ErrInvalidTarget, host)
	}
	if port == 0 {
		return Target{}, fmt.Errorf("%w: port must be nonzero", perr.ErrInvalidTarget)
	}
	if len(label) > MaxLabelLen {
		label = label[:MaxLabelLen]
	}

	id := Slugify(label)
	if id == "" {
		return Target{}, fmt.Errorf("%w: label %q slugifies to empty id", perr.ErrInvalidTarget, label)
	}

	return Target{ID: id, Host: host, Port: port, Label: label, Enabled: true}, nil
}

// Slugify lowercases s, keeps ASCII alphanumerics, collapses runs of
// space/hyphen/underscore into a single hyphen, strips leading and
// trailing hyphens, and truncates to MaxIDLen characters. It is
// idempotent: Slugify(Slugify(x)) == Slugify(x) whenever the result is
// non-empty.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	runOfSep := false
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r - 'A' + 'a')
			runOfSep = false
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			runOfSep = false
		case r == ' ', r == '-', r == '_':
			if !runOfSep {
				b.WriteByte('-')
				runOfSep = true
			}
		default:
			// Non-ASCII and punctuation (e.g. em-dash) are dropped
			// entirely, not treated as separators.
		}
	}

	out := strings.Trim(b.String(), "-")
	if len(out) > MaxIDLen {
		out = strings.TrimRight(out[:MaxIDLen], "-")
	}
	return out
}

// ValidateSet checks a slice of Targets for the configuration-level
// invariants: at most MaxTargets entries and unique ids.
func ValidateSet(targets []Target) error {
	if len(targets) > MaxTargets {
		return fmt.Errorf("%w: %d targets, max %d", perr.ErrTooManyTargets, len(targets), MaxTargets)
	}

	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: %q", perr.ErrDuplicateTarget, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
