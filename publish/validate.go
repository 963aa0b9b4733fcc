package publish

import (
	"errors"

	"github.com/go-ble/meshaccess/composition"
)

// Validation bounds for the fields a configuration client sets on a
// publication record (§3 "Publication state"). Modeled on
// cs104.Config.Valid()'s range-check shape.
const (
	TTLMax       = 127 // 0x7F is the maximum mesh TTL; 0xFF means "use default"
	PeriodDivMax = 15
)

var (
	// ErrInvalidTTL reports a TTL outside [0,127] (0xFF "default" is
	// resolved by the caller before Valid runs, not accepted here).
	ErrInvalidTTL = errors.New("publish: ttl not in [0, 127]")
	// ErrInvalidPeriodDiv reports a fast-period divisor outside [0,15].
	ErrInvalidPeriodDiv = errors.New("publish: period divisor not in [0, 15]")
)

// Valid range-checks the fields a config client is allowed to set on
// p, mutating nothing. Unlike cs104.Config.Valid() there is no
// zero-means-default substitution here: a publication's zero period
// genuinely means "never schedules" (§8), so 0 is a valid value, not a
// placeholder for one.
func Valid(p *composition.PublicationState) error {
	if p == nil {
		return composition.ErrInvalidArgument
	}
	if p.TTL > TTLMax {
		return ErrInvalidTTL
	}
	if p.PeriodDiv > PeriodDivMax {
		return ErrInvalidPeriodDiv
	}
	return nil
}
