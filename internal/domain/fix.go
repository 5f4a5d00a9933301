package domain

import (
	"errors"
	"fmt"
	"math"
)

const (
	sentinelTolerance = 0.001
	maxAccuracyMeters = 5000
)

var (
	ErrBadFix               = errors.New("bad fix")
	ErrNonFiniteCoordinates = fmt.Errorf("%w: non-finite coordinates", ErrBadFix)
	ErrSentinelFix          = fmt.Errorf("%w: sentinel coordinates near (0,0)", ErrBadFix)
	ErrInaccurateFix        = fmt.Errorf("%w: accuracy exceeds %d m", ErrBadFix, maxAccuracyMeters)
)

// Fix is a single GPS reading reported by a participant.
type Fix struct {
	Lat      float64
	Lon      float64
	SpeedKmh *float64
	Heading  *float64
	Accuracy *float64
	TS       int64
}

// Validate is the fix-quality gate every position update passes before it
// reaches the registry.
func (f Fix) Validate() error {
	if !isFinite(f.Lat) || !isFinite(f.Lon) {
		return ErrNonFiniteCoordinates
	}
	if math.Abs(f.Lat) < sentinelTolerance && math.Abs(f.Lon) < sentinelTolerance {
		return ErrSentinelFix
	}
	if f.Accuracy != nil && *f.Accuracy > maxAccuracyMeters {
		return ErrInaccurateFix
	}
	return nil
}

// Sanitized drops optional readings that are not finite numbers.
func (f Fix) Sanitized() Fix {
	if f.SpeedKmh != nil && !isFinite(*f.SpeedKmh) {
		f.SpeedKmh = nil
	}
	if f.Heading != nil && !isFinite(*f.Heading) {
		f.Heading = nil
	}
	return f
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
