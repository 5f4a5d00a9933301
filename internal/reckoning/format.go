package reckoning

import (
	"fmt"
	"math"
	"time"
)

const placeholder = "-"

// FormatDuration renders seconds as "<m> min" below an hour and "<h>h <m>m"
// above, rounding to whole minutes.
func FormatDuration(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return placeholder
	}

	totalMin := int(math.Round(seconds / 60))
	h, m := totalMin/60, totalMin%60
	if h <= 0 {
		return fmt.Sprintf("%d min", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// FormatKm renders meters as kilometers with one decimal.
func FormatKm(meters float64) string {
	if math.IsNaN(meters) || math.IsInf(meters, 0) {
		return placeholder
	}
	return fmt.Sprintf("%.1f", meters/1000)
}

func ETAText(durationS, distanceM float64) string {
	return fmt.Sprintf("~ %s · %s km", FormatDuration(durationS), FormatKm(distanceM))
}

// TimeAgo describes how long ago ts was, relative to now.
func TimeAgo(now, ts time.Time) string {
	s := int(now.Sub(ts) / time.Second)
	if s < 0 {
		s = 0
	}

	switch {
	case s < 10:
		return "just now"
	case s < 60:
		return fmt.Sprintf("%ds ago", s)
	}

	m := s / 60
	if m < 60 {
		return fmt.Sprintf("%dm ago", m)
	}
	return fmt.Sprintf("%dh ago", m/60)
}
