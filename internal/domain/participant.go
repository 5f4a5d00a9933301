package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/hilthontt/convoy/internal/infrastructure/validate"
)

const (
	maxNameLength    = 24
	maxCarTypeLength = 16
	maxColorLength   = 20

	defaultCarType = "car"
	defaultColor   = "#65B832"
)

// Profile is what a participant declares when joining.
type Profile struct {
	Name    string
	CarType string
	Color   string
}

type Participant struct {
	ID       string
	Name     string
	CarType  string
	Color    string
	Lat      *float64
	Lon      *float64
	SpeedKmh *float64
	Heading  *float64
	TS       int64
}

// ParticipantView carries the public fields of a participant.
type ParticipantView struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	CarType  string   `json:"carType"`
	Color    string   `json:"color"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	SpeedKmh *float64 `json:"speedKmh"`
	Heading  *float64 `json:"heading"`
	TS       int64    `json:"ts"`
}

// NewProfile validates and normalises a join request.
func NewProfile(name, carType, color string) (Profile, error) {
	name = strings.TrimSpace(name)
	if err := validate.Field("name", validate.Required())(name); err != nil {
		return Profile{}, &ValidationError{Field: "name", Err: err}
	}

	carType = strings.TrimSpace(carType)
	if carType == "" {
		carType = defaultCarType
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = defaultColor
	}

	return Profile{
		Name:    Truncate(name, maxNameLength),
		CarType: Truncate(carType, maxCarTypeLength),
		Color:   Truncate(color, maxColorLength),
	}, nil
}

func NewParticipant(id string, profile Profile, ts int64) *Participant {
	return &Participant{
		ID:      id,
		Name:    profile.Name,
		CarType: profile.CarType,
		Color:   profile.Color,
		TS:      ts,
	}
}

func (p *Participant) HasFix() bool {
	return p.Lat != nil && p.Lon != nil
}

// ApplyFix overwrites the position fields in place. Lat and lon are set
// together so they are never half-populated.
func (p *Participant) ApplyFix(fix Fix) {
	lat, lon := fix.Lat, fix.Lon
	p.Lat = &lat
	p.Lon = &lon
	p.SpeedKmh = copyFloat(fix.SpeedKmh)
	p.Heading = copyFloat(fix.Heading)
	p.TS = fix.TS
}

func (p *Participant) View() ParticipantView {
	return ParticipantView{
		ID:       p.ID,
		Name:     p.Name,
		CarType:  p.CarType,
		Color:    p.Color,
		Lat:      copyFloat(p.Lat),
		Lon:      copyFloat(p.Lon),
		SpeedKmh: copyFloat(p.SpeedKmh),
		Heading:  copyFloat(p.Heading),
		TS:       p.TS,
	}
}

func (v ParticipantView) HasFix() bool {
	return v.Lat != nil && v.Lon != nil
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
