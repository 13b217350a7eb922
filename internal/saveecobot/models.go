// Package saveecobot provides SaveEcoBot station data access, normalization and caching.
package saveecobot

import (
	"errors"
	"strings"
	"time"
)

// Client errors.
var (
	// ErrNotReady is returned when the upstream API cannot be reached.
	// Callers should delay and retry.
	ErrNotReady = errors.New("saveecobot api not ready")

	// ErrKindUnknown is returned for pollutant labels outside the supported set.
	ErrKindUnknown = errors.New("unknown pollutant kind")
)

// Kind is a measured quantity reported by a station.
type Kind int

const (
	KindPM25 Kind = iota + 1
	KindPM10
	KindTemperature
	KindHumidity
	KindPressure
	KindAQI
)

// AllKinds lists every supported kind in declaration order.
var AllKinds = []Kind{KindPM25, KindPM10, KindTemperature, KindHumidity, KindPressure, KindAQI}

// ParseKind resolves an upstream pollutant label. Matching is exact.
func ParseKind(label string) (Kind, error) {
	for _, k := range AllKinds {
		if kindTable[k].Label == label {
			return k, nil
		}
	}
	return 0, ErrKindUnknown
}

// Name returns the stable identifier name of the kind, e.g. "PM2_5".
func (k Kind) Name() string {
	if info, ok := kindTable[k]; ok {
		return info.Name
	}
	return ""
}

// Label returns the upstream label of the kind, e.g. "PM2.5".
func (k Kind) Label() string {
	if info, ok := kindTable[k]; ok {
		return info.Label
	}
	return ""
}

func (k Kind) String() string {
	return k.Label()
}

// Pollutant is one reading reported by a station.
type Pollutant struct {
	Kind       Kind
	RawUnit    string
	ObservedAt *time.Time
	Value      *float64
	Averaging  string
}

// CanonicalUnit returns the display unit for the reading.
func (p Pollutant) CanonicalUnit() string {
	return CanonicalUnit(p.RawUnit)
}

// Station is a physical monitoring location.
type Station struct {
	ID          string
	CityName    string
	StationName string
	LocalName   string
	Timezone    string
	Latitude    float64
	Longitude   float64
	Pollutants  []Pollutant
}

// Slug is the namespace used for generated sensor identities.
func (s Station) Slug() string {
	return strings.ToLower(s.ID + "_" + s.CityName)
}

// Clone returns a deep copy of the station.
func (s Station) Clone() Station {
	c := s
	if s.Pollutants != nil {
		c.Pollutants = make([]Pollutant, len(s.Pollutants))
		for i, p := range s.Pollutants {
			if p.ObservedAt != nil {
				t := *p.ObservedAt
				p.ObservedAt = &t
			}
			if p.Value != nil {
				v := *p.Value
				p.Value = &v
			}
			c.Pollutants[i] = p
		}
	}
	return c
}

// StationRef identifies a station by id and display name.
type StationRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
