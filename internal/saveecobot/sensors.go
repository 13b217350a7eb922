package saveecobot

import (
	"strings"
)

// UpdatedAtLayout is the display format of a reading's observation time.
const UpdatedAtLayout = "02.01.2006, 15:04:05"

// SensorRecord is one independently addressable reading of a station.
type SensorRecord struct {
	Name       string     `json:"name"`
	UniqueID   string     `json:"unique_id"`
	StationID  string     `json:"station_id"`
	Kind       Kind       `json:"-"`
	State      *float64   `json:"state"`
	Attributes Attributes `json:"attributes"`

	// Stale is set when the station or kind is no longer present upstream.
	Stale bool `json:"stale"`
}

// Attributes are the denormalized station fields carried by each sensor.
type Attributes struct {
	City              string  `json:"city"`
	Address           string  `json:"address"`
	LocalName         string  `json:"local_name"`
	Timezone          string  `json:"timezone"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	UpdatedAt         *string `json:"updated_at"`
	UnitOfMeasurement string  `json:"unit_of_measurement"`
	Averaging         string  `json:"averaging"`
}

// Project expands a station into one sensor record per pollutant, in order.
func Project(st Station) []SensorRecord {
	records := make([]SensorRecord, 0, len(st.Pollutants))
	for _, p := range st.Pollutants {
		records = append(records, projectPollutant(st, p))
	}
	return records
}

// SensorUniqueID returns the identity of the sensor for a station and kind.
func SensorUniqueID(st Station, kind Kind) string {
	return st.Slug() + "_" + strings.ToLower(kind.Name())
}

func projectPollutant(st Station, p Pollutant) SensorRecord {
	var updatedAt *string
	if p.ObservedAt != nil {
		s := p.ObservedAt.Format(UpdatedAtLayout)
		updatedAt = &s
	}

	var state *float64
	if p.Value != nil {
		v := *p.Value
		state = &v
	}

	return SensorRecord{
		Name:      p.Kind.Name() + " (" + st.CityName + ", " + st.StationName + ")",
		UniqueID:  SensorUniqueID(st, p.Kind),
		StationID: st.ID,
		Kind:      p.Kind,
		State:     state,
		Attributes: Attributes{
			City:              st.CityName,
			Address:           st.StationName,
			LocalName:         st.LocalName,
			Timezone:          st.Timezone,
			Latitude:          st.Latitude,
			Longitude:         st.Longitude,
			UpdatedAt:         updatedAt,
			UnitOfMeasurement: p.CanonicalUnit(),
			Averaging:         p.Averaging,
		},
	}
}
