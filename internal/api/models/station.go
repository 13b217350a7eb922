package models

import (
	"github.com/saveecobot/ecosensor/internal/saveecobot"
)

// Station is a monitoring station with its latest readings.
type Station struct {
	ID          string      `json:"id"`
	CityName    string      `json:"cityName"`
	StationName string      `json:"stationName"`
	LocalName   string      `json:"localName"`
	Timezone    string      `json:"timezone"`
	Point       Point       `json:"point"`
	Pollutants  []Pollutant `json:"pollutants"`
}

// Pollutant is one reading of a station.
type Pollutant struct {
	Kind       string     `json:"kind"`
	Label      string     `json:"label"`
	Unit       string     `json:"unit"`
	Value      *float64   `json:"value"`
	ObservedAt *Timestamp `json:"observedAt"`
	Averaging  string     `json:"averaging"`
}

// StationList is a collection of stations.
type StationList struct {
	Items []Station `json:"items"`
	Meta  ListMeta  `json:"meta"`
}

// CityList is the sorted list of cities with at least one station.
type CityList struct {
	Items []string `json:"items"`
	Meta  ListMeta `json:"meta"`
}

// CityStations lists the station refs of one city.
type CityStations struct {
	City  string                  `json:"city"`
	Items []saveecobot.StationRef `json:"items"`
	Meta  ListMeta                `json:"meta"`
}

// NewStation converts a domain station.
func NewStation(st saveecobot.Station) Station {
	pollutants := make([]Pollutant, 0, len(st.Pollutants))
	for _, p := range st.Pollutants {
		var observedAt *Timestamp
		if p.ObservedAt != nil {
			observedAt = NewTimestamp(*p.ObservedAt)
		}
		pollutants = append(pollutants, Pollutant{
			Kind:       p.Kind.Name(),
			Label:      p.Kind.Label(),
			Unit:       p.CanonicalUnit(),
			Value:      p.Value,
			ObservedAt: observedAt,
			Averaging:  p.Averaging,
		})
	}

	return Station{
		ID:          st.ID,
		CityName:    st.CityName,
		StationName: st.StationName,
		LocalName:   st.LocalName,
		Timezone:    st.Timezone,
		Point:       Point{Lat: st.Latitude, Lon: st.Longitude},
		Pollutants:  pollutants,
	}
}

// NewStationList converts a list of domain stations.
func NewStationList(stations []saveecobot.Station) StationList {
	items := make([]Station, 0, len(stations))
	for _, st := range stations {
		items = append(items, NewStation(st))
	}
	return StationList{Items: items, Meta: ListMeta{Count: len(items)}}
}
