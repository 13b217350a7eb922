package saveecobot

import (
	"slices"
)

// Filter selects stations. Every non-empty criterion must match.
type Filter struct {
	StationIDs   []string
	CityNames    []string
	StationNames []string
}

// IsEmpty reports whether the filter imposes no constraint.
func (f Filter) IsEmpty() bool {
	return len(f.StationIDs) == 0 && len(f.CityNames) == 0 && len(f.StationNames) == 0
}

func (f Filter) matches(st Station) bool {
	if len(f.StationIDs) > 0 && !slices.Contains(f.StationIDs, st.ID) {
		return false
	}
	if len(f.CityNames) > 0 && !slices.Contains(f.CityNames, st.CityName) {
		return false
	}
	if len(f.StationNames) > 0 && !slices.Contains(f.StationNames, st.StationName) {
		return false
	}
	return true
}

// FilterStations returns deep copies of the stations matching f, in input order.
func FilterStations(stations []Station, f Filter) []Station {
	out := make([]Station, 0, len(stations))
	for _, st := range stations {
		if f.matches(st) {
			out = append(out, st.Clone())
		}
	}
	return out
}

// Cities returns the distinct city names, sorted.
func Cities(stations []Station) []string {
	seen := make(map[string]struct{}, len(stations))
	cities := make([]string, 0)
	for _, st := range stations {
		if _, ok := seen[st.CityName]; ok {
			continue
		}
		seen[st.CityName] = struct{}{}
		cities = append(cities, st.CityName)
	}
	slices.Sort(cities)
	return cities
}

// CityStations lists the stations of a city. Unknown cities yield an empty list.
func CityStations(stations []Station, city string) []StationRef {
	refs := make([]StationRef, 0)
	for _, st := range stations {
		if st.CityName == city {
			refs = append(refs, StationRef{ID: st.ID, Name: st.StationName})
		}
	}
	return refs
}

// FindSensor projects the first pollutant of kind on the first station with stationID.
func FindSensor(stations []Station, stationID string, kind Kind) (SensorRecord, bool) {
	for _, st := range stations {
		if st.ID != stationID {
			continue
		}
		for _, p := range st.Pollutants {
			if p.Kind == kind {
				return projectPollutant(st, p), true
			}
		}
		return SensorRecord{}, false
	}
	return SensorRecord{}, false
}
