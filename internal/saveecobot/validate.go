package saveecobot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ValidationError describes why an upstream station entry was rejected.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid station: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Rejection records an entry dropped during parsing.
type Rejection struct {
	Index   int
	Payload json.RawMessage
	Err     error
}

// timestampLayouts are tried in order for string timestamps.
// Timestamps without a zone are read as UTC.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseStations validates every entry independently.
// Valid stations keep their input order; invalid ones are reported as rejections.
func ParseStations(entries []json.RawMessage) ([]Station, []Rejection) {
	stations := make([]Station, 0, len(entries))
	var rejects []Rejection
	for i, raw := range entries {
		st, err := ParseStation(raw)
		if err != nil {
			rejects = append(rejects, Rejection{Index: i, Payload: raw, Err: err})
			continue
		}
		stations = append(stations, st)
	}
	return stations, rejects
}

// ParseStation validates a single upstream station object.
// It returns either a complete Station or a *ValidationError.
func ParseStation(raw json.RawMessage) (Station, error) {
	obj, err := decodeObject(raw, "")
	if err != nil {
		return Station{}, err
	}

	var st Station
	if st.ID, err = obj.str("id"); err != nil {
		return Station{}, err
	}
	if st.ID == "" {
		return Station{}, &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if st.CityName, err = obj.str("cityName"); err != nil {
		return Station{}, err
	}
	if st.StationName, err = obj.str("stationName"); err != nil {
		return Station{}, err
	}
	if st.LocalName, err = obj.str("localName"); err != nil {
		return Station{}, err
	}
	if st.Timezone, err = obj.str("timezone"); err != nil {
		return Station{}, err
	}
	if st.Latitude, err = obj.float("latitude"); err != nil {
		return Station{}, err
	}
	if st.Longitude, err = obj.float("longitude"); err != nil {
		return Station{}, err
	}

	rawPollutants, ok := obj.fields["pollutants"]
	if !ok || isNull(rawPollutants) {
		return Station{}, &ValidationError{Field: "pollutants", Reason: "field required"}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawPollutants, &items); err != nil {
		return Station{}, &ValidationError{Field: "pollutants", Reason: "must be an array", Err: err}
	}

	st.Pollutants = make([]Pollutant, 0, len(items))
	for i, item := range items {
		p, err := parsePollutant(item, fmt.Sprintf("pollutants[%d]", i))
		if err != nil {
			return Station{}, err
		}
		st.Pollutants = append(st.Pollutants, p)
	}
	return st, nil
}

func parsePollutant(raw json.RawMessage, prefix string) (Pollutant, error) {
	obj, err := decodeObject(raw, prefix)
	if err != nil {
		return Pollutant{}, err
	}
	obj.prefix = prefix

	var p Pollutant
	label, err := obj.str("pol")
	if err != nil {
		return Pollutant{}, err
	}
	if p.Kind, err = ParseKind(label); err != nil {
		return Pollutant{}, &ValidationError{Field: prefix + ".pol", Reason: strconv.Quote(label) + " is not a supported pollutant", Err: err}
	}
	if p.RawUnit, err = obj.str("unit"); err != nil {
		return Pollutant{}, err
	}
	if p.ObservedAt, err = obj.optTime("time"); err != nil {
		return Pollutant{}, err
	}
	if p.Value, err = obj.optFloat("value"); err != nil {
		return Pollutant{}, err
	}
	if p.Averaging, err = obj.str("averaging"); err != nil {
		return Pollutant{}, err
	}
	return p, nil
}

type object struct {
	fields map[string]json.RawMessage
	prefix string
}

func decodeObject(raw json.RawMessage, field string) (object, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return object{}, &ValidationError{Field: field, Reason: "must be an object", Err: err}
	}
	return object{fields: fields}, nil
}

func (o object) name(field string) string {
	if o.prefix == "" {
		return field
	}
	return o.prefix + "." + field
}

func (o object) required(field string) (json.RawMessage, error) {
	raw, ok := o.fields[field]
	if !ok || isNull(raw) {
		return nil, &ValidationError{Field: o.name(field), Reason: "field required"}
	}
	return raw, nil
}

func (o object) str(field string) (string, error) {
	raw, err := o.required(field)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &ValidationError{Field: o.name(field), Reason: "must be a string", Err: err}
	}
	return s, nil
}

func (o object) float(field string) (float64, error) {
	raw, err := o.required(field)
	if err != nil {
		return 0, err
	}
	f, err := parseNumber(raw)
	if err != nil {
		return 0, &ValidationError{Field: o.name(field), Reason: "must be a number", Err: err}
	}
	return f, nil
}

func (o object) optFloat(field string) (*float64, error) {
	raw, ok := o.fields[field]
	if !ok || isNull(raw) {
		return nil, nil
	}
	f, err := parseNumber(raw)
	if err != nil {
		return nil, &ValidationError{Field: o.name(field), Reason: "must be a number", Err: err}
	}
	return &f, nil
}

func (o object) optTime(field string) (*time.Time, error) {
	raw, ok := o.fields[field]
	if !ok || isNull(raw) {
		return nil, nil
	}
	t, err := parseTimestamp(raw)
	if err != nil {
		return nil, &ValidationError{Field: o.name(field), Reason: "must be a timestamp", Err: err}
	}
	return &t, nil
}

var errNotNumeric = errors.New("not numeric")

// parseNumber accepts JSON numbers and numeric strings.
func parseNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, errNotNumeric
	}
	// ParseFloat also takes hex floats and NaN/Inf, none of which survive JSON encoding.
	if strings.ContainsAny(s, "xXpP_") {
		return 0, errNotNumeric
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumeric
	}
	return f, nil
}

// parseTimestamp accepts unix seconds or one of timestampLayouts.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil {
		whole := int64(secs)
		nanos := int64((secs - float64(whole)) * float64(time.Second))
		return time.Unix(whole, nanos).UTC(), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
