package models

// Sensor is the current state of a registered sensor entity.
type Sensor struct {
	UniqueID    string                 `json:"uniqueId"`
	Name        string                 `json:"name"`
	StationID   string                 `json:"stationId"`
	Kind        string                 `json:"kind"`
	Available   bool                   `json:"available"`
	State       *float64               `json:"state"`
	Unit        string                 `json:"unit"`
	DeviceClass string                 `json:"deviceClass"`
	StateClass  string                 `json:"stateClass"`
	Attributes  map[string]interface{} `json:"attributes"`
}

// SensorList is a collection of sensors.
type SensorList struct {
	Items []Sensor `json:"items"`
	Meta  ListMeta `json:"meta"`
}
