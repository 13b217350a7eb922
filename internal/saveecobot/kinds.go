package saveecobot

// StateClassMeasurement marks readings that represent a current measurement.
const StateClassMeasurement = "measurement"

// KindInfo describes how a kind is named and classified.
type KindInfo struct {
	Name        string
	Label       string
	DeviceClass string
	StateClass  string
}

var kindTable = map[Kind]KindInfo{
	KindPM25:        {Name: "PM2_5", Label: "PM2.5", DeviceClass: "pm25", StateClass: StateClassMeasurement},
	KindPM10:        {Name: "PM10", Label: "PM10", DeviceClass: "pm10", StateClass: StateClassMeasurement},
	KindTemperature: {Name: "TEMPERATURE", Label: "Temperature", DeviceClass: "temperature", StateClass: StateClassMeasurement},
	KindHumidity:    {Name: "HUMIDITY", Label: "Humidity", DeviceClass: "humidity", StateClass: StateClassMeasurement},
	KindPressure:    {Name: "PRESSURE", Label: "Pressure", DeviceClass: "pressure", StateClass: StateClassMeasurement},
	KindAQI:         {Name: "AQI", Label: "Air Quality Index", DeviceClass: "aqi", StateClass: StateClassMeasurement},
}

// Info returns the classification metadata for the kind.
// The zero KindInfo is returned for unknown kinds.
func (k Kind) Info() KindInfo {
	return kindTable[k]
}
