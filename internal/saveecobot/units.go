package saveecobot

// Canonical display units.
const (
	UnitMilligramsPerCubicMeter = "mg/m³"
	UnitCelsius                 = "°C"
	UnitPercentage              = "%"
	UnitHectopascal             = "hPa"
)

// The API occasionally spells Celsius as "Celcius".
var unitAliases = map[string]string{
	"mg/m3":   UnitMilligramsPerCubicMeter,
	"Celcius": UnitCelsius,
	"Celsius": UnitCelsius,
	"%":       UnitPercentage,
	"hPa":     UnitHectopascal,
}

// CanonicalUnit maps an upstream unit string to its display unit.
// Unknown units are returned unchanged.
func CanonicalUnit(raw string) string {
	if u, ok := unitAliases[raw]; ok {
		return u
	}
	return raw
}
