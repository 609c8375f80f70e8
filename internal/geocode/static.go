package geocode

import "leadrouter_backend/internal/geo"

// StaticTable is an injected ZIP-to-coordinate lookup used when the
// external provider is down or has no answer. Tests substitute their own
// fixtures instead of relying on process-wide state.
type StaticTable struct {
	entries map[string]geo.Coordinates
}

// NewStaticTable builds a table from the given entries. Pass nil to get
// the built-in default covering major metro ZIP codes.
func NewStaticTable(entries map[string]geo.Coordinates) *StaticTable {
	if entries == nil {
		entries = defaultZipTable()
	}
	return &StaticTable{entries: entries}
}

// Lookup returns the coordinates for a 5-digit ZIP, if present.
func (t *StaticTable) Lookup(zip string) (geo.Coordinates, bool) {
	c, ok := t.entries[zip]
	return c, ok
}

func defaultZipTable() map[string]geo.Coordinates {
	return map[string]geo.Coordinates{
		"10001": {Latitude: 40.7505, Longitude: -73.9934}, // New York, NY
		"02108": {Latitude: 42.3571, Longitude: -71.0639}, // Boston, MA
		"19103": {Latitude: 39.9526, Longitude: -75.1652}, // Philadelphia, PA
		"20001": {Latitude: 38.9109, Longitude: -77.0163}, // Washington, DC
		"30303": {Latitude: 33.7537, Longitude: -84.3901}, // Atlanta, GA
		"33101": {Latitude: 25.7743, Longitude: -80.1937}, // Miami, FL
		"37201": {Latitude: 36.1659, Longitude: -86.7844}, // Nashville, TN
		"44113": {Latitude: 41.4846, Longitude: -81.6946}, // Cleveland, OH
		"48226": {Latitude: 42.3316, Longitude: -83.0466}, // Detroit, MI
		"55401": {Latitude: 44.9833, Longitude: -93.2680}, // Minneapolis, MN
		"60601": {Latitude: 41.8853, Longitude: -87.6216}, // Chicago, IL
		"63101": {Latitude: 38.6319, Longitude: -90.1923}, // St. Louis, MO
		"73102": {Latitude: 35.4706, Longitude: -97.5195}, // Oklahoma City, OK
		"75201": {Latitude: 32.7876, Longitude: -96.7994}, // Dallas, TX
		"77002": {Latitude: 29.7589, Longitude: -95.3657}, // Houston, TX
		"80202": {Latitude: 39.7491, Longitude: -104.9940}, // Denver, CO
		"85004": {Latitude: 33.4513, Longitude: -112.0706}, // Phoenix, AZ
		"90012": {Latitude: 34.0614, Longitude: -118.2385}, // Los Angeles, CA
		"94103": {Latitude: 37.7725, Longitude: -122.4147}, // San Francisco, CA
		"98101": {Latitude: 47.6101, Longitude: -122.3344}, // Seattle, WA
	}
}
