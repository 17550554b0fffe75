package models

type Marker struct {
	Name      string  `json:"marker" yaml:"marker"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

type RegistryFile struct {
	Markers []Marker `json:"markers" yaml:"markers"`
}

// Observation is one timestamp read from a log line. Micros is the raw
// value in microseconds.
type Observation struct {
	Marker string `json:"marker"`
	Micros uint64 `json:"micros"`
}

// MarkerAverage is the reduced bucket of a registry marker. Average is nil
// when the marker was never observed.
type MarkerAverage struct {
	Marker  Marker
	Average *int64
	Count   int64
}
