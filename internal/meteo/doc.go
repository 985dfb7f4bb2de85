// Package meteo analyses Typical Meteorological Year datasets: descriptive
// statistics, annual irradiation, GHI class distribution and the comparison
// of two TMY files on a common hourly basis.
//
// The package computes results only. Reports and run logs are written by
// the exporter package.
package meteo
