// Package timeseries holds the time-indexed Frame used by every reader and
// analysis, with the helpers around it: timestep inference, energy
// integration by unit, hourly resampling, data quality checks and calendar
// grouping.
package timeseries
