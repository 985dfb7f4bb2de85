// Package production runs the hourly analyses on a PVSyst Hourly Results
// export: global production, threshold, power distribution, inverter
// clipping, grid limitation and load factor.
//
// Analyses are registered in a Registry and run in registration order over
// a shared Context. An analysis whose input columns are missing records an
// unavailable result with column suggestions instead of failing the run.
package production
