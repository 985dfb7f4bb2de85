// Package readers parses the text exports PVInsight works from: PVSyst
// Hourly Results, PVSyst TMY files and Solargis TMY files. Every reader
// returns a timeseries.Frame indexed by timestamp; TMY readers additionally
// normalise column names, units and timestep.
package readers
