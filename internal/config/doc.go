// Package config provides centralized configuration for PVInsight.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. A YAML configuration file (config.yaml or configs/config.yaml)
//  3. Default values from struct tags (lowest priority)
//
// # Environment Variables
//
// All environment variables use the PVI_ prefix followed by the section:
//
//	PVI_SERVER_PORT=8080
//	PVI_PATHS_OUTPUTS_DIR=/data/outputs
//	PVI_ANALYSIS_THRESHOLD_COLUMN=E_Grid
//	PVI_KAFKA_ENABLED=true
//
// # Output Layout
//
// Every tool writes into its own directory with figures, reports and logs
// sub-directories:
//
//	outputs/latest/{tool}/{figures,reports,logs}
//
// Paths.ToolDirs creates and returns those directories.
package config
