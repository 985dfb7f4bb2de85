// Package batch runs many tool requests described by an HCL manifest.
//
//	output_dir  = "outputs"
//	parallelism = 2
//
//	hourly "site_a" {
//	  file             = "a.csv"
//	  threshold_value  = 500
//	  grid_capacity_kw = 800
//	}
//	tmy "meteo" { file = "tmy.csv" }
//	compare "ab" {
//	  file_a = "a.csv"
//	  file_b = "b.csv"
//	}
//
// Paths are relative to the manifest. Hourly blocks may also set
// threshold_column and night_disconnection; unset options fall back to the
// analysis configuration.
package batch
