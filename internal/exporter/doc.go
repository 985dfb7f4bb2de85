// Package exporter writes the artefacts of a PVInsight run: the hourly
// Excel workbook, HTML reports printed to PDF by a headless browser, run
// logs, JSON result documents, CSV tables and SVG figures.
//
// Exporter ties them together per tool:
//
//	exp := exporter.New(renderer, exporter.Options{TimestampOutputs: true})
//	files, err := exp.ExportHourly(ctx, hourlyContext, runPaths)
//
// Output names follow the tool conventions, for example
// {stem}__TMY_Report__{ts}.pdf or hourly_results_analysis_{ts}.xlsx.
package exporter
