package operations

import (
	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/exporter"
)

// ParameterDefinition defines a parameter for a tool
type ParameterDefinition struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // string, number, boolean, file
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolInfo describes one tool of the catalogue.
type ToolInfo struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Inputs       int                   `json:"inputs"`
	OutputFolder string                `json:"output_folder"`
	Parameters   []ParameterDefinition `json:"parameters"`
}

var catalog = []ToolInfo{
	{
		ID:           ToolTMY,
		Title:        "TMY file analysis",
		Description:  "Analysis and report generation from a TMY weather file (PVSyst or Solargis format). Statistics, data quality and annual irradiation.",
		Inputs:       1,
		OutputFolder: exporter.ToolTMY,
		Parameters: []ParameterDefinition{
			{Name: "file", Type: "file", Description: "TMY file", Required: true},
		},
	},
	{
		ID:           ToolTMYCompare,
		Title:        "TMY Comparison",
		Description:  "Compare two TMY files (GHI/DNI/DHI/Temp) on a common hourly step (60 min) and analyze differences.",
		Inputs:       2,
		OutputFolder: exporter.ToolTMYCompare,
		Parameters: []ParameterDefinition{
			{Name: "file_a", Type: "file", Description: "Reference TMY file (A)", Required: true},
			{Name: "file_b", Type: "file", Description: "TMY file compared against A (B)", Required: true},
		},
	},
	{
		ID:           ToolHourly,
		Title:        "Hourly Results Analysis (PVSyst)",
		Description:  "Analyze a PVSyst hourly export and generate summaries + reports (Excel/PDF).",
		Inputs:       1,
		OutputFolder: exporter.ToolHourly,
		Parameters: []ParameterDefinition{
			{Name: "file", Type: "file", Description: "PVSyst Hourly Results export (CSV)", Required: true},
			{Name: "threshold_value", Type: "number", Description: "Threshold in the unit of the threshold column", Required: false, Default: 0},
			{Name: "threshold_column", Type: "string", Description: "Column compared against the threshold", Default: "E_Grid"},
			{Name: "night_disconnection", Type: "boolean", Description: "Clamp negative values to 0 for threshold and distribution studies", Default: true},
			{Name: "grid_capacity_kw", Type: "number", Description: "Grid injection capacity in kW for load factor studies"},
		},
	},
}

// Tools returns the tool catalogue.
func Tools() []ToolInfo {
	out := make([]ToolInfo, len(catalog))
	copy(out, catalog)
	return out
}

// LookupTool returns the catalogue entry of a tool id.
func LookupTool(id string) (ToolInfo, error) {
	for _, t := range catalog {
		if t.ID == id {
			return t, nil
		}
	}
	return ToolInfo{}, apperrors.NewNotFoundError("tool " + id)
}
