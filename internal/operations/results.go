package operations

import (
	"fmt"

	"github.com/invopop/jsonschema"

	"pvinsight/internal/exporter"
	"pvinsight/internal/meteo"
	"pvinsight/internal/production"
)

// ResultDocument returns the JSON document of a run result as served by
// the API and written next to the reports.
func ResultDocument(result interface{}) (interface{}, error) {
	switch r := result.(type) {
	case *production.Context:
		return exporter.HourlyDocument(r), nil
	case *meteo.Analysis:
		return r, nil
	case *meteo.Comparison:
		return r, nil
	case nil:
		return nil, NewValidationError("", "run produced no result")
	default:
		return nil, fmt.Errorf("unsupported result type %T", result)
	}
}

var resultTypes = map[string]interface{}{
	ToolHourly:     &exporter.HourlyJSON{},
	ToolTMY:        &meteo.Analysis{},
	ToolTMYCompare: &meteo.Comparison{},
}

// ResultSchema reflects the JSON schema of a tool's result document.
func ResultSchema(tool string) (*jsonschema.Schema, error) {
	v, ok := resultTypes[tool]
	if !ok {
		_, err := LookupTool(tool)
		return nil, err
	}
	ref := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	schema := ref.Reflect(v)
	info, _ := LookupTool(tool)
	schema.Title = info.Title
	schema.Description = info.Description
	return schema, nil
}
