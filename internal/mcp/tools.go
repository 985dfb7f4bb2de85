package mcp

import (
	"context"
	"log/slog"

	"github.com/miyamo2/qilin"

	"pvinsight/internal/exporter"
	"pvinsight/internal/infrastructure"
	"pvinsight/internal/operations"
)

// Tool names
const (
	ToolListTools = "list_tools"
)

// HourlyRequest are the arguments of hourly_results_analysis.
type HourlyRequest struct {
	File               string   `json:"file" jsonschema:"description=Path of a PVSyst hourly results CSV"`
	ThresholdValue     *float64 `json:"threshold_value,omitempty" jsonschema:"description=Threshold in the unit of threshold_column"`
	ThresholdColumn    string   `json:"threshold_column,omitempty" jsonschema:"description=Column compared against the threshold (default E_Grid)"`
	NightDisconnection *bool    `json:"night_disconnection,omitempty" jsonschema:"description=Clamp negative night values to zero"`
	GridCapacityKW     *float64 `json:"grid_capacity_kw,omitempty" jsonschema:"description=Grid injection capacity in kW enabling load factor analyses"`
}

// TMYRequest are the arguments of tmy_analysis.
type TMYRequest struct {
	File string `json:"file" jsonschema:"description=Path of a PVSyst or Solargis TMY file"`
}

// CompareRequest are the arguments of tmy_compare.
type CompareRequest struct {
	FileA string `json:"file_a" jsonschema:"description=Reference TMY file"`
	FileB string `json:"file_b" jsonschema:"description=TMY file compared against the reference"`
}

// ListToolsRequest takes no arguments.
type ListToolsRequest struct{}

// Summary is the JSON answer of an analysis tool.
type Summary struct {
	RunID    string                          `json:"run_id"`
	Tool     string                          `json:"tool"`
	Status   operations.OperationStatusValue `json:"status"`
	Duration string                          `json:"duration"`
	Alert    bool                            `json:"alert,omitempty"`
	Warnings []string                        `json:"warnings,omitempty"`
	Outputs  []exporter.OutputFile           `json:"outputs"`
	Result   interface{}                     `json:"result,omitempty"`
}

func (s *Server) registerTools() {
	writesReports := qilin.ToolWithAnnotations(qilin.ToolAnnotations{IdempotentHint: true})
	logging := qilin.ToolWithMiddleware(s.logCall)

	for _, info := range operations.Tools() {
		var (
			req     any
			handler qilin.ToolHandlerFunc
		)
		switch info.ID {
		case operations.ToolHourly:
			req, handler = (*HourlyRequest)(nil), s.handleHourly
		case operations.ToolTMY:
			req, handler = (*TMYRequest)(nil), s.handleTMY
		case operations.ToolTMYCompare:
			req, handler = (*CompareRequest)(nil), s.handleCompare
		default:
			continue
		}
		s.q.Tool(info.ID, req, handler,
			qilin.ToolWithDescription(info.Title+". "+info.Description),
			writesReports, logging)
	}

	s.q.Tool(ToolListTools, (*ListToolsRequest)(nil), s.handleListTools,
		qilin.ToolWithDescription("List the PVInsight analysis tools"),
		qilin.ToolWithAnnotations(qilin.ToolAnnotations{ReadOnlyHint: true}))
}

func (s *Server) logCall(next qilin.ToolHandlerFunc) qilin.ToolHandlerFunc {
	return func(c qilin.ToolContext) error {
		start := infrastructure.Now()
		err := next(c)
		attrs := []any{
			slog.String("tool", c.ToolName()),
			slog.Duration("duration", infrastructure.Now().Sub(start)),
		}
		if err != nil {
			s.logger.ErrorContext(c.Context(), "MCP tool failed", append(attrs, slog.String("error", err.Error()))...)
			return err
		}
		s.logger.InfoContext(c.Context(), "MCP tool completed", attrs...)
		return nil
	}
}

func (s *Server) handleHourly(c qilin.ToolContext) error {
	var req HourlyRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	summary, err := s.Hourly(c.Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func (s *Server) handleTMY(c qilin.ToolContext) error {
	var req TMYRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	summary, err := s.TMY(c.Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func (s *Server) handleCompare(c qilin.ToolContext) error {
	var req CompareRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	summary, err := s.Compare(c.Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func (s *Server) handleListTools(c qilin.ToolContext) error {
	tools := operations.Tools()
	return c.JSON(map[string]interface{}{"tools": tools, "count": len(tools)})
}

// Hourly runs hourly_results_analysis on a local file.
func (s *Server) Hourly(ctx context.Context, req HourlyRequest) (*Summary, error) {
	path, err := s.resolve(req.File)
	if err != nil {
		return nil, err
	}
	opts := s.defaults
	if req.ThresholdValue != nil {
		opts.ThresholdValue = *req.ThresholdValue
	}
	if req.ThresholdColumn != "" {
		opts.ThresholdColumn = req.ThresholdColumn
	}
	if req.NightDisconnection != nil {
		opts.NightDisconnection = *req.NightDisconnection
	}
	if req.GridCapacityKW != nil {
		capacity := *req.GridCapacityKW
		opts.GridCapacityKW = &capacity
	}
	opts = opts.Normalize()

	return s.run(ctx, operations.OperationRequest{
		Tool:   operations.ToolHourly,
		Inputs: []operations.Input{{Path: path}},
		Hourly: &opts,
	})
}

// TMY runs tmy_analysis on a local file.
func (s *Server) TMY(ctx context.Context, req TMYRequest) (*Summary, error) {
	path, err := s.resolve(req.File)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, operations.OperationRequest{
		Tool:   operations.ToolTMY,
		Inputs: []operations.Input{{Path: path}},
	})
}

// Compare runs tmy_compare on two local files.
func (s *Server) Compare(ctx context.Context, req CompareRequest) (*Summary, error) {
	a, err := s.resolve(req.FileA)
	if err != nil {
		return nil, err
	}
	b, err := s.resolve(req.FileB)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, operations.OperationRequest{
		Tool:   operations.ToolTMYCompare,
		Inputs: []operations.Input{{Path: a}, {Path: b}},
	})
}

func (s *Server) run(ctx context.Context, req operations.OperationRequest) (*Summary, error) {
	req.Parameters = map[string]interface{}{"source": "mcp"}
	resp, err := s.executor.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	doc, err := operations.ResultDocument(resp.Result)
	if err != nil {
		return nil, err
	}
	return &Summary{
		RunID:    resp.ID,
		Tool:     resp.Tool,
		Status:   resp.Status,
		Duration: resp.Duration.String(),
		Alert:    resp.Alert,
		Warnings: resp.Warnings,
		Outputs:  resp.Outputs.Files,
		Result:   doc,
	}, nil
}
