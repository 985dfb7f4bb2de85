package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/operations"
	"pvinsight/internal/production"
)

// DefaultParallelism is used when a manifest does not set parallelism.
const DefaultParallelism = 2

var validate = validator.New()

// Manifest is a decoded batch file.
type Manifest struct {
	OutputDir   string        `hcl:"output_dir,optional"`
	Parallelism int           `hcl:"parallelism,optional" validate:"gte=0,lte=32"`
	Hourly      []*HourlyRun  `hcl:"hourly,block" validate:"dive"`
	TMY         []*TMYRun     `hcl:"tmy,block" validate:"dive"`
	Compare     []*CompareRun `hcl:"compare,block" validate:"dive"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// HourlyRun is an `hourly "name" { ... }` block.
type HourlyRun struct {
	Name               string   `hcl:"name,label" validate:"required"`
	File               string   `hcl:"file" validate:"required"`
	ThresholdValue     *float64 `hcl:"threshold_value,optional" validate:"omitempty,gte=0"`
	ThresholdColumn    string   `hcl:"threshold_column,optional" validate:"omitempty,max=64"`
	NightDisconnection *bool    `hcl:"night_disconnection,optional"`
	GridCapacityKW     *float64 `hcl:"grid_capacity_kw,optional"`
}

// TMYRun is a `tmy "name" { file = ... }` block.
type TMYRun struct {
	Name string `hcl:"name,label" validate:"required"`
	File string `hcl:"file" validate:"required"`
}

// CompareRun is a `compare "name" { file_a = ... file_b = ... }` block.
type CompareRun struct {
	Name  string `hcl:"name,label" validate:"required"`
	FileA string `hcl:"file_a" validate:"required"`
	FileB string `hcl:"file_b" validate:"required"`
}

// Entry is one run of a manifest ready to be executed.
type Entry struct {
	Name    string
	Request operations.OperationRequest
}

// LoadManifest parses and validates a manifest file. Relative paths inside
// it are resolved against the manifest's directory.
func LoadManifest(ctx context.Context, path string, logger *slog.Logger) (*Manifest, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(ctx, "decoding batch manifest", slog.String("path", path))

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to parse manifest %s", path), diags)
	}
	return decode(file.Body, filepath.Dir(path), path, logger)
}

// ParseManifest decodes manifest source held in memory. filename is only
// used in diagnostics; paths resolve against dir.
func ParseManifest(src []byte, filename, dir string) (*Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to parse manifest %s", filename), diags)
	}
	return decode(file.Body, dir, filename, slog.Default())
}

func decode(body hcl.Body, dir, name string, logger *slog.Logger) (*Manifest, error) {
	var m Manifest
	if diags := gohcl.DecodeBody(body, nil, &m); diags.HasErrors() {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to decode manifest %s", name), diags)
	}
	m.dir = dir
	if err := m.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("batch manifest decoded",
		slog.String("path", name),
		slog.Int("hourly", len(m.Hourly)),
		slog.Int("tmy", len(m.TMY)),
		slog.Int("compare", len(m.Compare)))
	return &m, nil
}

// Validate checks field constraints and that run names are unique.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return apperrors.NewAppValidationError(fmt.Sprintf("invalid manifest: %v", err))
	}
	if m.Len() == 0 {
		return apperrors.NewAppValidationError("manifest declares no runs")
	}
	seen := make(map[string]bool, m.Len())
	for _, e := range m.names() {
		if seen[e] {
			return apperrors.NewAppValidationError(fmt.Sprintf("duplicate run name %q", e))
		}
		seen[e] = true
	}
	return nil
}

// Len is the number of runs declared.
func (m *Manifest) Len() int {
	return len(m.Hourly) + len(m.TMY) + len(m.Compare)
}

func (m *Manifest) names() []string {
	names := make([]string, 0, m.Len())
	for _, r := range m.Hourly {
		names = append(names, r.Name)
	}
	for _, r := range m.TMY {
		names = append(names, r.Name)
	}
	for _, r := range m.Compare {
		names = append(names, r.Name)
	}
	return names
}

// ResolvedOutputDir returns output_dir made absolute against the manifest
// directory, or "" when unset.
func (m *Manifest) ResolvedOutputDir() string {
	if m.OutputDir == "" {
		return ""
	}
	return m.resolve(m.OutputDir)
}

func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) || m.dir == "" {
		return path
	}
	return filepath.Join(m.dir, path)
}

// Entries expands the manifest into run requests in declaration order:
// hourly blocks, then tmy, then compare. defaults fill hourly options a
// block leaves unset.
func (m *Manifest) Entries(defaults production.Options) []Entry {
	out := m.ResolvedOutputDir()
	entries := make([]Entry, 0, m.Len())

	for _, r := range m.Hourly {
		opts := defaults
		if r.ThresholdValue != nil {
			opts.ThresholdValue = *r.ThresholdValue
		}
		if r.ThresholdColumn != "" {
			opts.ThresholdColumn = r.ThresholdColumn
		}
		if r.NightDisconnection != nil {
			opts.NightDisconnection = *r.NightDisconnection
		}
		if r.GridCapacityKW != nil {
			capacity := *r.GridCapacityKW
			opts.GridCapacityKW = &capacity
		}
		opts = opts.Normalize()
		entries = append(entries, Entry{
			Name: r.Name,
			Request: operations.OperationRequest{
				Tool:       operations.ToolHourly,
				Inputs:     []operations.Input{{Path: m.resolve(r.File)}},
				Hourly:     &opts,
				OutputDir:  out,
				Parameters: map[string]interface{}{"batch_run": r.Name},
			},
		})
	}
	for _, r := range m.TMY {
		entries = append(entries, Entry{
			Name: r.Name,
			Request: operations.OperationRequest{
				Tool:       operations.ToolTMY,
				Inputs:     []operations.Input{{Path: m.resolve(r.File)}},
				OutputDir:  out,
				Parameters: map[string]interface{}{"batch_run": r.Name},
			},
		})
	}
	for _, r := range m.Compare {
		entries = append(entries, Entry{
			Name: r.Name,
			Request: operations.OperationRequest{
				Tool: operations.ToolTMYCompare,
				Inputs: []operations.Input{
					{Path: m.resolve(r.FileA)},
					{Path: m.resolve(r.FileB)},
				},
				OutputDir:  out,
				Parameters: map[string]interface{}{"batch_run": r.Name},
			},
		})
	}
	return entries
}
