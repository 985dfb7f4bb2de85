package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Paths contains the resolved application directories.
type Paths struct {
	BaseDir    string
	OutputsDir string
	UploadsDir string
	LogsDir    string
	OutputMode string
}

// RunPaths are the directories a single tool writes into.
type RunPaths struct {
	RunDir     string
	FiguresDir string
	ReportsDir string
	LogsDir    string
}

// GetPaths resolves the configured directories. Relative entries are joined
// to BaseDir, which defaults to the current working directory.
func (c *Config) GetPaths() (*Paths, error) {
	base := c.Paths.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}

	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base dir %s: %w", base, err)
	}

	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(abs, p)
	}

	mode := c.Paths.OutputMode
	if mode == "" {
		mode = OutputModeLatest
	}

	return &Paths{
		BaseDir:    abs,
		OutputsDir: resolve(c.Paths.OutputsDir),
		UploadsDir: resolve(c.Paths.UploadsDir),
		LogsDir:    resolve(c.Paths.LogsDir),
		OutputMode: mode,
	}, nil
}

// EnsureDirectories creates all base directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.OutputsDir,
		p.UploadsDir,
		p.LogsDir,
	}

	logger := slog.Default()

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// ToolDirs creates the figures, reports and logs directories for a tool and
// returns them. In latest mode the layout is {outputs}/latest/{tool}.
func (p *Paths) ToolDirs(tool string) (RunPaths, error) {
	return p.toolDirsUnder(p.OutputsDir, tool)
}

// ToolDirsUnder is ToolDirs rooted at an explicit outputs directory, used by
// batch manifests that override the output location.
func (p *Paths) ToolDirsUnder(outputsDir, tool string) (RunPaths, error) {
	if outputsDir == "" {
		outputsDir = p.OutputsDir
	}
	if !filepath.IsAbs(outputsDir) {
		outputsDir = filepath.Join(p.BaseDir, outputsDir)
	}
	return p.toolDirsUnder(outputsDir, tool)
}

func (p *Paths) toolDirsUnder(outputsDir, tool string) (RunPaths, error) {
	runDir := outputsDir
	if p.OutputMode != OutputModeFlat {
		runDir = filepath.Join(outputsDir, "latest", SafeDirName(tool))
	}

	run := RunPaths{
		RunDir:     runDir,
		FiguresDir: filepath.Join(runDir, FiguresSubdir),
		ReportsDir: filepath.Join(runDir, ReportsSubdir),
		LogsDir:    filepath.Join(runDir, LogsSubdir),
	}

	for _, dir := range []string{run.RunDir, run.FiguresDir, run.ReportsDir, run.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return RunPaths{}, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return run, nil
}

// LogPathResolution logs the resolved paths at debug level
func (p *Paths) LogPathResolution() {
	slog.Debug("Path resolution",
		slog.Group("paths",
			slog.String("base", p.BaseDir),
			slog.String("outputs", p.OutputsDir),
			slog.String("uploads", p.UploadsDir),
			slog.String("logs", p.LogsDir),
			slog.String("mode", p.OutputMode),
		))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

var (
	slugPattern    = regexp.MustCompile(`[^a-z0-9\-_.]+`)
	dirNamePattern = regexp.MustCompile(`[^A-Za-z0-9\-_.]+`)
)

// SafeSlug lower-cases s, replaces anything outside [a-z0-9-_.] by "_" and
// caps the result at 80 characters.
func SafeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugPattern.ReplaceAllString(s, "_")
	if len(s) > 80 {
		s = s[:80]
	}
	return strings.Trim(s, "_")
}

// SafeDirName is SafeSlug without lower-casing, so tool folders keep the
// names advertised by the tool catalogue.
func SafeDirName(s string) string {
	s = dirNamePattern.ReplaceAllString(strings.TrimSpace(s), "_")
	if len(s) > 80 {
		s = s[:80]
	}
	return strings.Trim(s, "_")
}
