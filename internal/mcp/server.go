// Package mcp exposes the analysis tools over the Model Context Protocol on
// stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/miyamo2/qilin"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/infrastructure"
	"pvinsight/internal/operations"
	"pvinsight/internal/production"
)

// Executor runs one tool request to completion.
type Executor interface {
	Execute(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error)
}

// Options configure the MCP server.
type Options struct {
	Name    string
	Version string
	// AllowedRoots restricts the files tools may read. Empty allows any
	// path.
	AllowedRoots []string
	// Defaults fill hourly options a call leaves unset.
	Defaults production.Options
	Logger   *slog.Logger
}

// Server is the PVInsight MCP server.
type Server struct {
	q        *qilin.Qilin
	executor Executor
	roots    []string
	defaults production.Options
	logger   *slog.Logger
}

// NewServer registers the analysis tools on a new qilin instance.
func NewServer(executor Executor, opts Options) (*Server, error) {
	if executor == nil {
		return nil, fmt.Errorf("mcp: nil executor")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Name == "" {
		opts.Name = "pvinsight"
	}

	roots := make([]string, 0, len(opts.AllowedRoots))
	for _, root := range opts.AllowedRoots {
		abs, err := canonical(root)
		if err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("invalid MCP root %s", root), err)
		}
		roots = append(roots, abs)
	}

	qopts := []qilin.Option{
		qilin.WithJSONMarshalFunc(json.Marshal),
		qilin.WithJSONUnmarshalFunc(json.Unmarshal),
		qilin.WithNowFunc(infrastructure.Now),
	}
	if opts.Version != "" {
		qopts = append(qopts, qilin.WithVersion(opts.Version))
	}

	s := &Server{
		q:        qilin.New(opts.Name, qopts...),
		executor: executor,
		roots:    roots,
		defaults: opts.Defaults.Normalize(),
		logger:   logger.With(slog.String("component", "mcp")),
	}
	s.registerTools()
	return s, nil
}

// Start serves JSON-RPC on stdin/stdout until ctx is cancelled or the
// client disconnects. Logs must not go to stdout while it runs.
func (s *Server) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "MCP server starting", slog.Int("allowed_roots", len(s.roots)))
	return s.q.Start(qilin.StartWithContext(ctx))
}

// resolve makes path absolute and checks it lies under an allowed root.
func (s *Server) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", apperrors.NewAppValidationError("file path is required")
	}
	abs, err := canonical(path)
	if err != nil {
		return "", apperrors.NewAppValidationError(fmt.Sprintf("invalid path %s", path))
	}
	if len(s.roots) == 0 {
		return abs, nil
	}
	for _, root := range s.roots {
		rel, err := filepath.Rel(root, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", apperrors.NewAppValidationError(fmt.Sprintf("%s is outside the allowed roots", path))
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}
	return abs, nil
}
