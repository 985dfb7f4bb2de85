package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/exporter"
	"pvinsight/internal/infrastructure"
	"pvinsight/internal/middleware"
	"pvinsight/internal/operations"
	"pvinsight/internal/production"
)

// multipartMemory is how much of a multipart body is kept in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

// JobsHandlerOptions configure the upload and job endpoints.
type JobsHandlerOptions struct {
	// MaxUploadBytes bounds the whole multipart body.
	MaxUploadBytes int64
	// UploadsDir keeps a copy of every upload under {UploadsDir}/{job id}.
	// Empty keeps uploads in memory only.
	UploadsDir string
	// Defaults fill the hourly parameters a client leaves out.
	Defaults     production.Options
	Validator    *middleware.Validator
	ErrorHandler *apperrors.ErrorHandler
	Logger       *slog.Logger
}

// JobsHandler accepts uploads, queues tool runs and serves their results.
type JobsHandler struct {
	jobs         JobService
	opts         JobsHandlerOptions
	validator    *middleware.Validator
	errorHandler *apperrors.ErrorHandler
	query        *middleware.QueryParamValidator
	logger       *slog.Logger
	tracer       trace.Tracer
}

// NewJobsHandler creates the jobs handler.
func NewJobsHandler(jobs JobService, opts JobsHandlerOptions) *JobsHandler {
	if jobs == nil {
		panic("jobs cannot be nil")
	}
	logger := infrastructure.WithComponent(opts.Logger, "jobs_handler")
	if opts.Validator == nil {
		opts.Validator = middleware.NewValidator()
	}
	if opts.ErrorHandler == nil {
		opts.ErrorHandler = apperrors.NewErrorHandler(logger, false)
	}
	opts.Defaults = opts.Defaults.Normalize()

	return &JobsHandler{
		jobs:         jobs,
		opts:         opts,
		validator:    opts.Validator,
		errorHandler: opts.ErrorHandler,
		query:        middleware.NewQueryParamValidator(logger, opts.ErrorHandler),
		logger:       logger,
		tracer:       otel.Tracer("pvinsight/transport/http"),
	}
}

// Routes returns a chi router for the /api/jobs endpoints
func (h *JobsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListJobs)
	r.Get("/{id}", h.GetJob)
	r.Delete("/{id}", h.DeleteJob)
	r.Get("/{id}/result", h.GetResult)
	r.Get("/{id}/files/{name}", h.GetFile)
	return r
}

// hourlyParams are the form fields of an hourly submission.
type hourlyParams struct {
	ThresholdValue     float64  `form:"threshold_value"`
	ThresholdColumn    string   `form:"threshold_column" validate:"omitempty,max=64"`
	NightDisconnection bool     `form:"night_disconnection"`
	GridCapacityKW     *float64 `form:"grid_capacity_kw"`
}

// SubmitHourly handles POST /api/hourly
func (h *JobsHandler) SubmitHourly(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "jobs_handler.submit_hourly")
	defer span.End()
	r = r.WithContext(ctx)

	id := infrastructure.NewRunID()
	if err := h.parseForm(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	params, err := h.hourlyParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	input, err := h.readUpload(r, id, "file")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	opts := production.Options{
		ThresholdValue:     params.ThresholdValue,
		ThresholdColumn:    params.ThresholdColumn,
		NightDisconnection: params.NightDisconnection,
		GridCapacityKW:     params.GridCapacityKW,
	}.Normalize()

	h.submit(w, r, operations.OperationRequest{
		ID:     id,
		Tool:   operations.ToolHourly,
		Inputs: []operations.Input{input},
		Hourly: &opts,
	})
}

// SubmitTMY handles POST /api/tmy
func (h *JobsHandler) SubmitTMY(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "jobs_handler.submit_tmy")
	defer span.End()
	r = r.WithContext(ctx)

	id := infrastructure.NewRunID()
	if err := h.parseForm(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	input, err := h.readUpload(r, id, "file")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.submit(w, r, operations.OperationRequest{
		ID:     id,
		Tool:   operations.ToolTMY,
		Inputs: []operations.Input{input},
	})
}

// SubmitCompare handles POST /api/tmy/compare
func (h *JobsHandler) SubmitCompare(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "jobs_handler.submit_compare")
	defer span.End()
	r = r.WithContext(ctx)

	id := infrastructure.NewRunID()
	if err := h.parseForm(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.readUpload(r, id, "file_a")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.readUpload(r, id, "file_b")
	if err != nil {
		h.discardUploads(r, id)
		h.fail(w, r, err)
		return
	}

	h.submit(w, r, operations.OperationRequest{
		ID:     id,
		Tool:   operations.ToolTMYCompare,
		Inputs: []operations.Input{a, b},
	})
}

func (h *JobsHandler) submit(w http.ResponseWriter, r *http.Request, req operations.OperationRequest) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("run.id", req.ID),
		attribute.String("run.tool", req.Tool),
	)

	if err := h.validator.Struct(req); err != nil {
		h.discardUploads(r, req.ID)
		h.fail(w, r, err)
		return
	}

	job, err := h.jobs.Enqueue(ctx, req)
	if err != nil {
		h.discardUploads(r, req.ID)
		h.fail(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "job submitted",
		slog.String("job_id", job.ID),
		slog.String("tool", job.Tool),
		slog.Int("inputs", len(req.Inputs)))

	w.Header().Set("Location", "/api/jobs/"+job.ID)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, job)
}

func (h *JobsHandler) parseForm(w http.ResponseWriter, r *http.Request) error {
	if h.opts.MaxUploadBytes > 0 {
		if r.ContentLength > h.opts.MaxUploadBytes {
			return apperrors.ErrPayloadTooLarge
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return apperrors.InvalidRequestWithError(err)
	}
	return nil
}

func (h *JobsHandler) hourlyParams(r *http.Request) (hourlyParams, error) {
	params := hourlyParams{
		ThresholdValue:     h.opts.Defaults.ThresholdValue,
		ThresholdColumn:    strings.TrimSpace(r.FormValue("threshold_column")),
		NightDisconnection: h.opts.Defaults.NightDisconnection,
		GridCapacityKW:     h.opts.Defaults.GridCapacityKW,
	}

	if raw := strings.TrimSpace(r.FormValue("threshold_value")); raw != "" {
		v, err := parseDecimal(raw)
		if err != nil {
			return params, apperrors.ErrValidation("threshold_value", "threshold_value must be a number")
		}
		params.ThresholdValue = v
	}
	if raw := strings.TrimSpace(r.FormValue("night_disconnection")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if strings.EqualFold(raw, "on") {
			v, err = true, nil
		}
		if err != nil {
			return params, apperrors.ErrValidation("night_disconnection", "night_disconnection must be true or false")
		}
		params.NightDisconnection = v
	}
	if raw := strings.TrimSpace(r.FormValue("grid_capacity_kw")); raw != "" {
		v, err := parseDecimal(raw)
		if err != nil {
			return params, apperrors.ErrValidation("grid_capacity_kw", "grid_capacity_kw must be a number")
		}
		// Zero or negative capacities disable the load factor studies.
		params.GridCapacityKW = nil
		if v > 0 {
			params.GridCapacityKW = &v
		}
	}
	if params.ThresholdColumn == "" {
		params.ThresholdColumn = h.opts.Defaults.ThresholdColumn
	}

	return params, h.validator.Struct(params)
}

// parseDecimal accepts both "1250.5" and "1 250,5".
func parseDecimal(s string) (float64, error) {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}

func (h *JobsHandler) readUpload(r *http.Request, id, field string) (operations.Input, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return operations.Input{}, apperrors.ErrValidation(field, field+" is required")
		}
		return operations.Input{}, apperrors.InvalidRequestWithError(err)
	}
	defer file.Close()

	name := filepath.Base(strings.ReplaceAll(header.Filename, `\`, "/"))
	if err := h.validator.Var(field, name, "filename"); err != nil {
		return operations.Input{}, err
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return operations.Input{}, fmt.Errorf("failed to read %s: %w", field, err)
	}
	if len(data) == 0 {
		return operations.Input{}, apperrors.ErrValidation(field, field+" is empty")
	}

	input := operations.Input{
		Name:     name,
		Data:     data,
		Checksum: operations.Checksum(data),
	}

	if h.opts.UploadsDir != "" {
		dir := filepath.Join(h.opts.UploadsDir, id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return operations.Input{}, apperrors.FileSystemError("upload", err)
		}
		path := filepath.Join(dir, field+"_"+name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return operations.Input{}, apperrors.FileSystemError("upload", err)
		}
		input.Path = path
	}

	h.logger.DebugContext(r.Context(), "upload received",
		slog.String("field", field),
		slog.String("name", name),
		slog.Int("bytes", len(data)),
		slog.String("checksum", input.Checksum))
	return input, nil
}

// discardUploads removes uploads/{id} when a submission is rejected.
func (h *JobsHandler) discardUploads(r *http.Request, id string) {
	if h.opts.UploadsDir == "" || id == "" {
		return
	}
	if err := os.RemoveAll(filepath.Join(h.opts.UploadsDir, id)); err != nil {
		h.logger.WarnContext(r.Context(), "failed to discard uploads",
			slog.String("job_id", id),
			slog.String("error", err.Error()))
	}
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, 500, 50)
	if !ok {
		return
	}
	status, ok := h.query.ValidateEnum(w, r, "status", []string{
		string(operations.JobStatusPending),
		string(operations.JobStatusRunning),
		string(operations.JobStatusCompleted),
		string(operations.JobStatusFailed),
		string(operations.JobStatusCancelled),
	}, "")
	if !ok {
		return
	}
	tool, ok := h.query.ValidateEnum(w, r, "tool", []string{
		operations.ToolHourly, operations.ToolTMY, operations.ToolTMYCompare,
	}, "")
	if !ok {
		return
	}

	jobs, err := h.jobs.ListJobs(operations.JobFilter{
		Status: operations.JobStatus(status),
		Tool:   tool,
		Limit:  limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, job)
}

// DeleteJob handles DELETE /api/jobs/{id}
func (h *JobsHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.jobs.DeleteJob(id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "job deleted", slog.String("job_id", id))
	render.NoContent(w, r)
}

// GetResult handles GET /api/jobs/{id}/result
func (h *JobsHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	job, err := h.finishedJob(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	doc, err := operations.ResultDocument(job.Response.Result)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := exporter.EncodeJSON(w, doc); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode result",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
	}
}

// GetFile handles GET /api/jobs/{id}/files/{name}
func (h *JobsHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.validator.Var("name", name, "filename"); err != nil {
		h.fail(w, r, err)
		return
	}

	job, err := h.finishedJob(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	for _, f := range job.Response.Outputs.Files {
		if f.Name != name {
			continue
		}
		if _, err := os.Stat(f.Path); err != nil {
			h.fail(w, r, apperrors.NotFoundError("file "+name))
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
		http.ServeFile(w, r, f.Path)
		return
	}
	h.fail(w, r, apperrors.NotFoundError("file "+name))
}

// finishedJob returns a completed job with its response, or the error
// explaining why there is nothing to serve yet.
func (h *JobsHandler) finishedJob(id string) (*operations.Job, error) {
	job, err := h.jobs.GetJob(id)
	if err != nil {
		return nil, err
	}
	switch {
	case !job.Status.Terminal():
		return nil, apperrors.ErrJobNotFinished
	case job.Status != operations.JobStatusCompleted || job.Response == nil:
		return nil, apperrors.NewWithDetails(http.StatusConflict, "JOB_NOT_COMPLETED",
			fmt.Sprintf("job ended with status %s", job.Status), job.Error)
	}
	return job, nil
}

// fail maps queue and pipeline errors onto API errors before rendering.
func (h *JobsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var opErr *operations.OperationError
	switch {
	case errors.Is(err, operations.ErrQueueFull):
		err = apperrors.ErrQueueFull
	case errors.Is(err, operations.ErrJobNotFound):
		err = apperrors.ErrJobNotFound
	case errors.Is(err, operations.ErrJobFinished):
		err = apperrors.New(http.StatusConflict, "JOB_FINISHED", "job already finished")
	case errors.As(err, &opErr) && opErr.Type == operations.ErrorTypeValidation && opErr.Cause == nil:
		err = apperrors.New(http.StatusBadRequest, "VALIDATION_FAILED", opErr.Message)
	}
	trace.SpanFromContext(r.Context()).RecordError(err)
	h.errorHandler.HandleError(w, r, err)
}
