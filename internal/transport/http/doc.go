// Package http implements the PVInsight REST API.
//
// Handlers stay thin: they parse multipart uploads and query parameters,
// hand work to the job queue and render the outcome. Analyses never run on
// the request goroutine; submissions answer 202 Accepted with a Location
// header pointing at the job.
//
// # Routes
//
//	GET    /api/health               service, queue and websocket status
//	GET    /api/tools                tool catalogue
//	GET    /api/schemas/{tool}       JSON schema of a tool's result
//	POST   /api/hourly               PVSyst hourly export (file, threshold_*)
//	POST   /api/tmy                  TMY file (file)
//	POST   /api/tmy/compare          two TMY files (file_a, file_b)
//	GET    /api/jobs                 list jobs (limit, status, tool)
//	GET    /api/jobs/{id}            job status
//	DELETE /api/jobs/{id}            cancel and forget a job
//	GET    /api/jobs/{id}/result     result document of a completed job
//	GET    /api/jobs/{id}/files/{n}  download a report, log or figure
//	GET    /ws                       run snapshots
//	GET    /metrics                  Prometheus
//
// # Errors
//
// Every failure is rendered as RFC 7807 problem+json by the shared
// errors.ErrorHandler, with the request trace id as an extension member.
// Queue saturation answers 503 and unknown jobs 404.
package http
