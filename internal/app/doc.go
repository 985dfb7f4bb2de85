// Package app assembles PVInsight from its configuration.
//
// New loads the configuration, initialises logging and OpenTelemetry,
// resolves the output directories and wires the exporter, status
// broadcaster, run event publisher and tool pipelines behind an
// operations.Manager. The command line tools, the batch runner and the MCP
// server call Execute on that manager directly.
//
// With Options.Server set, New also builds the websocket hub, the job queue
// and the HTTP router. Run starts them and blocks until SIGINT or SIGTERM,
// then shuts everything down in reverse order:
//
//	HTTP server → job queue → websocket hub → broadcaster → publisher → OTel
package app
