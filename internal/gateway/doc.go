// Package gateway assembles and runs the coven-wizard server.
//
// # Overview
//
// New wires the SQLite definition store, seeds it from workflows.dir, and
// builds the session hub, live-update broadcaster, replay guard, metrics and
// web UI on one HTTP mux. Run serves until its context is canceled, then
// Shutdown unmounts every chat view and closes the store.
//
// # HTTP Endpoints
//
//	GET /health                 liveness
//	GET /health/ready           503 until at least one workflow is stored
//	GET /api/workflows          definition summaries as JSON
//	GET /api/workflows/{id}     one definition as JSON
//	GET /static/...             embedded stylesheet and scripts
//	GET /metrics                Prometheus metrics (metrics.enabled)
//
// Everything else belongs to the web UI (see package webui).
package gateway
