// Package observability builds the process logger and the Prometheus
// collectors that instrument the search pipeline.
//
// Metrics are registered on a private registry so tests can create as many
// instances as they need without colliding on the global default registry.
package observability
