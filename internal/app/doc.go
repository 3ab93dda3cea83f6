// Package app wires the pupil transport service together and manages its
// lifecycle.
//
// New resolves the configured paths, initializes OpenTelemetry and the
// pipeline metrics, builds the loader, the dataset cache and the services,
// and mounts the HTTP API:
//
//	/metrics                 Prometheus scrape endpoint
//	/api/health[/ready|/live] health probes
//	/api/version             build information
//	/api/dataset...          summary, records and reload
//	/api/options...          filter choices
//	/api/aggregate           grouped counts
//	/api/markers             map markers joined with PC4 coordinates
//	/api/export/...          CSV and XLSX downloads
//
// Run serves until SIGINT or SIGTERM and then shuts down gracefully. When
// cache watching is enabled a filesystem watcher on the data directory
// invalidates and reloads the dataset after CSV files change.
//
// Initialization errors are returned to the caller. The package never calls
// os.Exit.
package app
