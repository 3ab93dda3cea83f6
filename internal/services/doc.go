// Package services implements the business logic behind the dashboard API.
//
// DatasetService resolves the dataset of the data directory, reusing a
// cached load while the directory fingerprint is unchanged, and answers the
// dashboard queries against it:
//
//	- Summary: provenance and load status
//	- Records: filtered long rows, paged
//	- Options: municipalities, schools and school types for the filters
//	- Aggregate: grouped counts for tables
//	- Markers: groups joined with postcode coordinates for maps
//	- Export*: CSV and XLSX downloads
//
// HealthService reports liveness and readiness of the inputs.
//
// Services take an injected *slog.Logger and return typed errors from
// internal/errors that the HTTP layer maps onto problem details.
package services
