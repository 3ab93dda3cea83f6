// Package cache keeps assembled datasets in memory keyed by the fingerprint
// of their input directory, and watches the directory for changes.
package cache
