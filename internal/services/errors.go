package services

import "errors"

// Dataset service errors
var (
	// ErrNoCoordinates is reported when the coordinate table cannot be read.
	// Map views then carry every prefix as a join miss.
	ErrNoCoordinates = errors.New("coordinate table unavailable")
)
