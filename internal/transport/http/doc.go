// Package http implements the HTTP handlers of the dashboard API.
//
// Handlers stay thin: they parse and validate the request, call the service
// layer and render the result with go-chi/render. Errors are converted to
// RFC 7807 problem details by internal/errors.ErrorHandler.
//
// Filters are read from query parameters on GET routes:
//
//	municipality   destination municipality (GEMEENTENAAM)
//	school         school name, "Alle" for every school
//	school_type    repeated or comma separated SOORT_PO values
//	min_age        lower bound of the numeric age
//	max_age        upper bound of the numeric age
//
// Groupings are read from keys, mode, sort_by_count and display, or by
// naming a preset with view=flows|origins|postcodes. POST routes accept the
// same query as a JSON body.
package http
