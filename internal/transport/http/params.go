package http

import (
	"net/http"
	"strconv"

	"pupilflow/internal/dataprocessing"
	apierrors "pupilflow/internal/errors"
	"pupilflow/internal/geo"
	"pupilflow/internal/middleware"
	"pupilflow/pkg/contracts/domain"
)

// Named groupings selectable with the view query parameter.
var viewPresets = map[string]func() geo.AggregateSpec{
	"flows":     geo.DestinationFlows,
	"origins":   geo.SchoolOrigins,
	"postcodes": geo.PostcodeTotals,
}

// maxAgeParam bounds age query parameters.
const maxAgeParam = 120

func parseFilter(q *middleware.QueryParamValidator, r *http.Request) (dataprocessing.Filter, error) {
	query := r.URL.Query()
	f := dataprocessing.Filter{
		Municipality: query.Get("municipality"),
		School:       query.Get("school"),
		SchoolTypes:  q.List(r, "school_type"),
	}

	var err error
	if f.MinAge, err = q.Float(r, "min_age", 0, maxAgeParam); err != nil {
		return f, err
	}
	if f.MaxAge, err = q.Float(r, "max_age", 0, maxAgeParam); err != nil {
		return f, err
	}
	return f, nil
}

func parseSpec(q *middleware.QueryParamValidator, r *http.Request, fallback string) (geo.AggregateSpec, error) {
	view, err := q.Enum(r, "view", []string{"flows", "origins", "postcodes"}, "")
	if err != nil {
		return geo.AggregateSpec{}, err
	}

	keys := q.List(r, "keys")
	if view == "" && len(keys) == 0 {
		view = fallback
	}

	var spec geo.AggregateSpec
	if preset, ok := viewPresets[view]; ok {
		spec = preset()
	}
	if len(keys) > 0 {
		spec.Keys = keys
	}

	mode, err := q.Enum(r, "mode", []string{string(domain.ModeSum), string(domain.ModeOccurrence)}, string(spec.Mode))
	if err != nil {
		return spec, err
	}
	spec.Mode = domain.AggregateMode(mode)

	if spec.SortByCount, err = parseBool(r, "sort_by_count", spec.SortByCount); err != nil {
		return spec, err
	}
	if spec.Display, err = parseBool(r, "display", spec.Display); err != nil {
		return spec, err
	}
	return spec, nil
}

func parseBool(r *http.Request, param string, defaultValue bool) (bool, error) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, apierrors.ErrValidation(param, param+" must be true or false")
	}
	return b, nil
}
