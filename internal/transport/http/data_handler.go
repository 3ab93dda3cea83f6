package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "pupilflow/internal/errors"
	"pupilflow/internal/middleware"
	"pupilflow/internal/services"
)

// Content types of the download and map routes.
const (
	contentTypeCSV     = "text/csv; charset=utf-8"
	contentTypeXLSX    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeGeoJSON = "application/geo+json"
)

// DataHandler serves the dataset, its filter options, aggregates, map
// layers and exports.
type DataHandler struct {
	service      DatasetServiceInterface
	validator    *middleware.Validator
	query        *middleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDataHandler creates a new data handler with RFC 7807 error handling
func NewDataHandler(service DatasetServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &DataHandler{
		service:      service,
		validator:    middleware.NewValidator(logger),
		query:        middleware.NewQueryParamValidator(),
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the data routes, to be mounted under /api.
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Route("/dataset", func(r chi.Router) {
			r.Get("/", h.GetDataset)
			r.Get("/records", h.GetRecords)
			r.Post("/records", h.PostRecords)
			r.Post("/reload", h.Reload)
		})

		r.Route("/options", func(r chi.Router) {
			r.Get("/", h.GetOptions)
			r.Get("/municipalities", h.GetMunicipalities)
			r.Get("/schools", h.GetSchools)
			r.Get("/school-types", h.GetSchoolTypes)
		})

		r.Get("/aggregate", h.GetAggregate)
		r.Post("/aggregate", h.PostAggregate)
	})

	r.Get("/markers", h.GetMarkers)
	r.Post("/markers", h.PostMarkers)

	r.Route("/export", func(r chi.Router) {
		r.Get("/dataset.csv", h.ExportDatasetCSV)
		r.Get("/aggregate.csv", h.ExportAggregateCSV)
		r.Get("/aggregate.xlsx", h.ExportAggregateXLSX)
	})

	return r
}

// GetDataset handles GET /api/dataset
func (h *DataHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.fail(w, r, "failed to load dataset", err)
		return
	}
	render.JSON(w, r, summary)
}

// Reload handles POST /api/dataset/reload
func (h *DataHandler) Reload(w http.ResponseWriter, r *http.Request) {
	ds, err := h.service.Reload(r.Context())
	if err != nil {
		h.fail(w, r, "failed to reload dataset", err)
		return
	}
	h.logger.InfoContext(r.Context(), "dataset reloaded",
		slog.String("status", string(ds.Status())),
		slog.Int("rows", ds.Len()),
		slog.String("request_id", middleware.GetRequestID(r.Context())))
	render.JSON(w, r, ds.Summarize())
}

// GetRecords handles GET /api/dataset/records
func (h *DataHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(h.query, r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	offset, err := h.query.Int(r, "offset", 0, int(^uint(0)>>1), 0)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	limit, err := h.query.Int(r, "limit", 1, services.MaxPageSize, services.DefaultPageSize)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.records(w, r, services.RecordsQuery{Filter: filter, Offset: offset, Limit: limit})
}

// PostRecords handles POST /api/dataset/records
func (h *DataHandler) PostRecords(w http.ResponseWriter, r *http.Request) {
	q := services.RecordsQuery{Limit: services.DefaultPageSize}
	if err := h.validator.DecodeJSON(r, &q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.records(w, r, q)
}

func (h *DataHandler) records(w http.ResponseWriter, r *http.Request, q services.RecordsQuery) {
	if err := h.validator.ValidateStruct(&q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	page, err := h.service.Records(r.Context(), q)
	if err != nil {
		h.fail(w, r, "failed to list records", err)
		return
	}
	render.JSON(w, r, page)
}

// GetOptions handles GET /api/options
func (h *DataHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.Options(r.Context(), h.optionsQuery(r))
	if err != nil {
		h.fail(w, r, "failed to list options", err)
		return
	}
	render.JSON(w, r, opts)
}

// GetMunicipalities handles GET /api/options/municipalities
func (h *DataHandler) GetMunicipalities(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.Options(r.Context(), services.OptionsQuery{})
	if err != nil {
		h.fail(w, r, "failed to list municipalities", err)
		return
	}
	render.JSON(w, r, opts.Municipalities)
}

// GetSchools handles GET /api/options/schools. The municipality and
// school_type parameters narrow the list.
func (h *DataHandler) GetSchools(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.Options(r.Context(), h.optionsQuery(r))
	if err != nil {
		h.fail(w, r, "failed to list schools", err)
		return
	}
	render.JSON(w, r, opts.Schools)
}

// GetSchoolTypes handles GET /api/options/school-types
func (h *DataHandler) GetSchoolTypes(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.Options(r.Context(), h.optionsQuery(r))
	if err != nil {
		h.fail(w, r, "failed to list school types", err)
		return
	}
	render.JSON(w, r, opts.SchoolTypes)
}

// optionsQuery reads the municipality and school_type parameters.
func (h *DataHandler) optionsQuery(r *http.Request) services.OptionsQuery {
	return services.OptionsQuery{
		Municipality: r.URL.Query().Get("municipality"),
		SchoolTypes:  h.query.List(r, "school_type"),
	}
}

// viewFromQuery reads a filtered grouping from the query string. fallback
// names the preset used when neither view nor keys are given.
func (h *DataHandler) viewFromQuery(r *http.Request, fallback string) (services.ViewQuery, error) {
	filter, err := parseFilter(h.query, r)
	if err != nil {
		return services.ViewQuery{}, err
	}
	spec, err := parseSpec(h.query, r, fallback)
	if err != nil {
		return services.ViewQuery{}, err
	}
	q := services.ViewQuery{Filter: filter, Spec: spec}
	if err := h.validator.ValidateStruct(&q); err != nil {
		return q, err
	}
	return q, nil
}

// decodeView reads a filtered grouping from a JSON body.
func (h *DataHandler) decodeView(r *http.Request) (services.ViewQuery, error) {
	var q services.ViewQuery
	if err := h.validator.DecodeJSON(r, &q); err != nil {
		return q, err
	}
	return q, h.validator.ValidateStruct(&q)
}

// GetAggregate handles GET /api/aggregate
func (h *DataHandler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	q, err := h.viewFromQuery(r, "flows")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.aggregate(w, r, q)
}

// PostAggregate handles POST /api/aggregate
func (h *DataHandler) PostAggregate(w http.ResponseWriter, r *http.Request) {
	q, err := h.decodeView(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.aggregate(w, r, q)
}

func (h *DataHandler) aggregate(w http.ResponseWriter, r *http.Request, q services.ViewQuery) {
	rows, err := h.service.Aggregate(r.Context(), q)
	if err != nil {
		h.fail(w, r, "failed to aggregate", err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"keys": q.Spec.Keys,
		"rows": rows,
	})
}

// GetMarkers handles GET /api/markers. format=geojson answers with a
// GeoJSON feature collection instead of the joined view.
func (h *DataHandler) GetMarkers(w http.ResponseWriter, r *http.Request) {
	format, err := h.query.Enum(r, "format", []string{"json", "geojson"}, "json")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	q, err := h.viewFromQuery(r, "postcodes")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if format == "geojson" {
		h.geoJSON(w, r, q)
		return
	}
	h.markers(w, r, q)
}

// PostMarkers handles POST /api/markers
func (h *DataHandler) PostMarkers(w http.ResponseWriter, r *http.Request) {
	q, err := h.decodeView(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.markers(w, r, q)
}

func (h *DataHandler) markers(w http.ResponseWriter, r *http.Request, q services.ViewQuery) {
	view, err := h.service.Markers(r.Context(), q)
	if err != nil {
		h.fail(w, r, "failed to build markers", err)
		return
	}
	render.JSON(w, r, view)
}

func (h *DataHandler) geoJSON(w http.ResponseWriter, r *http.Request, q services.ViewQuery) {
	data, err := h.service.MarkersGeoJSON(r.Context(), q)
	if err != nil {
		h.fail(w, r, "failed to build GeoJSON", err)
		return
	}
	w.Header().Set("Content-Type", contentTypeGeoJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ExportDatasetCSV handles GET /api/export/dataset.csv
func (h *DataHandler) ExportDatasetCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(h.query, r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	dw := newDownloadWriter(w, contentTypeCSV, "dataset.csv")
	if err := h.service.ExportDatasetCSV(r.Context(), dw, filter); err != nil {
		h.failDownload(w, r, dw, "failed to export dataset", err)
	}
}

// ExportAggregateCSV handles GET /api/export/aggregate.csv
func (h *DataHandler) ExportAggregateCSV(w http.ResponseWriter, r *http.Request) {
	q, err := h.viewFromQuery(r, "flows")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	dw := newDownloadWriter(w, contentTypeCSV, "aggregate.csv")
	if err := h.service.ExportAggregateCSV(r.Context(), dw, q); err != nil {
		h.failDownload(w, r, dw, "failed to export aggregate", err)
	}
}

// ExportAggregateXLSX handles GET /api/export/aggregate.xlsx. Without keys
// or view the workbook holds the default sheets.
func (h *DataHandler) ExportAggregateXLSX(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(h.query, r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var sheets []services.NamedSpec
	if r.URL.Query().Get("view") != "" || r.URL.Query().Get("keys") != "" {
		q, err := h.viewFromQuery(r, "")
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		q.Spec.Display = false
		sheets = append(sheets, services.NamedSpec{Name: "Aggregaat", Spec: q.Spec})
	}

	dw := newDownloadWriter(w, contentTypeXLSX, "aggregate.xlsx")
	if err := h.service.ExportAggregateXLSX(r.Context(), dw, filter, sheets...); err != nil {
		h.failDownload(w, r, dw, "failed to export workbook", err)
	}
}

func (h *DataHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetRequestID(r.Context())))
	h.errorHandler.HandleError(w, r, err)
}

// failDownload reports an export error as a problem when nothing was sent
// yet. A partially streamed download can only be logged.
func (h *DataHandler) failDownload(w http.ResponseWriter, r *http.Request, dw *downloadWriter, msg string, err error) {
	if !dw.started {
		h.fail(w, r, msg, err)
		return
	}
	h.logger.ErrorContext(r.Context(), msg+" after streaming started",
		slog.String("error", err.Error()),
		slog.Int64("bytes_written", dw.written),
		slog.String("request_id", middleware.GetRequestID(r.Context())))
}

// downloadWriter sets the attachment headers on the first write, so errors
// raised before any output can still become problem responses.
type downloadWriter struct {
	w           http.ResponseWriter
	contentType string
	filename    string
	started     bool
	written     int64
}

func newDownloadWriter(w http.ResponseWriter, contentType, filename string) *downloadWriter {
	return &downloadWriter{w: w, contentType: contentType, filename: filename}
}

func (d *downloadWriter) Write(p []byte) (int, error) {
	if !d.started {
		d.started = true
		d.w.Header().Set("Content-Type", d.contentType)
		d.w.Header().Set("Content-Disposition", `attachment; filename="`+d.filename+`"`)
		d.w.WriteHeader(http.StatusOK)
	}
	n, err := d.w.Write(p)
	d.written += int64(n)
	return n, err
}
