package services

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pupilflow/internal/cache"
	"pupilflow/internal/dataprocessing"
	apperrors "pupilflow/internal/errors"
	"pupilflow/internal/files"
	"pupilflow/internal/geo"
	"pupilflow/internal/shared/testutil"
	"pupilflow/pkg/contracts/domain"
)

type fixture struct {
	svc     *DatasetService
	dataDir string
	cfg     DatasetConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	dataDir := t.TempDir()
	coordDir := t.TempDir()
	testutil.WriteTransportCSV(t, dataDir, "a.csv",
		testutil.MandatoryHeader("LEEFTIJD_4", "LEEFTIJD_5"),
		[][]string{
			{"Utrecht", "Zeist", "De Regenboog", "BAO", "3701AB", "3", "<5"},
			{"Utrecht", "Bunnik", "De Regenboog", "BAO", "3981CD", "2", ""},
		})
	coords := testutil.WriteCoordinates(t, coordDir, "postcode_coords.csv", map[string][2]string{
		"3701": {"52,08", "5,23"},
	})

	cfg := DatasetConfig{DataDir: dataDir, CoordinatesFile: coords}
	loader := dataprocessing.NewLoader(logger, files.NewDiscovery(""), dataprocessing.LoaderConfig{Workers: 2}, nil)
	dsCache, err := cache.NewDatasetCache(4, logger, nil)
	require.NoError(t, err)

	return &fixture{
		svc:     NewDatasetService(cfg, loader, dsCache, nil, logger),
		dataDir: dataDir,
		cfg:     cfg,
	}
}

func TestDatasetServiceSummary(t *testing.T) {
	f := newFixture(t)

	summary, err := f.svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.LoadStatusComplete, summary.Status)
	assert.Equal(t, 4, summary.RowCount)
	assert.Equal(t, []string{"a.csv"}, summary.ProcessedFiles)
	assert.Equal(t, []string{"LEEFTIJD_4", "LEEFTIJD_5"}, summary.AgeBands)
	assert.Equal(t, domain.LongColumns, summary.Columns)
}

func TestDatasetServiceReusesUnchangedDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Dataset(ctx)
	require.NoError(t, err)
	second, err := f.svc.Dataset(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)

	testutil.WriteTransportCSV(t, f.dataDir, "b.csv",
		testutil.MandatoryHeader("LEEFTIJD_6"),
		[][]string{{"Utrecht", "Zeist", "De Linde", "SBO", "3701AC", "1"}})

	third, err := f.svc.Dataset(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, []string{"a.csv", "b.csv"}, third.ProcessedFiles)
	assert.Equal(t, 3*3, third.Len(), "three rows times the three bands of the union")
}

func TestDatasetServiceConcurrentLoadsShareResult(t *testing.T) {
	f := newFixture(t)

	const n = 8
	results := make([]*domain.Dataset, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ds, err := f.svc.Dataset(context.Background())
			assert.NoError(t, err)
			results[i] = ds
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestDatasetServiceMissingDirectory(t *testing.T) {
	svc := NewDatasetService(DatasetConfig{DataDir: filepath.Join(t.TempDir(), "absent")}, nil, nil, nil, nil)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.LoadStatusNoFiles, summary.Status)
	assert.Equal(t, 0, summary.RowCount)
	assert.Equal(t, domain.LongColumns, summary.Columns)
}

func TestDatasetServiceRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, err := f.svc.Records(ctx, RecordsQuery{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Len(t, page.Records, 3)

	page, err = f.svc.Records(ctx, RecordsQuery{Offset: 10, Limit: 3})
	require.NoError(t, err)
	assert.NotNil(t, page.Records)
	assert.Empty(t, page.Records)

	minAge := 5.0
	page, err = f.svc.Records(ctx, RecordsQuery{Filter: dataprocessing.Filter{MinAge: &minAge}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	for _, r := range page.Records {
		assert.Equal(t, "LEEFTIJD_5", r.AgeLabel)
	}
}

func TestDatasetServiceRejectsInvalidQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lo, hi := 10.0, 4.0

	tests := []struct {
		name string
		run  func() error
	}{
		{"limit zero", func() error {
			_, err := f.svc.Records(ctx, RecordsQuery{})
			return err
		}},
		{"limit too large", func() error {
			_, err := f.svc.Records(ctx, RecordsQuery{Limit: MaxPageSize + 1})
			return err
		}},
		{"inverted age range", func() error {
			_, err := f.svc.Aggregate(ctx, ViewQuery{
				Filter: dataprocessing.Filter{MinAge: &lo, MaxAge: &hi},
				Spec:   geo.DestinationFlows(),
			})
			return err
		}},
		{"unknown key", func() error {
			_, err := f.svc.Aggregate(ctx, ViewQuery{Spec: geo.AggregateSpec{Keys: []string{"leeftijd"}}})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation), "got %v", err)
		})
	}
}

func TestDatasetServiceOptions(t *testing.T) {
	f := newFixture(t)

	opts, err := f.svc.Options(context.Background(), OptionsQuery{Municipality: "Utrecht"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Utrecht"}, opts.Municipalities)
	assert.Equal(t, []string{dataprocessing.AllSchools, "De Regenboog"}, opts.Schools)
	assert.Equal(t, []string{"BAO"}, opts.SchoolTypes)
	assert.Equal(t, dataprocessing.AgeLowerBound, opts.AgeMin)
	assert.Equal(t, dataprocessing.AgeUpperBound, opts.AgeMax)
	assert.Equal(t, dataprocessing.DefaultMinAge, opts.DefaultAgeMin)
	assert.Equal(t, dataprocessing.DefaultMaxAge, opts.DefaultAgeMax)
}

func TestDatasetServiceOptionsBySchoolType(t *testing.T) {
	f := newFixture(t)

	opts, err := f.svc.Options(context.Background(), OptionsQuery{Municipality: "Utrecht", SchoolTypes: []string{"SBO"}})
	require.NoError(t, err)
	assert.Equal(t, []string{dataprocessing.AllSchools}, opts.Schools, "no SBO school in Utrecht")
	assert.Equal(t, []string{"BAO"}, opts.SchoolTypes, "types are narrowed by municipality only")
}

func TestDatasetServiceAggregate(t *testing.T) {
	f := newFixture(t)

	rows, err := f.svc.Aggregate(context.Background(), ViewQuery{Spec: geo.DestinationFlows()})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Zeist", rows[0].Key(domain.FieldPupilMunicipality))
	assert.Equal(t, 7, rows[0].Count)
	assert.Equal(t, "Bunnik", rows[1].Key(domain.FieldPupilMunicipality))
	assert.Equal(t, 2, rows[1].Count)
}

func TestDatasetServiceMarkers(t *testing.T) {
	f := newFixture(t)

	view, err := f.svc.Markers(context.Background(), ViewQuery{Spec: geo.PostcodeTotals()})
	require.NoError(t, err)

	require.Len(t, view.Markers, 1)
	assert.Equal(t, "3701 (7)", view.Markers[0].Label)
	assert.Equal(t, []domain.JoinMiss{{Prefix: "3981", Count: 2}}, view.Misses)
	assert.Len(t, view.Table, 2, "a miss stays in the table")

	require.NotNil(t, view.Center)
	assert.InDelta(t, 52.08, view.Center.Lat, 1e-9)
	assert.InDelta(t, 5.23, view.Center.Lon, 1e-9)
	require.NotNil(t, view.Bounds)
}

func TestDatasetServiceMarkersWithoutCoordinates(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.CoordinatesFile = filepath.Join(t.TempDir(), "absent.csv")

	view, err := f.svc.Markers(context.Background(), ViewQuery{Spec: geo.PostcodeTotals()})
	require.NoError(t, err)
	assert.Empty(t, view.Markers)
	assert.Len(t, view.Misses, 2)
	assert.Nil(t, view.Center)
}

func TestDatasetServiceMarkersGeoJSON(t *testing.T) {
	f := newFixture(t)

	data, err := f.svc.MarkersGeoJSON(context.Background(), ViewQuery{Spec: geo.PostcodeTotals()})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
	assert.Contains(t, string(data), `"3701 (7)"`)
}

func TestDatasetServiceExports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var csvBuf bytes.Buffer
	require.NoError(t, f.svc.ExportDatasetCSV(ctx, &csvBuf, dataprocessing.Filter{}))
	assert.Contains(t, csvBuf.String(), "GEMEENTENAAM;GEMEENTENAAM_LEERLING")
	assert.Contains(t, csvBuf.String(), "LEEFTIJD_5;4;5")

	var aggBuf bytes.Buffer
	require.NoError(t, f.svc.ExportAggregateCSV(ctx, &aggBuf, ViewQuery{Spec: geo.PostcodeTotals()}))
	assert.Contains(t, aggBuf.String(), "3701;7")

	var xlsxBuf bytes.Buffer
	require.NoError(t, f.svc.ExportAggregateXLSX(ctx, &xlsxBuf, dataprocessing.Filter{}))
	wb, err := excelize.OpenReader(bytes.NewReader(xlsxBuf.Bytes()))
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{"Bestemming", "School en herkomst", "Postcodes"}, wb.GetSheetList())
}

func TestDatasetServiceInvalidateAndReload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Dataset(ctx)
	require.NoError(t, err)
	_, ok := f.svc.Current()
	assert.True(t, ok)

	f.svc.Invalidate()
	_, ok = f.svc.Current()
	assert.False(t, ok)

	reloaded, err := f.svc.Reload(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, reloaded)
	assert.Equal(t, first.Fingerprint, reloaded.Fingerprint)
}
