package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pupilflow/internal/files"
	"pupilflow/internal/shared/testutil"
	"pupilflow/pkg/contracts/domain"
)

type recordingObserver struct {
	mu        sync.Mutex
	processed []string
	skipped   []domain.FileIssue
	completed int
}

func (o *recordingObserver) FileProcessed(_ context.Context, frame *FileFrame) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.processed = append(o.processed, frame.File)
}

func (o *recordingObserver) FileSkipped(_ context.Context, issue domain.FileIssue) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped = append(o.skipped, issue)
}

func (o *recordingObserver) LoadCompleted(context.Context, *domain.Dataset, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed++
}

func newTestLoader(t *testing.T, cfg LoaderConfig) (*Loader, *recordingObserver) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	obs := &recordingObserver{}
	return NewLoader(logger, files.NewDiscovery(""), cfg, obs), obs
}

func TestLoadSkipsFileMissingMandatoryColumn(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTransportCSV(t, dir, "a.csv",
		testutil.MandatoryHeader("LEEFTIJD_4", "LEEFTIJD_5", "LEEFTIJD_6"),
		[][]string{{"Utrecht", "Zeist", "De Regenboog", "SBO", "3701AB", "1", "2", "3"}})
	testutil.WriteTransportCSV(t, dir, "b.csv",
		[]string{"GEMEENTENAAM", "GEMEENTENAAM_LEERLING", "INSTELLINGSNAAM_VESTIGING", "POSTCODE_LEERLING", "LEEFTIJD_4"},
		[][]string{{"Utrecht", "Zeist", "Het Kompas", "3701AB", "9"}})

	loader, obs := newTestLoader(t, LoaderConfig{Workers: 2})
	ds, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.csv"}, ds.ProcessedFiles)
	assert.Equal(t, 3, ds.Len())
	for _, r := range ds.Records {
		assert.Equal(t, "a.csv", r.SourceFile)
	}
	require.Len(t, ds.SkippedFiles, 1)
	assert.Equal(t, "b.csv", ds.SkippedFiles[0].File)
	assert.Equal(t, domain.IssueSchema, ds.SkippedFiles[0].Kind)
	assert.Equal(t, domain.LoadStatusPartial, ds.Status())
	assert.Equal(t, 2, ds.DiscoveredFiles)

	assert.Equal(t, []string{"a.csv"}, obs.processed)
	assert.Len(t, obs.skipped, 1)
	assert.Equal(t, 1, obs.completed)
}

func TestLoadInvalidTokenExcludesWholeFile(t *testing.T) {
	dir := t.TempDir()
	header := testutil.MandatoryHeader("LEEFTIJD_4", "LEEFTIJD_5")
	testutil.WriteTransportCSV(t, dir, "a.csv", header, [][]string{
		{"Utrecht", "Zeist", "De Regenboog", "SBO", "3701AB", "1", "2"},
	})
	testutil.WriteTransportCSV(t, dir, "b.csv", header, [][]string{
		{"Utrecht", "Zeist", "Het Kompas", "BAO", "3701AB", "1", "2"},
		{"Utrecht", "Zeist", "Het Kompas", "BAO", "3701AB", "abc", "2"},
	})

	loader, _ := newTestLoader(t, LoaderConfig{Workers: 1})
	ds, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.csv"}, ds.ProcessedFiles)
	assert.Equal(t, 2, ds.Len())
	require.Len(t, ds.SkippedFiles, 1)
	assert.Equal(t, domain.IssueValueCoercion, ds.SkippedFiles[0].Kind)
}

func TestLoadAgeBandUnionIncludesRejectedFiles(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTransportCSV(t, dir, "a.csv",
		testutil.MandatoryHeader("LEEFTIJD_5"),
		[][]string{{"Utrecht", "Zeist", "De Regenboog", "SBO", "3701AB", "2"}})
	testutil.WriteTransportCSV(t, dir, "b.csv",
		[]string{"GEMEENTENAAM", "LEEFTIJD_11"},
		[][]string{{"Utrecht", "1"}})

	loader, _ := newTestLoader(t, LoaderConfig{Workers: 2})
	ds, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"LEEFTIJD_5", "LEEFTIJD_11"}, ds.AgeBands)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "LEEFTIJD_11", ds.Records[1].AgeLabel)
	assert.Equal(t, 0, ds.Records[1].Count)
}

func TestLoadAgeBandUnionUsesRawHeaderNames(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTransportCSV(t, dir, "a.csv",
		testutil.MandatoryHeader("LEEFTIJD_4"),
		[][]string{{"Utrecht", "Zeist", "De Regenboog", "SBO", "3701AB", "2"}})
	testutil.WriteTransportCSV(t, dir, "b.csv",
		testutil.MandatoryHeader("leeftijd_9"),
		[][]string{{"Utrecht", "Zeist", "Het Kompas", "BAO", "3701CD", "3"}})

	loader, _ := newTestLoader(t, LoaderConfig{Workers: 2})
	ds, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"LEEFTIJD_4"}, ds.AgeBands, "a lower-case band is not part of the union")
	assert.Equal(t, []string{"a.csv", "b.csv"}, ds.ProcessedFiles)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "LEEFTIJD_4", ds.Records[1].AgeLabel)
	assert.Equal(t, 0, ds.Records[1].Count)
}

// firstMessageHook runs fire once, before the first record whose message
// starts with prefix is handled.
type firstMessageHook struct {
	prefix string
	fire   func()
	once   sync.Once
}

type hookHandler struct {
	slog.Handler
	hook *firstMessageHook
}

func (h *hookHandler) Handle(ctx context.Context, r slog.Record) error {
	if strings.HasPrefix(r.Message, h.hook.prefix) {
		h.hook.once.Do(h.hook.fire)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *hookHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &hookHandler{Handler: h.Handler.WithAttrs(attrs), hook: h.hook}
}

func (h *hookHandler) WithGroup(name string) slog.Handler {
	return &hookHandler{Handler: h.Handler.WithGroup(name), hook: h.hook}
}

func TestLoadRereadsFileUnreadableDuringScan(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteTransportCSV(t, dir, "a.csv",
		testutil.MandatoryHeader("LEEFTIJD_4"),
		[][]string{{"Utrecht", "Zeist", "De Regenboog", "SBO", "3701AB", "2"}})

	// late.csv appears only after the scan has failed to open it.
	hook := &firstMessageHook{
		prefix: "Header unreadable",
		fire: func() {
			testutil.WriteTransportCSV(t, dir, "late.csv",
				testutil.MandatoryHeader("LEEFTIJD_4"),
				[][]string{{"Utrecht", "Houten", "Het Kompas", "BAO", "3992CD", "5"}})
		},
	}
	logger := slog.New(&hookHandler{Handler: testutil.NewBufferedSlogHandler(t), hook: hook})
	obs := &recordingObserver{}
	loader := NewLoader(logger, files.NewDiscovery(""), LoaderConfig{Workers: 1}, obs)

	found := []files.FileInfo{
		{Name: "a.csv", Path: a},
		{Name: "late.csv", Path: filepath.Join(dir, "late.csv")},
	}
	ds, err := loader.LoadFiles(context.Background(), found)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.csv", "late.csv"}, ds.ProcessedFiles)
	assert.Empty(t, ds.SkippedFiles)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "late.csv", ds.Records[1].SourceFile)
	assert.Equal(t, 5, ds.Records[1].Count)
	assert.Empty(t, obs.skipped)
}

func TestLoadFileUnreadableInBothPasses(t *testing.T) {
	dir := t.TempDir()
	found := []files.FileInfo{{Name: "gone.csv", Path: filepath.Join(dir, "gone.csv")}}

	loader, obs := newTestLoader(t, LoaderConfig{Workers: 1})
	ds, err := loader.LoadFiles(context.Background(), found)
	require.NoError(t, err)

	require.Len(t, ds.SkippedFiles, 1)
	assert.Equal(t, domain.IssueFileRead, ds.SkippedFiles[0].Kind)
	assert.Len(t, obs.skipped, 1, "the file is reported once")
	assert.Equal(t, domain.LoadStatusAllSkipped, ds.Status())
}

func TestLoadEmptyAndMissingDirectory(t *testing.T) {
	for name, dir := range map[string]string{
		"empty":   t.TempDir(),
		"missing": filepath.Join(t.TempDir(), "absent"),
	} {
		t.Run(name, func(t *testing.T) {
			loader, _ := newTestLoader(t, LoaderConfig{Workers: 2})
			ds, err := loader.Load(context.Background(), dir)
			require.NoError(t, err)

			assert.Equal(t, 0, ds.Len())
			assert.Equal(t, 0, ds.DiscoveredFiles)
			assert.Empty(t, ds.ProcessedFiles)
			assert.Equal(t, domain.LoadStatusNoFiles, ds.Status())
			assert.Equal(t, []string{
				"GEMEENTENAAM", "GEMEENTENAAM_LEERLING", "INSTELLINGSNAAM_VESTIGING",
				"SOORT_PO", "POSTCODE_LEERLING", "bronbestand", "leeftijd_label",
				"aantal", "leeftijd",
			}, ds.Columns())
		})
	}
}

func TestLoadAllSkipped(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteRawFile(t, dir, "empty.csv", "")
	testutil.WriteTransportCSV(t, dir, "bad.csv", []string{"X"}, [][]string{{"1"}})

	loader, _ := newTestLoader(t, LoaderConfig{Workers: 2})
	ds, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, domain.LoadStatusAllSkipped, ds.Status())
	assert.Equal(t, 2, ds.DiscoveredFiles)
	require.Len(t, ds.SkippedFiles, 2)
	assert.Equal(t, "bad.csv", ds.SkippedFiles[0].File)
	assert.Equal(t, domain.IssueSchema, ds.SkippedFiles[0].Kind)
	assert.Equal(t, "empty.csv", ds.SkippedFiles[1].File)
	assert.Equal(t, domain.IssueFileRead, ds.SkippedFiles[1].Kind)
}

func TestLoadPreservesDiscoveryOrder(t *testing.T) {
	dir := t.TempDir()
	header := testutil.MandatoryHeader("LEEFTIJD_4")
	for i := 0; i < 12; i++ {
		rows := make([][]string, 0, i+1)
		for j := 0; j <= i; j++ {
			rows = append(rows, []string{"G", "L", fmt.Sprintf("school-%02d-%02d", i, j), "SBO", "1234AB", "1"})
		}
		testutil.WriteTransportCSV(t, dir, fmt.Sprintf("f%02d.csv", i), header, rows)
	}

	loader, _ := newTestLoader(t, LoaderConfig{Workers: 4})
	ds, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, ds.ProcessedFiles, 12)
	var want []string
	for i := 0; i < 12; i++ {
		assert.Equal(t, fmt.Sprintf("f%02d.csv", i), ds.ProcessedFiles[i])
		for j := 0; j <= i; j++ {
			want = append(want, fmt.Sprintf("school-%02d-%02d", i, j))
		}
	}
	got := make([]string, ds.Len())
	for i, r := range ds.Records {
		got[i] = r.School
	}
	assert.Equal(t, want, got)
}

func TestLoadRowBudget(t *testing.T) {
	dir := t.TempDir()
	header := testutil.MandatoryHeader("LEEFTIJD_4", "LEEFTIJD_5")
	row := []string{"G", "L", "S", "SBO", "1234AB", "1", "1"}
	testutil.WriteTransportCSV(t, dir, "a.csv", header, [][]string{row, row})
	testutil.WriteTransportCSV(t, dir, "b.csv", header, [][]string{row, row})
	testutil.WriteTransportCSV(t, dir, "c.csv", header, [][]string{row})

	loader, _ := newTestLoader(t, LoaderConfig{Workers: 2, MaxRows: 6})
	ds, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.csv", "c.csv"}, ds.ProcessedFiles)
	assert.Equal(t, 6, ds.Len())
	require.Len(t, ds.SkippedFiles, 1)
	assert.Equal(t, "b.csv", ds.SkippedFiles[0].File)
	assert.Equal(t, domain.IssueRowBudget, ds.SkippedFiles[0].Kind)
}

func TestLoadCancelled(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTransportCSV(t, dir, "a.csv", testutil.MandatoryHeader(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader, _ := newTestLoader(t, LoaderConfig{Workers: 1})
	_, err := loader.Load(ctx, dir)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAssemble(t *testing.T) {
	discovered := []files.FileInfo{{Name: "a.csv"}, {Name: "b.csv"}, {Name: "c.csv"}}
	frames := []*FileFrame{
		{File: "a.csv", Records: []domain.LongRecord{{SourceFile: "a.csv"}}},
		nil,
		{File: "c.csv", Records: []domain.LongRecord{{SourceFile: "c.csv"}, {SourceFile: "c.csv"}}},
	}
	issues := []domain.FileIssue{{File: "b.csv", Kind: domain.IssueSchema}}

	ds := Assemble(discovered, frames, issues, []string{"LEEFTIJD_4"})

	assert.Equal(t, []string{"a.csv", "c.csv"}, ds.ProcessedFiles)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, "c.csv", ds.Records[2].SourceFile)
	assert.Equal(t, files.Fingerprint(discovered), ds.Fingerprint)
	assert.Equal(t, domain.LoadStatusPartial, ds.Status())

	summary := ds.Summarize()
	assert.Equal(t, 3, summary.RowCount)
	assert.Equal(t, 3, summary.DiscoveredFiles)
	assert.Len(t, summary.Columns, len(domain.LongColumns))
}

func TestLogObserver(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	obs := NewLogObserver(logger, nil)
	ctx := context.Background()

	obs.FileProcessed(ctx, &FileFrame{File: "a.csv", SourceRows: 2, MalformedRows: 1})
	obs.FileSkipped(ctx, domain.FileIssue{File: "b.csv", Kind: domain.IssueSchema, Message: "missing"})
	obs.LoadCompleted(ctx, &domain.Dataset{DiscoveredFiles: 1}, time.Millisecond)

	assert.True(t, handler.ContainsMessage("File processed"))
	assert.True(t, handler.ContainsAttr("malformed_rows_skipped", int64(1)))
	testutil.AssertLogContains(t, handler, slog.LevelError, "File skipped")
	assert.True(t, handler.ContainsAttr("reason", "schema"))
	assert.True(t, handler.ContainsAttr("status", "all_skipped"))
}
