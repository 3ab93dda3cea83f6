package domain

import "time"

// IssueKind classifies why a file did not contribute rows.
type IssueKind string

const (
	IssueFileRead      IssueKind = "file_read"
	IssueSchema        IssueKind = "schema"
	IssueValueCoercion IssueKind = "value_coercion"
	IssueRowBudget     IssueKind = "row_budget"
)

// FileIssue records a skipped file and the reason it was skipped.
type FileIssue struct {
	File    string    `json:"file"`
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
}

// LoadStatus distinguishes the outcomes a caller has to present differently.
type LoadStatus string

const (
	LoadStatusNoFiles    LoadStatus = "no_files"
	LoadStatusAllSkipped LoadStatus = "all_skipped"
	LoadStatusPartial    LoadStatus = "partial"
	LoadStatusComplete   LoadStatus = "complete"
)

// Dataset is the assembled long-format result of one load. It must not be
// mutated once returned by the loader.
type Dataset struct {
	Records         []LongRecord `json:"records"`
	AgeBands        []string     `json:"age_bands"`
	ProcessedFiles  []string     `json:"processed_files"`
	SkippedFiles    []FileIssue  `json:"skipped_files"`
	DiscoveredFiles int          `json:"discovered_files"`
	Fingerprint     string       `json:"fingerprint,omitempty"`
	LoadedAt        time.Time    `json:"loaded_at"`
}

// Columns returns the long-format schema. It is the same for empty datasets.
func (d *Dataset) Columns() []string {
	cols := make([]string, len(LongColumns))
	copy(cols, LongColumns)
	return cols
}

// Len returns the number of long rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Status derives the load outcome from discovered and processed counts.
func (d *Dataset) Status() LoadStatus {
	switch {
	case d.DiscoveredFiles == 0:
		return LoadStatusNoFiles
	case len(d.ProcessedFiles) == 0:
		return LoadStatusAllSkipped
	case len(d.ProcessedFiles) < d.DiscoveredFiles:
		return LoadStatusPartial
	default:
		return LoadStatusComplete
	}
}

// Summary is the dataset overview returned to dashboard collaborators.
type Summary struct {
	Status          LoadStatus  `json:"status"`
	DiscoveredFiles int         `json:"discovered_files"`
	ProcessedFiles  []string    `json:"processed_files"`
	SkippedFiles    []FileIssue `json:"skipped_files"`
	AgeBands        []string    `json:"age_bands"`
	Columns         []string    `json:"columns"`
	RowCount        int         `json:"row_count"`
	LoadedAt        time.Time   `json:"loaded_at"`
}

// Summarize builds the overview of d.
func (d *Dataset) Summarize() Summary {
	return Summary{
		Status:          d.Status(),
		DiscoveredFiles: d.DiscoveredFiles,
		ProcessedFiles:  d.ProcessedFiles,
		SkippedFiles:    d.SkippedFiles,
		AgeBands:        d.AgeBands,
		Columns:         d.Columns(),
		RowCount:        d.Len(),
		LoadedAt:        d.LoadedAt,
	}
}
