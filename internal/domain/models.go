package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/tablefold/tablefold/internal/sheet"
)

// ConversionMode is the direction of a conversion job, fixed at creation.
type ConversionMode string

const (
	// ModeDocToSheet extracts tables from a document into a spreadsheet.
	ModeDocToSheet ConversionMode = "doc_to_sheet"
	// ModeSheetToDoc renders a spreadsheet's tables as a document.
	ModeSheetToDoc ConversionMode = "sheet_to_doc"
)

// Valid reports whether the mode is one of the two supported directions.
func (m ConversionMode) Valid() bool {
	return m == ModeDocToSheet || m == ModeSheetToDoc
}

// JobStatus represents the lifecycle state of a conversion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusSuccess    JobStatus = "success"
	StatusError      JobStatus = "error"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Orientation values for document output.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// Font size tiers for document output.
const (
	FontSizeSmall  = "small"
	FontSizeMedium = "medium"
	FontSizeLarge  = "large"
)

// OutputOptions is the mode-specific rendering configuration, defaulted at
// creation and user-editable at any time before download.
type OutputOptions struct {
	Orientation string `json:"orientation"`
	FontSize    string `json:"fontSize"`
	AutoWidth   bool   `json:"autoWidth"`
}

// DefaultOutputOptions returns the creation-time defaults for a mode.
func DefaultOutputOptions(mode ConversionMode) OutputOptions {
	opts := OutputOptions{
		Orientation: OrientationPortrait,
		FontSize:    FontSizeMedium,
		AutoWidth:   true,
	}
	if mode == ModeSheetToDoc {
		opts.Orientation = OrientationLandscape
	}
	return opts
}

// Job is one unit of conversion work. Jobs are handled as values: the queue
// replaces whole jobs on mutation rather than editing them in place.
type Job struct {
	ID              string          `json:"id"`
	FileName        string          `json:"fileName"`
	Mode            ConversionMode  `json:"mode"`
	Status          JobStatus       `json:"status"`
	PageRange       string          `json:"pageRange,omitempty"`
	ProgressMessage string          `json:"progressMessage,omitempty"`
	ResultSheets    []sheet.Sheet   `json:"resultSheets,omitempty"`
	ErrorDetail     string          `json:"errorDetail,omitempty"`
	OutputOptions   OutputOptions   `json:"outputOptions"`
	ThumbnailCount  int             `json:"thumbnailCount,omitempty"`
	ThumbnailCursor int             `json:"thumbnailCursor,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	// SourcePath is the job's exclusive handle on the raw upload. It is never
	// persisted; an empty path after a reload is the sentinel that retry is
	// impossible without a re-upload.
	SourcePath string `json:"-"`

	// Attempt numbers successive runs of this job id. A completion carrying
	// a stale attempt number must not be applied.
	Attempt uint64 `json:"-"`
}

// NewJobID derives a stable job identity from source file identity, so
// re-adding the same file replaces its slot instead of duplicating it.
func NewJobID(name string, modTime time.Time, size int64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", name, modTime.UnixNano(), size)))
	return hex.EncodeToString(h[:])[:16]
}

// HasSource reports whether the job still holds its raw source handle.
func (j Job) HasSource() bool {
	return j.SourcePath != ""
}

// CanRetry reports whether a manual retry is currently allowed.
func (j Job) CanRetry() bool {
	return j.Status == StatusError && j.HasSource()
}

// Workbook wraps the job's result sheets into the editable model.
func (j Job) Workbook() sheet.Workbook {
	return sheet.NewWorkbook(j.ResultSheets...)
}

// Clone returns a deep copy of the job, including its result sheets.
func (j Job) Clone() Job {
	out := j
	if j.ResultSheets != nil {
		out.ResultSheets = make([]sheet.Sheet, len(j.ResultSheets))
		for i, s := range j.ResultSheets {
			out.ResultSheets[i] = s.Clone()
		}
	}
	return out
}

// PageImage is one rendered page of a source document.
type PageImage struct {
	PageNumber int
	Data       []byte // JPEG bytes
	Width      int
	Height     int
}

// RawTable is one named table of plain string cells, as produced by the
// extraction capability or a tabular source reader.
type RawTable struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}
