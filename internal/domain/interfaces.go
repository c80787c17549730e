package domain

import (
	"context"

	"github.com/tablefold/tablefold/internal/sheet"
)

// PageRenderer defines the interface for rendering document pages as images
type PageRenderer interface {
	// PageCount reports the true page count of a source document
	PageCount(ctx context.Context, path string) (int, error)

	// RenderPages renders the given 1-based pages as JPEG images
	RenderPages(ctx context.Context, path string, pages []int) ([]PageImage, error)
}

// TableExtractor defines the interface for the external extraction capability:
// given a sequence of page images, returns zero or more named tables of
// string cells, or fails.
type TableExtractor interface {
	ExtractTables(ctx context.Context, images []PageImage) ([]RawTable, error)
}

// TabularReader defines the interface for reading raw tabular data per named
// sheet from a spreadsheet source.
type TabularReader interface {
	ReadSheets(ctx context.Context, path string) ([]RawTable, error)
}

// SpreadsheetEncoder serializes rich-cell sheets into a spreadsheet blob.
type SpreadsheetEncoder interface {
	EncodeSpreadsheet(sheets []sheet.Sheet) ([]byte, error)
}

// DocumentEncoder serializes the selected sheets into a document blob.
type DocumentEncoder interface {
	EncodeDocument(sheets []sheet.Sheet, opts OutputOptions, selection []int) ([]byte, error)
}

// SnapshotStore persists the queue across restarts. Raw source handles are
// never part of a snapshot.
type SnapshotStore interface {
	Save(ctx context.Context, jobs []Job) error
	Load(ctx context.Context) ([]Job, error)
	Close() error
}
