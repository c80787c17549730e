package queue

import (
	"context"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/observability"
	"github.com/tablefold/tablefold/internal/pagerange"
	"github.com/tablefold/tablefold/internal/sheet"
)

// Pipeline fulfils one job's conversion through the external collaborators.
// All failures are reduced to a single error at this boundary; the queue
// turns it into a terminal error status.
type Pipeline interface {
	Run(ctx context.Context, job domain.Job) ([]sheet.Sheet, error)
}

// ExtractionPipeline converts a document into rich-cell sheets: paginate
// into page images, call the extraction capability, wrap the raw tables.
type ExtractionPipeline struct {
	renderer  domain.PageRenderer
	extractor domain.TableExtractor
	logger    *observability.Logger
}

// NewExtractionPipeline creates the document-to-spreadsheet pipeline.
func NewExtractionPipeline(renderer domain.PageRenderer, extractor domain.TableExtractor, logger *observability.Logger) *ExtractionPipeline {
	return &ExtractionPipeline{
		renderer:  renderer,
		extractor: extractor,
		logger:    logger.WithComponent("pipeline.extract"),
	}
}

// Run executes the extraction pipeline for one job.
func (p *ExtractionPipeline) Run(ctx context.Context, job domain.Job) ([]sheet.Sheet, error) {
	if !job.HasSource() {
		return nil, domain.StateError("source file is no longer available; upload it again to retry", nil)
	}

	// The range expression is re-resolved against the true page count, which
	// is only known once the source is inspected.
	pageCount, err := p.renderer.PageCount(ctx, job.SourcePath)
	if err != nil {
		return nil, err
	}

	pages := pagerange.Parse(job.PageRange, pageCount)
	if len(pages) == 0 {
		return nil, domain.SelectionError("page selection resolves to no pages", nil)
	}

	p.logger.Debug().Str("job_id", job.ID).Int("pages", len(pages)).Msg("rendering pages")
	images, err := p.renderer.RenderPages(ctx, job.SourcePath, pages)
	if err != nil {
		return nil, err
	}

	tables, err := p.extractor.ExtractTables(ctx, images)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, domain.ExtractionError("no tables detected in the selected pages", nil)
	}
	if headersOnly(tables) {
		return nil, domain.ExtractionError("detected tables contain only headers, no data rows", nil)
	}

	return wrapTables(tables), nil
}

// TabularPipeline converts a spreadsheet source into rich-cell sheets.
type TabularPipeline struct {
	reader domain.TabularReader
	logger *observability.Logger
}

// NewTabularPipeline creates the spreadsheet-to-document source pipeline.
func NewTabularPipeline(reader domain.TabularReader, logger *observability.Logger) *TabularPipeline {
	return &TabularPipeline{
		reader: reader,
		logger: logger.WithComponent("pipeline.tabular"),
	}
}

// Run executes the tabular pipeline for one job.
func (p *TabularPipeline) Run(ctx context.Context, job domain.Job) ([]sheet.Sheet, error) {
	if !job.HasSource() {
		return nil, domain.StateError("source file is no longer available; upload it again to retry", nil)
	}

	tables, err := p.reader.ReadSheets(ctx, job.SourcePath)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, domain.ReadError("source yields no sheets with data", nil)
	}

	p.logger.Debug().Str("job_id", job.ID).Int("sheets", len(tables)).Msg("source read")
	return wrapTables(tables), nil
}

// wrapTables lifts raw string tables into the rich-cell model; every cell
// starts with an empty style.
func wrapTables(tables []domain.RawTable) []sheet.Sheet {
	sheets := make([]sheet.Sheet, len(tables))
	for i, t := range tables {
		sheets[i] = sheet.FromRaw(t.Name, t.Rows)
	}
	return sheets
}

// headersOnly reports whether no table carries a data row beneath its
// header row.
func headersOnly(tables []domain.RawTable) bool {
	for _, t := range tables {
		if len(t.Rows) > 1 {
			return false
		}
	}
	return true
}
