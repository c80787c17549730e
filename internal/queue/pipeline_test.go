package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/observability"
)

type fakeRenderer struct {
	pages    int
	rendered []int
	err      error
}

func (r *fakeRenderer) PageCount(context.Context, string) (int, error) {
	return r.pages, r.err
}

func (r *fakeRenderer) RenderPages(_ context.Context, _ string, pages []int) ([]domain.PageImage, error) {
	r.rendered = pages
	images := make([]domain.PageImage, len(pages))
	for i, p := range pages {
		images[i] = domain.PageImage{PageNumber: p}
	}
	return images, nil
}

type fakeExtractor struct {
	tables []domain.RawTable
	err    error
}

func (e *fakeExtractor) ExtractTables(context.Context, []domain.PageImage) ([]domain.RawTable, error) {
	return e.tables, e.err
}

type fakeReader struct {
	tables []domain.RawTable
	err    error
}

func (r *fakeReader) ReadSheets(context.Context, string) ([]domain.RawTable, error) {
	return r.tables, r.err
}

func sourcedJob(pageRange string) domain.Job {
	return domain.Job{
		ID:         "j1",
		FileName:   "input.pdf",
		Mode:       domain.ModeDocToSheet,
		PageRange:  pageRange,
		SourcePath: "/nonexistent/input.pdf",
	}
}

func TestExtractionPipeline(t *testing.T) {
	renderer := &fakeRenderer{pages: 5}
	extractor := &fakeExtractor{tables: []domain.RawTable{
		{Name: "Table 1", Rows: [][]string{{"h1", "h2"}, {"a", "b"}}},
	}}
	p := NewExtractionPipeline(renderer, extractor, observability.Nop())

	sheets, err := p.Run(context.Background(), sourcedJob("2-3"))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, renderer.rendered)
	require.Len(t, sheets, 1)
	assert.Equal(t, "Table 1", sheets[0].Name)
	assert.Equal(t, "a", sheets[0].Rows[1][0].Value)
}

func TestExtractionPipelineNoSource(t *testing.T) {
	p := NewExtractionPipeline(&fakeRenderer{pages: 5}, &fakeExtractor{}, observability.Nop())

	job := sourcedJob("")
	job.SourcePath = ""
	_, err := p.Run(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeState, domain.TypeOf(err))
}

func TestExtractionPipelineEmptySelection(t *testing.T) {
	p := NewExtractionPipeline(&fakeRenderer{pages: 5}, &fakeExtractor{}, observability.Nop())

	_, err := p.Run(context.Background(), sourcedJob("9"))
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeSelection, domain.TypeOf(err))
}

func TestExtractionPipelineNoTables(t *testing.T) {
	p := NewExtractionPipeline(&fakeRenderer{pages: 2}, &fakeExtractor{tables: nil}, observability.Nop())

	_, err := p.Run(context.Background(), sourcedJob(""))
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeExtraction, domain.TypeOf(err))
	assert.Contains(t, err.Error(), "no tables detected")
}

func TestExtractionPipelineHeadersOnly(t *testing.T) {
	extractor := &fakeExtractor{tables: []domain.RawTable{
		{Name: "Empty", Rows: [][]string{{"h1", "h2"}}},
		{Name: "AlsoEmpty", Rows: [][]string{{"x"}}},
	}}
	p := NewExtractionPipeline(&fakeRenderer{pages: 1}, extractor, observability.Nop())

	_, err := p.Run(context.Background(), sourcedJob(""))
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeExtraction, domain.TypeOf(err))
	assert.Contains(t, err.Error(), "only headers")
}

func TestExtractionPipelineHeadersPlusData(t *testing.T) {
	// One table with a data row is enough; header-only siblings survive.
	extractor := &fakeExtractor{tables: []domain.RawTable{
		{Name: "Empty", Rows: [][]string{{"h"}}},
		{Name: "Full", Rows: [][]string{{"h"}, {"v"}}},
	}}
	p := NewExtractionPipeline(&fakeRenderer{pages: 1}, extractor, observability.Nop())

	sheets, err := p.Run(context.Background(), sourcedJob(""))
	require.NoError(t, err)
	assert.Len(t, sheets, 2)
}

func TestTabularPipeline(t *testing.T) {
	reader := &fakeReader{tables: []domain.RawTable{
		{Name: "Sheet1", Rows: [][]string{{"h"}, {"v"}}},
	}}
	p := NewTabularPipeline(reader, observability.Nop())

	job := sourcedJob("")
	job.Mode = domain.ModeSheetToDoc
	sheets, err := p.Run(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, "Sheet1", sheets[0].Name)
}

func TestTabularPipelineEmpty(t *testing.T) {
	p := NewTabularPipeline(&fakeReader{}, observability.Nop())

	_, err := p.Run(context.Background(), sourcedJob(""))
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeRead, domain.TypeOf(err))
}
