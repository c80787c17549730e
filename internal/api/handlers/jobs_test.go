package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/observability"
	"github.com/tablefold/tablefold/internal/queue"
	"github.com/tablefold/tablefold/internal/sheet"
)

type stubPipeline struct{}

func (stubPipeline) Run(context.Context, domain.Job) ([]sheet.Sheet, error) {
	return nil, domain.ReadError("source yields no sheets with data", nil)
}

func newUploadHandler(t *testing.T) (*JobHandler, *queue.Queue) {
	t.Helper()
	q := queue.New(context.Background(), queue.Config{MaxConcurrentJobs: 1}, observability.Nop(),
		map[domain.ConversionMode]queue.Pipeline{domain.ModeSheetToDoc: stubPipeline{}})
	h := NewJobHandler(observability.Nop(), q, nil, JobHandlerConfig{UploadDir: t.TempDir()})
	return h, q
}

func uploadRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadSameFileReplacesSlot(t *testing.T) {
	h, q := newUploadHandler(t)
	fields := map[string]string{"mode": "sheet_to_doc", "lastModified": "1700000000000"}
	content := []byte("workbook-bytes")

	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, fields, "report.xlsx", content))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, fields, "report.xlsx", content))
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, q.Jobs(), 1)

	// A different client timestamp is a different upload identity.
	fields["lastModified"] = "1700000005000"
	rec = httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, fields, "report.xlsx", content))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, q.Jobs(), 2)
}

func TestUploadDedupesWithoutClientTimestamp(t *testing.T) {
	h, q := newUploadHandler(t)
	fields := map[string]string{"mode": "sheet_to_doc"}
	content := []byte("workbook-bytes")

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.Upload(rec, uploadRequest(t, fields, "report.xlsx", content))
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Len(t, q.Jobs(), 1)
}

func TestUploadRejectsMismatchedExtension(t *testing.T) {
	h, q := newUploadHandler(t)
	fields := map[string]string{"mode": "sheet_to_doc"}

	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, fields, "report.pdf", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, q.Jobs())
}
