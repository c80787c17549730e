package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/encode"
	"github.com/tablefold/tablefold/internal/observability"
	"github.com/tablefold/tablefold/internal/pagerange"
	"github.com/tablefold/tablefold/internal/queue"
)

// DownloadHandler encodes a finished job's result sheets into the output
// document for its mode. Encoding failures surface as HTTP errors only; the
// job keeps its success status and remains downloadable after a fix.
type DownloadHandler struct {
	logger *observability.Logger
	queue  *queue.Queue
	xlsx   *encode.XLSX
	pdf    *encode.PDF
}

func NewDownloadHandler(logger *observability.Logger, q *queue.Queue, xlsx *encode.XLSX, pdf *encode.PDF) *DownloadHandler {
	return &DownloadHandler{
		logger: logger.WithComponent("download"),
		queue:  q,
		xlsx:   xlsx,
		pdf:    pdf,
	}
}

func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobId")
	job, ok := h.queue.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found", "")
		return
	}
	if job.Status != domain.StatusSuccess {
		writeError(w, http.StatusConflict, "job has no result yet", "only successful jobs can be downloaded")
		return
	}

	var (
		data        []byte
		contentType string
		name        string
		err         error
	)
	switch job.Mode {
	case domain.ModeDocToSheet:
		data, err = h.xlsx.EncodeSpreadsheet(job.ResultSheets)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		name = outputName(job.FileName, ".xlsx")
	case domain.ModeSheetToDoc:
		sel := pagerange.Parse(job.PageRange, len(job.ResultSheets))
		data, err = h.pdf.EncodeDocument(job.ResultSheets, job.OutputOptions, sel)
		contentType = "application/pdf"
		name = outputName(job.FileName, ".pdf")
	default:
		writeError(w, http.StatusInternalServerError, "unknown conversion mode", "")
		return
	}
	if err != nil {
		h.logger.WithJob(id).Warn().Err(err).Msg("Encoding failed")
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = w.Write(data)
}

func outputName(source, ext string) string {
	base := source
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = "converted"
	}
	return base + ext
}
