package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/observability"
	"github.com/tablefold/tablefold/internal/queue"
	"github.com/tablefold/tablefold/internal/render"
)

// JobHandlerConfig carries the upload limits and paging defaults.
type JobHandlerConfig struct {
	UploadDir       string
	MaxUploadBytes  int64
	DefaultPageSize int
}

// JobHandler serves the per-job endpoints: upload, listing, lifecycle
// actions, output options and thumbnails.
type JobHandler struct {
	logger      *observability.Logger
	queue       *queue.Queue
	thumbnailer *render.Thumbnailer
	cfg         JobHandlerConfig
}

func NewJobHandler(logger *observability.Logger, q *queue.Queue, t *render.Thumbnailer, cfg JobHandlerConfig) *JobHandler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 100 << 20
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 10
	}
	return &JobHandler{
		logger:      logger.WithComponent("jobs"),
		queue:       q,
		thumbnailer: t,
		cfg:         cfg,
	}
}

var extByMode = map[domain.ConversionMode][]string{
	domain.ModeDocToSheet: {".pdf"},
	domain.ModeSheetToDoc: {".xlsx", ".xlsm"},
}

// Upload accepts a multipart file plus a mode field, stores the file and
// enqueues the job. Re-uploading an identical file replaces its queue slot.
func (h *JobHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	mode := domain.ConversionMode(r.FormValue("mode"))
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, "invalid mode", "mode must be doc_to_sheet or sheet_to_doc")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file", "a file field is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !extAllowed(mode, ext) {
		writeError(w, http.StatusBadRequest, "unsupported file type",
			"expected one of: "+strings.Join(extByMode[mode], ", "))
		return
	}

	dst, err := os.CreateTemp(h.cfg.UploadDir, "upload-*"+ext)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create upload file")
		writeError(w, http.StatusInternalServerError, "failed to store upload", "")
		return
	}
	size, err := io.Copy(dst, file)
	closeErr := dst.Close()
	if err != nil || closeErr != nil {
		os.Remove(dst.Name())
		writeError(w, http.StatusInternalServerError, "failed to store upload", "")
		return
	}

	// Identity comes from the client's file, not the server-side copy: the
	// same file re-uploaded must map to the same id so it replaces its slot.
	// Browsers send File.lastModified as milliseconds since the epoch.
	var modTime time.Time
	if v := r.FormValue("lastModified"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			modTime = time.UnixMilli(ms)
		}
	}

	job := domain.Job{
		ID:         domain.NewJobID(header.Filename, modTime, size),
		FileName:   header.Filename,
		Mode:       mode,
		PageRange:  strings.TrimSpace(r.FormValue("pageRange")),
		SourcePath: dst.Name(),
	}
	job = h.queue.Add(job)

	if mode == domain.ModeDocToSheet && h.thumbnailer != nil {
		go h.generateThumbnails(job.ID, job.SourcePath)
	}

	h.logger.WithJob(job.ID).Info().
		Str("file", job.FileName).
		Str("mode", string(job.Mode)).
		Msg("Job queued")
	writeJSON(w, http.StatusCreated, job)
}

func (h *JobHandler) generateThumbnails(jobID, path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	count, err := h.thumbnailer.Generate(ctx, jobID, path)
	if err != nil {
		h.logger.WithJob(jobID).Warn().Err(err).Msg("Thumbnail generation failed")
		return
	}
	if err := h.queue.SetThumbnails(jobID, count); err != nil {
		h.logger.WithJob(jobID).Debug().Err(err).Msg("Job gone before thumbnails attached")
	}
}

// List returns a filtered, paginated view of one conversion mode's queue.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	mode := domain.ConversionMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = domain.ModeDocToSheet
	}
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, "invalid mode", "")
		return
	}
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", h.cfg.DefaultPageSize)

	view := h.queue.Filter(mode, r.URL.Query().Get("filter"), page, pageSize)
	writeJSON(w, http.StatusOK, view)
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, ok := h.queue.Get(chi.URLParam(r, "jobId"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found", "")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobId")
	if err := h.queue.Delete(id); err != nil {
		writeDomainError(w, err)
		return
	}
	if h.thumbnailer != nil {
		h.thumbnailer.Drop(r.Context(), id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *JobHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobId")
	if err := h.queue.Retry(id); err != nil {
		writeDomainError(w, err)
		return
	}
	job, _ := h.queue.Get(id)
	writeJSON(w, http.StatusOK, job)
}

type optionsPatch struct {
	Orientation *string `json:"orientation"`
	FontSize    *string `json:"fontSize"`
	AutoWidth   *bool   `json:"autoWidth"`
	PageRange   *string `json:"pageRange"`
}

// UpdateOptions applies a partial update to a job's output options and page
// range. Options are editable in any job state.
func (h *JobHandler) UpdateOptions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobId")

	var patch optionsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if patch.Orientation != nil && *patch.Orientation != domain.OrientationPortrait && *patch.Orientation != domain.OrientationLandscape {
		writeError(w, http.StatusBadRequest, "invalid orientation", "must be portrait or landscape")
		return
	}
	if patch.FontSize != nil {
		switch *patch.FontSize {
		case domain.FontSizeSmall, domain.FontSizeMedium, domain.FontSizeLarge:
		default:
			writeError(w, http.StatusBadRequest, "invalid font size", "must be small, medium or large")
			return
		}
	}

	job, ok := h.queue.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found", "")
		return
	}

	opts := job.OutputOptions
	if patch.Orientation != nil {
		opts.Orientation = *patch.Orientation
	}
	if patch.FontSize != nil {
		opts.FontSize = *patch.FontSize
	}
	if patch.AutoWidth != nil {
		opts.AutoWidth = *patch.AutoWidth
	}
	if err := h.queue.SetOutputOptions(id, opts); err != nil {
		writeDomainError(w, err)
		return
	}
	if patch.PageRange != nil {
		if err := h.queue.SetPageRange(id, *patch.PageRange); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	job, _ = h.queue.Get(id)
	writeJSON(w, http.StatusOK, job)
}

// Thumbnail serves one cached page thumbnail as JPEG. With ?advance=true the
// job's cursor first moves to the next page, wrapping at the end.
func (h *JobHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobId")
	job, ok := h.queue.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found", "")
		return
	}
	if job.ThumbnailCount == 0 {
		writeError(w, http.StatusNotFound, "no thumbnails for this job", "")
		return
	}

	index := job.ThumbnailCursor
	if r.URL.Query().Get("advance") == "true" {
		next, err := h.queue.AdvanceThumbnail(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		index = next
	} else if v := r.URL.Query().Get("index"); v != "" {
		index = queryInt(r, "index", index)
	}

	data, err := h.thumbnailer.Lookup(r.Context(), id, index)
	if err != nil {
		writeError(w, http.StatusNotFound, "thumbnail not available", "")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("X-Thumbnail-Index", strconv.Itoa(index))
	w.Header().Set("X-Thumbnail-Count", strconv.Itoa(job.ThumbnailCount))
	_, _ = w.Write(data)
}

func extAllowed(mode domain.ConversionMode, ext string) bool {
	for _, allowed := range extByMode[mode] {
		if ext == allowed {
			return true
		}
	}
	return false
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
