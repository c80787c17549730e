package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/observability"
	"github.com/tablefold/tablefold/internal/queue"
	"github.com/tablefold/tablefold/internal/selection"
)

// SelectionHandler serves the job multi-select used for batch retry and
// batch delete. The selection survives paging and filtering; jobs that leave
// the queue are dropped from it by the queue's change hook.
type SelectionHandler struct {
	logger   *observability.Logger
	queue    *queue.Queue
	sel      *selection.JobSelection
	pageSize int
}

func NewSelectionHandler(logger *observability.Logger, q *queue.Queue, sel *selection.JobSelection, pageSize int) *SelectionHandler {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &SelectionHandler{
		logger:   logger.WithComponent("selection"),
		queue:    q,
		sel:      sel,
		pageSize: pageSize,
	}
}

type selectionState struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

func (h *SelectionHandler) state() selectionState {
	ids := h.sel.IDs()
	return selectionState{IDs: ids, Count: len(ids)}
}

func (h *SelectionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state())
}

// Toggle flips one job's membership in the selection.
func (h *SelectionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobId")
	if _, ok := h.queue.Get(id); !ok {
		writeError(w, http.StatusNotFound, "job not found", "")
		return
	}
	h.sel.Toggle(id)
	writeJSON(w, http.StatusOK, h.state())
}

type pageToggleRequest struct {
	Mode     domain.ConversionMode `json:"mode"`
	Filter   string                `json:"filter"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"pageSize"`
}

// TogglePage selects every job on the given page, or clears exactly those
// jobs when all of them are already selected.
func (h *SelectionHandler) TogglePage(w http.ResponseWriter, r *http.Request) {
	var req pageToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !req.Mode.Valid() {
		writeError(w, http.StatusBadRequest, "invalid mode", "")
		return
	}
	if req.PageSize <= 0 {
		req.PageSize = h.pageSize
	}

	view := h.queue.Filter(req.Mode, req.Filter, req.Page, req.PageSize)
	visible := make([]string, len(view.Jobs))
	for i, job := range view.Jobs {
		visible[i] = job.ID
	}
	h.sel.TogglePage(visible)
	writeJSON(w, http.StatusOK, h.state())
}

type batchResult struct {
	Processed int      `json:"processed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// RetrySelected retries every selected job that is retryable. Jobs without a
// source handle or not in the error state are counted as skipped.
func (h *SelectionHandler) RetrySelected(w http.ResponseWriter, r *http.Request) {
	var res batchResult
	for _, id := range h.sel.IDs() {
		err := h.queue.Retry(id)
		switch {
		case err == nil:
			res.Processed++
		case errors.Is(err, queue.ErrRetryUnavailable), errors.Is(err, queue.ErrJobNotFound):
			res.Skipped++
		default:
			res.Errors = append(res.Errors, id+": "+err.Error())
		}
	}
	h.logger.Info().Int("processed", res.Processed).Int("skipped", res.Skipped).Msg("Batch retry")
	writeJSON(w, http.StatusOK, res)
}

// DeleteSelected removes every selected job from the queue.
func (h *SelectionHandler) DeleteSelected(w http.ResponseWriter, r *http.Request) {
	var res batchResult
	for _, id := range h.sel.IDs() {
		err := h.queue.Delete(id)
		switch {
		case err == nil:
			res.Processed++
		case errors.Is(err, queue.ErrJobNotFound):
			res.Skipped++
		default:
			res.Errors = append(res.Errors, id+": "+err.Error())
		}
	}
	h.logger.Info().Int("processed", res.Processed).Int("skipped", res.Skipped).Msg("Batch delete")
	writeJSON(w, http.StatusOK, res)
}
