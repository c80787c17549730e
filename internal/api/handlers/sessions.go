package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/observability"
	"github.com/tablefold/tablefold/internal/queue"
	"github.com/tablefold/tablefold/internal/selection"
	"github.com/tablefold/tablefold/internal/sheet"
)

// SessionHandler serves the edit sessions opened over a finished job's result
// sheets. Each session carries its own draft workbook and cell selection;
// nothing reaches the job until an explicit commit.
type SessionHandler struct {
	logger   *observability.Logger
	queue    *queue.Queue
	sessions *sheet.SessionManager

	mu    sync.Mutex
	cells map[uuid.UUID]*selection.CellSelection
}

func NewSessionHandler(logger *observability.Logger, q *queue.Queue, sessions *sheet.SessionManager) *SessionHandler {
	return &SessionHandler{
		logger:   logger.WithComponent("sessions"),
		queue:    q,
		sessions: sessions,
		cells:    make(map[uuid.UUID]*selection.CellSelection),
	}
}

type sessionResponse struct {
	SessionID string         `json:"sessionId"`
	JobID     string         `json:"jobId"`
	Workbook  sheet.Workbook `json:"workbook"`
	Selection *sheet.Rect    `json:"selection,omitempty"`
}

// Open starts an edit session over a successful job's result sheets.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	job, ok := h.queue.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found", "")
		return
	}
	if job.Status != domain.StatusSuccess || len(job.ResultSheets) == 0 {
		writeError(w, http.StatusConflict, "job has no editable result", "only successful jobs can be edited")
		return
	}

	s := h.sessions.Open(jobID, job.Workbook())

	h.mu.Lock()
	h.cells[s.ID] = selection.NewCellSelection()
	h.mu.Unlock()

	h.logger.WithJob(jobID).Info().Str("session", s.ID.String()).Msg("Edit session opened")
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: s.ID.String(),
		JobID:     jobID,
		Workbook:  s.Draft,
	})
}

func (h *SessionHandler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id", "")
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *SessionHandler) cellSelection(id uuid.UUID) *selection.CellSelection {
	h.mu.Lock()
	defer h.mu.Unlock()
	sel, ok := h.cells[id]
	if !ok {
		sel = selection.NewCellSelection()
		h.cells[id] = sel
	}
	return sel
}

func (h *SessionHandler) dropCellSelection(id uuid.UUID) {
	h.mu.Lock()
	delete(h.cells, id)
	h.mu.Unlock()
}

type setCellRequest struct {
	Sheet int    `json:"sheet"`
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Value string `json:"value"`
}

// SetCell replaces one draft cell's value, preserving its style.
func (h *SessionHandler) SetCell(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req setCellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	wb, err := h.sessions.SetCellValue(id, req.Sheet, req.Row, req.Col, req.Value)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "cell edit failed", err.Error())
		return
	}
	h.respond(w, id, wb, req.Sheet)
}

type applyStyleRequest struct {
	Sheet int              `json:"sheet"`
	Patch sheet.StylePatch `json:"patch"`
}

// ApplyStyle merges the style patch into every cell of the sheet's current
// selection rectangle. With no selection the draft is left unchanged.
func (h *SessionHandler) ApplyStyle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req applyStyleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	rect := h.cellSelection(id).Rect(req.Sheet)
	wb, err := h.sessions.ApplyStyle(id, req.Sheet, rect, req.Patch)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "style edit failed", err.Error())
		return
	}
	h.respond(w, id, wb, req.Sheet)
}

type updateSelectionRequest struct {
	Sheet     int          `json:"sheet"`
	Action    string       `json:"action"` // click, shift_click, move, tab, clear
	Cell      *sheet.Coord `json:"cell,omitempty"`
	Direction string       `json:"direction,omitempty"` // up, down, left, right
}

// UpdateSelection drives the sheet's cell selection: click and shift-click
// set the rectangle, arrow moves collapse it to a neighbouring cell and tab
// walks cells in reading order.
func (h *SessionHandler) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req updateSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	draft, _, ok := h.sessions.Draft(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found", "")
		return
	}
	if req.Sheet < 0 || req.Sheet >= len(draft.Sheets) {
		writeError(w, http.StatusBadRequest, "sheet index out of range", "")
		return
	}

	rows := draft.Sheets[req.Sheet].Rows
	rowLen := func(row int) int {
		if row < 0 || row >= len(rows) {
			return 0
		}
		return len(rows[row])
	}
	sel := h.cellSelection(id)

	switch req.Action {
	case "click":
		if req.Cell == nil {
			writeError(w, http.StatusBadRequest, "click requires a cell", "")
			return
		}
		sel.Click(req.Sheet, *req.Cell)
	case "shift_click":
		if req.Cell == nil {
			writeError(w, http.StatusBadRequest, "shift_click requires a cell", "")
			return
		}
		sel.ShiftClick(req.Sheet, *req.Cell)
	case "move":
		dir, ok := parseDirection(req.Direction)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid direction", "must be up, down, left or right")
			return
		}
		sel.Move(req.Sheet, dir, len(rows), rowLen)
	case "tab":
		sel.Tab(req.Sheet, len(rows), rowLen)
	case "clear":
		sel.ClearSheet(req.Sheet)
	default:
		writeError(w, http.StatusBadRequest, "invalid action", "must be click, shift_click, move, tab or clear")
		return
	}

	h.respond(w, id, draft, req.Sheet)
}

// Commit swaps the draft into the owning job and closes the session.
func (h *SessionHandler) Commit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	err := h.sessions.Commit(id, func(jobID string, wb sheet.Workbook) error {
		return h.queue.CommitSheets(jobID, wb)
	})
	if err != nil {
		writeError(w, http.StatusConflict, "commit failed", err.Error())
		return
	}
	h.dropCellSelection(id)
	w.WriteHeader(http.StatusNoContent)
}

// Discard drops the session, leaving the job's committed sheets untouched.
func (h *SessionHandler) Discard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	h.sessions.Discard(id)
	h.dropCellSelection(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) respond(w http.ResponseWriter, id uuid.UUID, wb sheet.Workbook, sheetIndex int) {
	_, jobID, _ := h.sessions.Draft(id)
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: id.String(),
		JobID:     jobID,
		Workbook:  wb,
		Selection: h.cellSelection(id).Rect(sheetIndex),
	})
}

func parseDirection(s string) (selection.Direction, bool) {
	switch s {
	case "up":
		return selection.Up, true
	case "down":
		return selection.Down, true
	case "left":
		return selection.Left, true
	case "right":
		return selection.Right, true
	}
	return 0, false
}
