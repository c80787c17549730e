package sheet

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one in-flight edit of a job's result sheets. The draft is a deep
// copy of the committed workbook; discarding the session leaves the committed
// state untouched.
type Session struct {
	ID        uuid.UUID
	JobID     string
	Draft     Workbook
	CreatedAt time.Time
}

// SessionManager tracks open edit sessions.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewSessionManager creates an empty session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[uuid.UUID]*Session)}
}

// Open starts an edit session over a deep copy of the committed workbook.
func (m *SessionManager) Open(jobID string, committed Workbook) *Session {
	s := &Session{
		ID:        uuid.New(),
		JobID:     jobID,
		Draft:     committed.Clone(),
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns the session with the given id.
func (m *SessionManager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Draft returns a consistent snapshot of the session's draft and its job id.
// Edits replace the draft wholesale, so a snapshot taken under the lock never
// observes a half-applied edit.
func (m *SessionManager) Draft(id uuid.UUID) (Workbook, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Workbook{}, "", false
	}
	return s.Draft, s.JobID, true
}

// SetCellValue edits one cell of the draft and returns the new draft snapshot.
func (m *SessionManager) SetCellValue(id uuid.UUID, sheetIndex, row, col int, value string) (Workbook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Workbook{}, fmt.Errorf("unknown session %s", id)
	}
	if err := checkCell(s.Draft, sheetIndex, row, col); err != nil {
		return Workbook{}, err
	}
	s.Draft = s.Draft.SetCellValue(sheetIndex, row, col, value)
	return s.Draft, nil
}

// ApplyStyle merges a style patch over a rectangle of the draft and returns
// the new draft snapshot. A nil selection is a no-op.
func (m *SessionManager) ApplyStyle(id uuid.UUID, sheetIndex int, sel *Rect, patch StylePatch) (Workbook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Workbook{}, fmt.Errorf("unknown session %s", id)
	}
	if sheetIndex < 0 || sheetIndex >= len(s.Draft.Sheets) {
		return Workbook{}, fmt.Errorf("sheet index %d out of range", sheetIndex)
	}
	s.Draft = s.Draft.ApplyStyle(sheetIndex, sel, patch)
	return s.Draft, nil
}

// Commit hands the draft to the given commit function and closes the session.
// The commit function performs the atomic swap into the owning job; the draft
// is cloned once more so the committed state never aliases session memory.
func (m *SessionManager) Commit(id uuid.UUID, commit func(jobID string, wb Workbook) error) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	var (
		jobID string
		draft Workbook
	)
	if ok {
		jobID = s.JobID
		draft = s.Draft
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown session %s", id)
	}

	if err := commit(jobID, draft.Clone()); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// Discard drops the session without touching the committed state.
func (m *SessionManager) Discard(id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func checkCell(w Workbook, sheetIndex, row, col int) error {
	if sheetIndex < 0 || sheetIndex >= len(w.Sheets) {
		return fmt.Errorf("sheet index %d out of range", sheetIndex)
	}
	rows := w.Sheets[sheetIndex].Rows
	if row < 0 || row >= len(rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	if col < 0 || col >= len(rows[row]) {
		return fmt.Errorf("column %d out of range", col)
	}
	return nil
}
