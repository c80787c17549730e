package sheet

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestSessionDraftIsIsolated(t *testing.T) {
	m := NewSessionManager()
	committed := testWorkbook()

	s := m.Open("job-1", committed)
	if _, err := m.SetCellValue(s.ID, 0, 1, 0, "draft-edit"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}

	if committed.Sheets[0].Rows[1][0].Value != "a" {
		t.Error("draft edit leaked into the committed workbook")
	}
}

func TestSessionCommit(t *testing.T) {
	m := NewSessionManager()
	s := m.Open("job-1", testWorkbook())

	if _, err := m.SetCellValue(s.ID, 0, 1, 0, "edited"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}

	var gotJobID string
	var gotWB Workbook
	err := m.Commit(s.ID, func(jobID string, wb Workbook) error {
		gotJobID = jobID
		gotWB = wb
		return nil
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if gotJobID != "job-1" {
		t.Errorf("commit jobID = %q", gotJobID)
	}
	if gotWB.Sheets[0].Rows[1][0].Value != "edited" {
		t.Error("committed workbook missing the draft edit")
	}
	if _, ok := m.Get(s.ID); ok {
		t.Error("session still open after commit")
	}
}

func TestSessionCommitFailureKeepsSession(t *testing.T) {
	m := NewSessionManager()
	s := m.Open("job-1", testWorkbook())

	commitErr := errors.New("job gone")
	if err := m.Commit(s.ID, func(string, Workbook) error { return commitErr }); !errors.Is(err, commitErr) {
		t.Fatalf("Commit error = %v, want %v", err, commitErr)
	}
	if _, ok := m.Get(s.ID); !ok {
		t.Error("failed commit closed the session")
	}
}

func TestSessionDiscard(t *testing.T) {
	m := NewSessionManager()
	s := m.Open("job-1", testWorkbook())

	m.Discard(s.ID)
	if _, ok := m.Get(s.ID); ok {
		t.Error("session survives discard")
	}
	if _, err := m.SetCellValue(s.ID, 0, 0, 0, "x"); err == nil {
		t.Error("edit on discarded session succeeded")
	}
}

func TestSessionBoundsChecks(t *testing.T) {
	m := NewSessionManager()
	s := m.Open("job-1", testWorkbook())

	cases := []struct {
		name            string
		sheet, row, col int
	}{
		{"sheet out of range", 9, 0, 0},
		{"row out of range", 0, 9, 0},
		{"col out of range on ragged row", 0, 2, 2},
		{"negative row", 0, -1, 0},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.SetCellValue(s.ID, tt.sheet, tt.row, tt.col, "x"); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestSessionDraftSnapshot(t *testing.T) {
	m := NewSessionManager()
	s := m.Open("job-1", testWorkbook())

	draft, jobID, ok := m.Draft(s.ID)
	if !ok || jobID != "job-1" {
		t.Fatalf("Draft = jobID %q, ok %v", jobID, ok)
	}
	if draft.Sheets[0].Rows[1][0].Value != "a" {
		t.Error("draft snapshot does not match the opened workbook")
	}

	if _, err := m.SetCellValue(s.ID, 0, 1, 0, "edited"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	if draft.Sheets[0].Rows[1][0].Value != "a" {
		t.Error("earlier snapshot mutated by a later edit")
	}
	draft, _, _ = m.Draft(s.ID)
	if draft.Sheets[0].Rows[1][0].Value != "edited" {
		t.Error("fresh snapshot missing the edit")
	}

	if _, _, ok := m.Draft(uuid.New()); ok {
		t.Error("Draft on unknown session reported ok")
	}
}

func TestSessionConcurrentEditsAndReads(t *testing.T) {
	m := NewSessionManager()
	s := m.Open("job-1", testWorkbook())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if _, err := m.SetCellValue(s.ID, 0, 1, 0, "edit"); err != nil {
				t.Errorf("SetCellValue: %v", err)
				return
			}
		}
	}()
	for i := 0; i < 200; i++ {
		if wb, _, ok := m.Draft(s.ID); !ok || len(wb.Sheets) == 0 {
			t.Fatal("snapshot lost the workbook mid-edit")
		}
	}
	<-done
}

func TestSessionUnknownID(t *testing.T) {
	m := NewSessionManager()
	if err := m.Commit(uuid.New(), func(string, Workbook) error { return nil }); err == nil {
		t.Error("commit on unknown session succeeded")
	}
}
