package selection

import (
	"reflect"
	"testing"
)

func TestJobSelectionToggle(t *testing.T) {
	s := NewJobSelection()

	s.Toggle("a")
	if !s.Contains("a") {
		t.Error("toggle on failed")
	}
	s.Toggle("a")
	if s.Contains("a") {
		t.Error("toggle off failed")
	}
}

func TestJobSelectionTogglePage(t *testing.T) {
	s := NewJobSelection()
	s.Toggle("other-page")

	page := []string{"a", "b", "c"}

	// Not all visible selected yet: select all of them.
	s.Toggle("a")
	s.TogglePage(page)
	if got := s.IDs(); !reflect.DeepEqual(got, []string{"a", "b", "c", "other-page"}) {
		t.Errorf("after select-all: %v", got)
	}

	// All visible selected: clear exactly those, not the off-page id.
	s.TogglePage(page)
	if got := s.IDs(); !reflect.DeepEqual(got, []string{"other-page"}) {
		t.Errorf("after clear: %v", got)
	}
}

func TestJobSelectionTogglePageEmpty(t *testing.T) {
	s := NewJobSelection()
	s.Toggle("a")
	s.TogglePage(nil)
	if !s.Contains("a") {
		t.Error("empty page toggle changed the selection")
	}
}

func TestJobSelectionReconcile(t *testing.T) {
	s := NewJobSelection()
	s.Toggle("keep")
	s.Toggle("gone")

	s.Reconcile(map[string]struct{}{"keep": {}, "unselected": {}})

	if !s.Contains("keep") {
		t.Error("surviving id dropped")
	}
	if s.Contains("gone") {
		t.Error("deleted id kept")
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestJobSelectionClear(t *testing.T) {
	s := NewJobSelection()
	s.Toggle("a")
	s.Toggle("b")
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("len after clear = %d", s.Len())
	}
}
