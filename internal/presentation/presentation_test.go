package presentation

import (
	"testing"

	"github.com/Brownie44l1/fer-classifier/internal/emotion"
	"github.com/Brownie44l1/fer-classifier/internal/source"
)

func TestEveryLabelHasDialog(t *testing.T) {
	seen := map[string]bool{}
	for _, l := range emotion.All {
		d := ForLabel(l)
		if d.Key != l.String() {
			t.Fatalf("expected key %q, got %q", l, d.Key)
		}
		if d.Title == "" || d.Message == "" {
			t.Fatalf("dialog for %s is incomplete: %+v", l, d)
		}
		seen[d.Key] = true
	}
	if len(seen) != 9 {
		t.Fatalf("expected 9 distinct states, got %d", len(seen))
	}
}

func TestLookup(t *testing.T) {
	if d, ok := Lookup("none"); !ok || d.Key != "none" {
		t.Fatalf("expected none dialog, got %+v %v", d, ok)
	}
	if _, ok := Lookup("contempt"); ok {
		t.Fatal("expected unknown key to miss")
	}
}

func TestForLabelOutOfRangeFallsBackToError(t *testing.T) {
	if d := ForLabel(emotion.Label(42)); d.Key != "error" {
		t.Fatalf("expected error dialog, got %+v", d)
	}
}

func TestPermissionDialog(t *testing.T) {
	temp := PermissionDialog(&source.PermissionError{})
	perm := PermissionDialog(&source.PermissionError{Permanent: true})
	if temp.Key == perm.Key {
		t.Fatal("expected different dialogs for temporary and permanent denial")
	}
}
