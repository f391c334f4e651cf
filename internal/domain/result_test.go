package domain

import (
	"testing"

	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

func TestResult_CountAndTotal(t *testing.T) {
	r := &Result{
		TabSwitches:    1,
		Inactivities:   2,
		TextSelections: 3,
		Copies:         4,
		Pastes:         5,
		RightClicks:    6,
		FaceNotVisible: 7,
	}

	want := map[violation.Type]int{
		violation.TabSwitch:      1,
		violation.Inactivity:     2,
		violation.TextSelection:  3,
		violation.Copy:           4,
		violation.Paste:          5,
		violation.RightClick:     6,
		violation.FaceNotVisible: 7,
	}
	for typ, n := range want {
		if got := r.Count(typ); got != n {
			t.Errorf("Count(%s) = %d, want %d", typ, got, n)
		}
	}

	if got := r.Count(violation.Type("bogus")); got != 0 {
		t.Errorf("Count(bogus) = %d, want 0", got)
	}
	if got := r.Total(); got != 28 {
		t.Errorf("Total() = %d, want 28", got)
	}
}
