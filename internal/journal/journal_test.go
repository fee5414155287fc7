package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/crealink/crealink/internal/state"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestTransitions_RoundTrip(t *testing.T) {
	j := openTestJournal(t)

	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	steps := []struct {
		from, to state.Lifecycle
	}{
		{state.StatusOffline, state.StatusIdle},
		{state.StatusIdle, state.StatusPrinting},
		{state.StatusPrinting, state.StatusStopping},
		{state.StatusStopping, state.StatusIdle},
	}
	for i, s := range steps {
		at := base.Add(time.Duration(i) * time.Minute)
		if err := j.RecordTransition(s.from, s.to, at); err != nil {
			t.Fatalf("RecordTransition(%s -> %s) error: %v", s.from, s.to, err)
		}
	}

	got, err := j.RecentTransitions(10)
	if err != nil {
		t.Fatalf("RecentTransitions() error: %v", err)
	}
	if len(got) != len(steps) {
		t.Fatalf("got %d transitions, want %d", len(got), len(steps))
	}

	// Newest first.
	for i, tr := range got {
		want := steps[len(steps)-1-i]
		if tr.From != want.from || tr.To != want.to {
			t.Errorf("transition[%d] = %s -> %s, want %s -> %s", i, tr.From, tr.To, want.from, want.to)
		}
	}
	if !got[0].At.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("newest transition at %v, want %v", got[0].At, base.Add(3*time.Minute))
	}
}

func TestRecentTransitions_Limit(t *testing.T) {
	j := openTestJournal(t)

	now := time.Now()
	for i := 0; i < 5; i++ {
		if err := j.RecordTransition(state.StatusIdle, state.StatusPrinting, now); err != nil {
			t.Fatal(err)
		}
	}

	got, err := j.RecentTransitions(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %d transitions, want 2", len(got))
	}
}

func TestRecentTransitions_Empty(t *testing.T) {
	j := openTestJournal(t)

	got, err := j.RecentTransitions(10)
	if err != nil {
		t.Fatalf("RecentTransitions() on empty journal error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d transitions from empty journal", len(got))
	}
}

func TestRecordSample(t *testing.T) {
	j := openTestJournal(t)

	snap := state.Snapshot{
		Status:      state.StatusPrinting,
		Progress:    42.5,
		Layer:       10,
		TotalLayers: 100,
		Nozzle:      state.TempZone{Current: 210.5},
		Bed:         map[int]state.TempZone{0: {Current: 60}},
	}
	if err := j.RecordSample(snap, time.Now()); err != nil {
		t.Fatalf("RecordSample() error: %v", err)
	}

	var status string
	var progress, nozzle, bed float64
	var layer, total int
	err := j.db.QueryRow(
		`SELECT status, progress, layer, total_layers, nozzle_temp, bed_temp FROM samples`,
	).Scan(&status, &progress, &layer, &total, &nozzle, &bed)
	if err != nil {
		t.Fatalf("sample row missing: %v", err)
	}
	if status != string(state.StatusPrinting) {
		t.Errorf("status = %q", status)
	}
	if progress != 42.5 || layer != 10 || total != 100 {
		t.Errorf("sample = %v/%d/%d, want 42.5/10/100", progress, layer, total)
	}
	if nozzle != 210.5 || bed != 60 {
		t.Errorf("temps = %v/%v, want 210.5/60", nozzle, bed)
	}
}

func TestRecordSample_NoBedZone(t *testing.T) {
	j := openTestJournal(t)

	// A snapshot with no bed map must not panic; zone 0 reads as zero.
	snap := state.Snapshot{Status: state.StatusIdle}
	if err := j.RecordSample(snap, time.Now()); err != nil {
		t.Fatalf("RecordSample() error: %v", err)
	}
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "journal.db"))
	if err == nil {
		t.Fatal("Open() should fail when the parent directory is missing")
	}
}
