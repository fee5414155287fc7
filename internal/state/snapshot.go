// Package state folds the printer's partial status updates into a single
// current-status snapshot.
//
// The protocol sends field-level deltas, not full snapshots, so the
// snapshot is a monotonically-refined accumulator: scalar fields are
// last-write-wins and a field once set never reverts to unknown except on
// an explicit session reset. The coarse lifecycle status is derived from a
// small state machine over the observed signals.
package state

// Lifecycle is the coarse printer activity state.
type Lifecycle string

const (
	StatusIdle     Lifecycle = "idle"
	StatusPrinting Lifecycle = "printing"
	StatusPaused   Lifecycle = "paused"
	StatusStopping Lifecycle = "stopping"
	StatusError    Lifecycle = "error"
	StatusOffline  Lifecycle = "offline"
)

// TempZone holds the current and target temperature for one heater zone.
type TempZone struct {
	Current float64
	Target  float64
}

// Position holds the last reported axis positions in millimeters.
type Position struct {
	X float64
	Y float64
	Z float64
}

// Snapshot is the accumulated best-known state of the printer. Fields keep
// their last reported value across frames and across reconnects; only the
// Status field is forced while the connection is down.
//
// Snapshot is only ever mutated by the Reconciler on the single receive
// path. Consumers receive copies via Reconciler.Snapshot.
type Snapshot struct {
	// Print job progress.
	Progress    float64 // percent, 0-100
	Layer       int
	TotalLayers int
	ElapsedSec  int // seconds into the job
	RemainSec   int // estimated seconds remaining
	FileName    string

	// Temperatures.
	Nozzle TempZone
	Bed    map[int]TempZone // keyed by zone index (bedTemp0, bedTemp1, ...)
	BoxC   float64          // enclosure temperature

	// Fans. The on/off flags and percentage keys are reported separately
	// by the firmware.
	FanOn       bool
	AuxFanOn    bool
	CaseFanOn   bool
	CaseFanPct  int
	AuxFanPct   int
	ModelFanPct int

	// Motion.
	Pos Position

	// Peripherals and identity.
	LightOn  bool
	Model    string
	Firmware string
	Hostname string

	// Status is the derived lifecycle state.
	Status Lifecycle

	// Extra preserves status keys the reconciler has no typed field for,
	// so nothing the printer reports is dropped.
	Extra map[string]any
}

// Clone returns a deep copy safe to hand to consumers.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Bed != nil {
		out.Bed = make(map[int]TempZone, len(s.Bed))
		for k, v := range s.Bed {
			out.Bed[k] = v
		}
	}
	if s.Extra != nil {
		out.Extra = make(map[string]any, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Active reports whether a print job is in a state where pause/resume/stop
// commands are meaningful.
func (s Snapshot) Active() bool {
	return s.Status == StatusPrinting || s.Status == StatusPaused
}
