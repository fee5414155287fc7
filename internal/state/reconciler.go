package state

import (
	"encoding/json"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/crealink/crealink/internal/codec"
)

// Reconciler applies decoded inbound events to a snapshot. It is not
// goroutine-safe on its own: the session controller guarantees a single
// receive path, so all mutation happens serially.
type Reconciler struct {
	snap Snapshot

	// fallbackModel is reported when the printer never identifies itself;
	// it is inferred from the configured port (9999 FDM, 18188 resin).
	fallbackModel string

	// stopIssued is set when a stop command was sent locally. While set,
	// progress frames do not flip the status back to printing; a progress
	// reset or idle signal confirms the stop.
	stopIssued bool

	// directProgress records whether the printer ever reported a progress
	// percentage itself. If not, progress is derived from the layer ratio
	// the way the resin line expects.
	directProgress bool
}

// New creates a reconciler with a fresh snapshot.
func New(fallbackModel string) *Reconciler {
	return &Reconciler{
		fallbackModel: fallbackModel,
		snap: Snapshot{
			Status: StatusOffline,
			Bed:    make(map[int]TempZone),
			Extra:  make(map[string]any),
		},
	}
}

// Snapshot returns a copy of the current accumulated state.
func (r *Reconciler) Snapshot() Snapshot {
	return r.snap.Clone()
}

// Reset discards all accumulated state, as on an explicit session reset.
func (r *Reconciler) Reset() {
	*r = *New(r.fallbackModel)
}

// SetOffline forces the lifecycle status to offline. All other fields keep
// their last-known values; subsequent events restore the status through the
// normal reconciliation rules.
func (r *Reconciler) SetOffline() {
	r.snap.Status = StatusOffline
}

// MarkStopIssued records a locally issued stop command. If a job is
// active the status moves to stopping until the printer confirms with a
// progress reset or idle signal.
func (r *Reconciler) MarkStopIssued() {
	r.stopIssued = true
	if r.snap.Active() {
		r.snap.Status = StatusStopping
	}
}

// frameSignals collects the lifecycle-relevant indications observed within
// a single frame. Conflicts are resolved after the whole frame is merged,
// so the result does not depend on key order.
type frameSignals struct {
	progress *float64
	layer    *int
	pause    *bool
	stop     *bool
	plr      *int // repoPlrStatus: 1 resume, 0 cancel
	errFlag  bool
}

// Apply merges one frame's events into the snapshot and re-derives the
// lifecycle status.
func (r *Reconciler) Apply(events []codec.InboundEvent) {
	if len(events) == 0 {
		return
	}

	prevProgress := r.snap.Progress
	prevLayer := r.snap.Layer

	var sig frameSignals
	for _, ev := range events {
		r.merge(ev, &sig)
	}

	// The resin line never reports a percentage; derive it from layers.
	// The derived value is display-only: lifecycle signals come from the
	// frame's own keys, never from accumulated state.
	if !r.directProgress && r.snap.TotalLayers > 0 {
		pct := float64(r.snap.Layer) / float64(r.snap.TotalLayers) * 100
		r.snap.Progress = math.Round(pct*100) / 100
	}

	if r.snap.Model == "" && r.fallbackModel != "" {
		r.snap.Model = r.fallbackModel
	}

	r.deriveStatus(sig, prevProgress, prevLayer)
}

// merge applies a single event to the typed snapshot fields, recording any
// lifecycle signal it carries. Keys without a typed field land in Extra.
func (r *Reconciler) merge(ev codec.InboundEvent, sig *frameSignals) {
	switch ev.Key {
	case "printProgress", "progress":
		if v, ok := asFloat(ev.Value); ok {
			r.snap.Progress = v
			r.directProgress = true
			sig.progress = &v
		}
	case "layer", "curSliceLayer":
		if v, ok := asInt(ev.Value); ok {
			r.snap.Layer = v
			sig.layer = &v
		}
	case "TotalLayer", "sliceLayerCount":
		if v, ok := asInt(ev.Value); ok {
			r.snap.TotalLayers = v
		}
	case "printJobTime":
		if v, ok := asInt(ev.Value); ok {
			r.snap.ElapsedSec = v
		}
	case "printLeftTime", "printRemainTime":
		if v, ok := asInt(ev.Value); ok {
			r.snap.RemainSec = v
		}
	case "printFileName", "filename":
		if v, ok := asString(ev.Value); ok {
			r.snap.FileName = v
		}
	case "nozzleTemp":
		if v, ok := asFloat(ev.Value); ok {
			r.snap.Nozzle.Current = v
		}
	case "targetNozzleTemp":
		if v, ok := asFloat(ev.Value); ok {
			r.snap.Nozzle.Target = v
		}
	case "boxTemp":
		if v, ok := asFloat(ev.Value); ok {
			r.snap.BoxC = v
		}
	case "fan":
		if v, ok := asBool(ev.Value); ok {
			r.snap.FanOn = v
		}
	case "fanAuxiliary":
		if v, ok := asBool(ev.Value); ok {
			r.snap.AuxFanOn = v
		}
	case "fanCase":
		if v, ok := asBool(ev.Value); ok {
			r.snap.CaseFanOn = v
		}
	case "caseFanPct":
		if v, ok := asInt(ev.Value); ok {
			r.snap.CaseFanPct = v
		}
	case "auxiliaryFanPct":
		if v, ok := asInt(ev.Value); ok {
			r.snap.AuxFanPct = v
		}
	case "modelFanPct":
		if v, ok := asInt(ev.Value); ok {
			r.snap.ModelFanPct = v
		}
	case "lightSw":
		if v, ok := asBool(ev.Value); ok {
			r.snap.LightOn = v
		}
	case "curPosition":
		if v, ok := asString(ev.Value); ok {
			r.mergePosition(v)
		}
	case "model", "printerModel":
		if v, ok := asString(ev.Value); ok && v != "" {
			r.snap.Model = v
		}
	case "modelVersion":
		if v, ok := asString(ev.Value); ok && v != "" {
			r.snap.Firmware = ParseFirmwareVersion(v)
		}
	case "hostname":
		if v, ok := asString(ev.Value); ok {
			r.snap.Hostname = v
		}
	case "pause":
		if v, ok := asBool(ev.Value); ok {
			sig.pause = &v
		}
	case "stop":
		if v, ok := asBool(ev.Value); ok {
			sig.stop = &v
		}
	case "repoPlrStatus":
		if v, ok := asInt(ev.Value); ok {
			sig.plr = &v
		}
	case "err":
		if v, ok := asInt(ev.Value); ok && v != 0 {
			sig.errFlag = true
		}
		r.snap.Extra[ev.Key] = ev.Value
	default:
		if zone, target, ok := bedTempKey(ev.Key); ok {
			if v, vok := asFloat(ev.Value); vok {
				tz := r.snap.Bed[zone]
				if target {
					tz.Target = v
				} else {
					tz.Current = v
				}
				r.snap.Bed[zone] = tz
				return
			}
		}
		r.snap.Extra[ev.Key] = ev.Value
	}
}

// deriveStatus advances the lifecycle state machine for one frame.
//
// Tie-break: if conflicting indications arrive in the same frame, the more
// active state wins (printing > paused > idle). This precedence is inferred
// from observed traffic, not documented by the vendor, so ambiguous frames
// are logged for future refinement.
func (r *Reconciler) deriveStatus(sig frameSignals, prevProgress float64, prevLayer int) {
	prev := r.snap.Status

	// Receiving any frame means the printer is reachable again.
	if prev == StatusOffline {
		prev = StatusIdle
	}

	// Recovery after an unexpected stop is an explicit action: it forces
	// the state regardless of anything else in the frame.
	if sig.plr != nil {
		r.stopIssued = false
		if *sig.plr == 1 {
			r.snap.Status = StatusPrinting
		} else {
			r.snap.Status = StatusIdle
		}
		return
	}

	if sig.errFlag {
		r.snap.Status = StatusError
		return
	}

	progressPositive := sig.progress != nil && *sig.progress > 0
	progressReset := sig.progress != nil && *sig.progress == 0
	layerPositive := sig.layer != nil && *sig.layer > 0
	layerReset := sig.layer != nil && *sig.layer == 0

	// The resin line never reports a percentage, so a layer reset is its
	// only job-completion signal.
	jobReset := progressReset || (sig.progress == nil && layerReset)

	// A locally issued stop pins the status to stopping until the printer
	// confirms with a progress reset or idle signal. Progress frames from
	// the dying job must not flip the status back to printing.
	if r.stopIssued {
		if jobReset {
			r.stopIssued = false
			r.snap.Status = StatusIdle
			return
		}
		if prev == StatusPrinting || prev == StatusPaused {
			r.snap.Status = StatusStopping
			return
		}
		r.snap.Status = prev
		return
	}

	var wantPrinting, wantPaused, wantIdle bool

	if sig.pause != nil {
		if *sig.pause {
			wantPaused = true
		} else if prev == StatusPaused {
			wantPrinting = true
		}
	}
	if sig.stop != nil && *sig.stop && (prev == StatusPrinting || prev == StatusPaused) {
		// Printer-side stop flag: treat like a confirmed stop in flight.
		r.snap.Status = StatusStopping
		return
	}

	// Activity starts a job only out of idle or when the reported position
	// advances. A paused job keeps echoing its frozen progress and layer;
	// those repeats are not a resume indication.
	switch {
	case prev == StatusIdle && (progressPositive || layerPositive):
		wantPrinting = true
	case progressPositive && *sig.progress != prevProgress:
		wantPrinting = true
	case layerPositive && *sig.layer != prevLayer:
		wantPrinting = true
	}
	if jobReset && (prev == StatusPrinting || prev == StatusStopping) {
		wantIdle = true
	}

	conflicts := 0
	for _, w := range []bool{wantPrinting, wantPaused, wantIdle} {
		if w {
			conflicts++
		}
	}
	if conflicts > 1 {
		log.Printf("state: ambiguous status frame (printing=%v paused=%v idle=%v), applying precedence",
			wantPrinting, wantPaused, wantIdle)
	}

	switch {
	case wantPrinting:
		r.snap.Status = StatusPrinting
	case wantPaused:
		r.snap.Status = StatusPaused
	case wantIdle:
		r.snap.Status = StatusIdle
	default:
		r.snap.Status = prev
	}
}

// mergePosition parses the firmware's "X10.0 Y20.0 Z0.5" position string.
func (r *Reconciler) mergePosition(raw string) {
	for _, tok := range strings.Fields(raw) {
		if len(tok) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(tok[1:], 64)
		if err != nil {
			continue
		}
		switch tok[0] {
		case 'X':
			r.snap.Pos.X = v
		case 'Y':
			r.snap.Pos.Y = v
		case 'Z':
			r.snap.Pos.Z = v
		}
	}
}

// ParseFirmwareVersion extracts a clean version from the semicolon-joined
// modelVersion blob, e.g.
//
//	"printer hw ver:;printer sw ver:;DWIN hw ver:CR4CU220812S11;DWIN sw ver:1.3.3.46;"
//
// prefers the DWIN software version, falls back to any software version,
// and finally to the raw string.
func ParseFirmwareVersion(raw string) string {
	parts := strings.Split(raw, ";")
	for _, p := range parts {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(p), "DWIN sw ver:"); ok {
			if v := strings.TrimSpace(rest); v != "" {
				return v
			}
		}
	}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if i := strings.Index(p, "sw ver:"); i >= 0 {
			if v := strings.TrimSpace(p[i+len("sw ver:"):]); v != "" {
				return v
			}
		}
	}
	return raw
}

// bedTempKey recognizes bedTemp<N> and targetBedTemp<N> keys.
func bedTempKey(key string) (zone int, target bool, ok bool) {
	rest, isTarget := strings.CutPrefix(key, "targetBedTemp")
	if !isTarget {
		var isCur bool
		rest, isCur = strings.CutPrefix(key, "bedTemp")
		if !isCur {
			return 0, false, false
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false, false
	}
	return n, isTarget, true
}

// Value coercion helpers. The firmware is loose about types: numbers may
// arrive as JSON numbers or as strings, and booleans as 0/1 in either form.

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	default:
		f, ok := asFloat(v)
		if !ok {
			return false, false
		}
		return f != 0, true
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
