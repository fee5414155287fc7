package session

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/crealink/crealink/internal/codec"
	"github.com/crealink/crealink/internal/printererr"
)

// Dispatcher exposes one operation per documented command family. Every
// operation validates its parameters locally before encoding; invalid
// input fails fast with command.invalid_parameter without touching the
// transport.
//
// The protocol offers no per-command acknowledgement, so delivery is
// fire-and-forget: "sent without transport error" is success, and a
// subsequent snapshot change is the only confirmation. The in-flight map
// exists for diagnostics and logging only; it is cleared on reconnect.
type Dispatcher struct {
	s   *Session
	lim *rate.Limiter

	mu       sync.Mutex
	inflight map[uuid.UUID]string
}

const (
	defaultCommandRate  = 5.0
	defaultCommandBurst = 5

	maxBedZone   = 2
	maxBedTempC  = 150
	maxZOffsetMM = 5.0
	maxMoveMM    = 300.0
)

func newDispatcher(s *Session, cmdRate float64, burst int) *Dispatcher {
	if cmdRate <= 0 {
		cmdRate = defaultCommandRate
	}
	if burst <= 0 {
		burst = defaultCommandBurst
	}
	return &Dispatcher{
		s:        s,
		lim:      rate.NewLimiter(rate.Limit(cmdRate), burst),
		inflight: make(map[uuid.UUID]string),
	}
}

// RestartFirmware reboots the printer.
func (d *Dispatcher) RestartFirmware() error {
	return d.dispatch(codec.RestartFirmware())
}

// RecoverAfterPowerLoss resumes (true) or cancels (false) a job
// interrupted by an unexpected stop.
func (d *Dispatcher) RecoverAfterPowerLoss(resume bool) error {
	return d.dispatch(codec.RecoverAfterPowerLoss(resume))
}

// RequestFileList asks for the stored G-code file listing.
func (d *Dispatcher) RequestFileList() error {
	return d.dispatch(codec.RequestFileList())
}

// RequestProbedMatrix asks for the bed leveling matrix.
func (d *Dispatcher) RequestProbedMatrix() error {
	return d.dispatch(codec.RequestProbedMatrix())
}

// ClearProbedMatrix erases the stored bed leveling matrix.
func (d *Dispatcher) ClearProbedMatrix() error {
	return d.dispatch(codec.ClearProbedMatrix())
}

// RequestPrinterParams asks for the printer parameter block.
func (d *Dispatcher) RequestPrinterParams() error {
	return d.dispatch(codec.RequestPrinterParams())
}

// HomeAxes homes the given axes. Valid identifiers are X, Y and Z; the
// wire format space-joins them in canonical order (e.g. "X Y").
func (d *Dispatcher) HomeAxes(axes ...string) error {
	if len(axes) == 0 {
		return printererr.InvalidParameter("no axes given")
	}
	seen := make(map[string]bool, len(axes))
	for _, a := range axes {
		switch a {
		case "X", "Y", "Z":
		default:
			return printererr.InvalidParameter(fmt.Sprintf("invalid axis %q", a))
		}
		if seen[a] {
			return printererr.InvalidParameter(fmt.Sprintf("duplicate axis %q", a))
		}
		seen[a] = true
	}
	ordered := append([]string{}, axes...)
	sort.Strings(ordered)
	return d.dispatch(codec.HomeAxes(strings.Join(ordered, " ")))
}

// SetCaseFan sets the case fan speed percentage (0-100).
func (d *Dispatcher) SetCaseFan(percent int) error {
	if percent < 0 || percent > 100 {
		return printererr.InvalidParameter(fmt.Sprintf("fan speed %d%% out of range 0-100", percent))
	}
	return d.dispatch(codec.SetCaseFan(percent))
}

// SetLight switches the chamber light.
func (d *Dispatcher) SetLight(on bool) error {
	return d.dispatch(codec.SetLight(on))
}

// SetBedTemp sets the target temperature for one bed zone.
func (d *Dispatcher) SetBedTemp(zone, celsius int) error {
	if zone < 0 || zone > maxBedZone {
		return printererr.InvalidParameter(fmt.Sprintf("bed zone %d out of range 0-%d", zone, maxBedZone))
	}
	if celsius < 0 || celsius > maxBedTempC {
		return printererr.InvalidParameter(fmt.Sprintf("bed temperature %d out of range 0-%d", celsius, maxBedTempC))
	}
	return d.dispatch(codec.SetBedTemp(zone, celsius))
}

// DeleteFile removes a stored G-code file from the given storage volume.
func (d *Dispatcher) DeleteFile(storage, name string) error {
	if err := validateFileRef(storage, name); err != nil {
		return err
	}
	return d.dispatch(codec.DeleteFile(storage, name))
}

// PrintFile starts printing a stored G-code file.
func (d *Dispatcher) PrintFile(storage, name string) error {
	if err := validateFileRef(storage, name); err != nil {
		return err
	}
	return d.dispatch(codec.PrintFile(storage, name))
}

// SetZOffset adjusts the Z offset by delta millimeters.
func (d *Dispatcher) SetZOffset(delta float64) error {
	if delta < -maxZOffsetMM || delta > maxZOffsetMM {
		return printererr.InvalidParameter(fmt.Sprintf("z offset %.2f out of range ±%.1f", delta, maxZOffsetMM))
	}
	return d.dispatch(codec.SetZOffset(delta))
}

// MoveAxis jogs one axis by distance millimeters.
func (d *Dispatcher) MoveAxis(axis string, distance float64) error {
	switch axis {
	case "X", "Y", "Z":
	default:
		return printererr.InvalidParameter(fmt.Sprintf("invalid axis %q", axis))
	}
	if distance == 0 || distance < -maxMoveMM || distance > maxMoveMM {
		return printererr.InvalidParameter(fmt.Sprintf("move distance %.2f out of range ±%.0f", distance, maxMoveMM))
	}
	return d.dispatch(codec.MoveAxis(axis, distance))
}

// Pause pauses the active print job. Accepted while printing or paused;
// pausing an already-paused job is a no-op the device tolerates.
func (d *Dispatcher) Pause() error {
	snap := d.s.Snapshot()
	if !snap.Active() {
		return printererr.NotApplicable("pause", string(snap.Status))
	}
	return d.dispatch(codec.Pause(true))
}

// Resume resumes a paused print job. Accepted while printing or paused.
// The FDM dialect unpauses with pause:0; the resin line models resume as
// the inverse of stop.
func (d *Dispatcher) Resume() error {
	snap := d.s.Snapshot()
	if !snap.Active() {
		return printererr.NotApplicable("resume", string(snap.Status))
	}
	if d.s.opts.Port == PortResin {
		return d.dispatch(codec.Resume())
	}
	return d.dispatch(codec.Pause(false))
}

// Stop aborts the active print job. Accepted while printing or paused;
// the snapshot moves to stopping until the printer confirms with a
// progress reset or idle signal.
func (d *Dispatcher) Stop() error {
	snap := d.s.Snapshot()
	if !snap.Active() {
		return printererr.NotApplicable("stop", string(snap.Status))
	}
	if err := d.dispatch(codec.Stop()); err != nil {
		return err
	}
	d.s.markStopIssued()
	return nil
}

// InFlight reports the number of commands sent since the last reconnect.
// Diagnostics only; the protocol cannot correlate acknowledgements.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

func validateFileRef(storage, name string) error {
	if storage == "" || name == "" {
		return printererr.InvalidParameter("storage and file name must be non-empty")
	}
	if strings.ContainsAny(storage, ":/") {
		return printererr.InvalidParameter(fmt.Sprintf("invalid storage volume %q", storage))
	}
	if strings.Contains(name, ":") {
		return printererr.InvalidParameter(fmt.Sprintf("invalid file name %q", name))
	}
	return nil
}

// dispatch encodes and sends one request through the transport.
func (d *Dispatcher) dispatch(req codec.CommandRequest) error {
	if !d.lim.Allow() {
		return printererr.New(printererr.CodeRateLimited,
			fmt.Sprintf("command %s rejected: rate limit exceeded", req.Name))
	}

	frame, err := codec.Encode(req)
	if err != nil {
		return printererr.Wrap(printererr.CodeUnknownCommand, "encode failed", err)
	}

	if err := d.s.tr.Send(frame); err != nil {
		return err
	}

	d.mu.Lock()
	d.inflight[req.ID] = req.Name
	d.mu.Unlock()

	log.Printf("session: sent %s (%s)", req.Name, req.ID)
	return nil
}

// clearInFlight drops transient command bookkeeping, called on reconnect.
func (d *Dispatcher) clearInFlight() {
	d.mu.Lock()
	d.inflight = make(map[uuid.UUID]string)
	d.mu.Unlock()
}
