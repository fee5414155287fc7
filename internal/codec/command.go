// Package codec translates between high-level command requests and the
// printer's JSON wire format, and decodes inbound status frames into
// typed events.
//
// Outbound requests use the envelope {"method": "get"|"set", "params": {...}}.
// Parameter formatting follows the observed per-command shapes exactly:
// axis lists are space-joined, Z offsets carry an explicit sign, and file
// operations use compound "deleteprt:<storage>/<file>" strings. None of the
// commands have a reliable acknowledgement on the wire; confirmation is only
// observable through subsequent status frames.
package codec

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Method is the request envelope verb. Reads use "get", mutations use "set".
type Method string

const (
	MethodGet Method = "get"
	MethodSet Method = "set"
)

// CommandRequest is one named operation bound for the printer.
// It is immutable once constructed; the dispatcher owns it until send
// and discards it afterwards (the protocol offers no per-command
// acknowledgement to correlate against).
type CommandRequest struct {
	// ID identifies this request in logs and in-flight bookkeeping.
	ID uuid.UUID

	// Name is the human-readable operation name (for logs and errors).
	Name string

	// Method selects the envelope verb.
	Method Method

	// Key is the single params key this command sets or queries.
	Key string

	// Value is the pre-formatted params value.
	Value any
}

func newRequest(name string, method Method, key string, value any) CommandRequest {
	return CommandRequest{
		ID:     uuid.New(),
		Name:   name,
		Method: method,
		Key:    key,
		Value:  value,
	}
}

// RestartFirmware reboots the printer's mainboard.
func RestartFirmware() CommandRequest {
	return newRequest("restart-firmware", MethodSet, "restartFirmware", 1)
}

// RecoverAfterPowerLoss resumes (true) or cancels (false) a print job that
// was interrupted by an unexpected stop, such as a power failure.
func RecoverAfterPowerLoss(resume bool) CommandRequest {
	v := 0
	if resume {
		v = 1
	}
	return newRequest("recover-after-power-loss", MethodSet, "repoPlrStatus", v)
}

// RequestFileList asks the printer to report its stored G-code files.
func RequestFileList() CommandRequest {
	return newRequest("request-file-list", MethodGet, "reqGcodeFile", 1)
}

// RequestProbedMatrix asks for the bed leveling probe matrix.
func RequestProbedMatrix() CommandRequest {
	return newRequest("request-probed-matrix", MethodGet, "reqProbedMatrix", 1)
}

// ClearProbedMatrix erases the stored bed leveling probe matrix.
func ClearProbedMatrix() CommandRequest {
	return newRequest("clear-probed-matrix", MethodSet, "rmProbedMatrix", 1)
}

// RequestPrinterParams asks the printer to report its parameter block.
func RequestPrinterParams() CommandRequest {
	return newRequest("request-printer-params", MethodGet, "ReqPrinterPara", 1)
}

// HomeAxes homes the given axes. The axes string is the space-joined list
// already validated by the dispatcher, e.g. "X", "Y" or "X Y".
func HomeAxes(axes string) CommandRequest {
	return newRequest("home-axes", MethodSet, "autohome", axes)
}

// SetCaseFan sets the case fan speed percentage. The firmware expects the
// value as a numeric string.
func SetCaseFan(percent int) CommandRequest {
	return newRequest("set-case-fan", MethodSet, "fanCase", strconv.Itoa(percent))
}

// SetLight switches the chamber light. The firmware expects "1"/"0".
func SetLight(on bool) CommandRequest {
	v := "0"
	if on {
		v = "1"
	}
	return newRequest("set-light", MethodSet, "lightSw", v)
}

// bedTempParams is the nested value shape for bedTempControl.
type bedTempParams struct {
	Num int `json:"num"`
	Val int `json:"val"`
}

// SetBedTemp sets the target temperature for one bed zone.
func SetBedTemp(zone, celsius int) CommandRequest {
	return newRequest("set-bed-temp", MethodSet, "bedTempControl", bedTempParams{Num: zone, Val: celsius})
}

// DeleteFile removes a stored G-code file. Storage is the printer-side
// volume prefix (the "<t>" part of "deleteprt:<t>/<e>").
func DeleteFile(storage, name string) CommandRequest {
	return newRequest("delete-file", MethodSet, "opGcodeFile", fmt.Sprintf("deleteprt:%s/%s", storage, name))
}

// PrintFile starts printing a stored G-code file.
func PrintFile(storage, name string) CommandRequest {
	return newRequest("print-file", MethodSet, "opGcodeFile", fmt.Sprintf("printprt:%s/%s", storage, name))
}

// SetZOffset adjusts the Z offset by the given delta in millimeters.
// The firmware requires an explicit sign prefix even for positive values.
func SetZOffset(delta float64) CommandRequest {
	return newRequest("set-z-offset", MethodSet, "setZOffset", fmt.Sprintf("%+.2f", delta))
}

// MoveAxis moves one axis by the given distance in millimeters at the
// fixed jog feedrate the vendor UI uses.
func MoveAxis(axis string, distance float64) CommandRequest {
	return newRequest("move-axis", MethodSet, "setPosition",
		fmt.Sprintf("%s%s F3000", axis, strconv.FormatFloat(distance, 'f', -1, 64)))
}

// Stop aborts the active print job.
func Stop() CommandRequest {
	return newRequest("stop", MethodSet, "stop", 1)
}

// Resume resumes a stopped or paused job on firmware that models resume
// as the inverse of stop.
func Resume() CommandRequest {
	return newRequest("resume", MethodSet, "stop", 0)
}

// Pause pauses (true) or unpauses (false) the active print job on the
// FDM dialect.
func Pause(paused bool) CommandRequest {
	v := 0
	if paused {
		v = 1
	}
	return newRequest("pause", MethodSet, "pause", v)
}

// envelope is the outbound wire shape.
type envelope struct {
	Method Method         `json:"method"`
	Params map[string]any `json:"params"`
}

// Encode serializes a command request to its wire frame.
func Encode(req CommandRequest) ([]byte, error) {
	if req.Key == "" {
		return nil, fmt.Errorf("command %q has no params key", req.Name)
	}
	return json.Marshal(envelope{
		Method: req.Method,
		Params: map[string]any{req.Key: req.Value},
	})
}
