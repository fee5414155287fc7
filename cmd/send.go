package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/crealink/crealink/internal/session"
)

// sessionLike lets tests drive dispatchOp with a session wired to a fake
// printer.
type sessionLike interface {
	Dispatcher() *session.Dispatcher
}

const sendUsage = `Usage: crealink send <operation> [args] [options]

Operations:
  home <axis>...          Home axes (X, Y, Z)
  fan <percent>           Set case fan speed
  light on|off            Switch the chamber light
  bed-temp <zone> <temp>  Set bed zone target temperature
  z-offset <delta>        Adjust Z offset in mm (signed)
  move <axis> <dist>      Jog an axis by dist mm (signed)
  pause                   Pause the active print
  resume                  Resume a paused print
  stop                    Abort the active print
  recover resume|cancel   Resume or cancel after power loss
  restart-firmware        Reboot the printer
  matrix                  Request the bed probe matrix
  clear-matrix            Clear the bed probe matrix
  params                  Request the printer parameter block
`

func runSend(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var pf printerFlags
	pf.register(fs)
	fs.Usage = func() { fmt.Fprint(stderr, sendUsage) }
	if err := fs.Parse(args); err != nil {
		return 1
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprint(stderr, sendUsage)
		return 1
	}

	cfg, err := pf.resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	sess, jnl, err := openSession(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer sess.Close()
	if jnl != nil {
		defer jnl.Close()
	}

	timeout := time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond
	op := rest[0]
	opArgs := rest[1:]

	// pause/resume/stop check lifecycle preconditions against the
	// snapshot, so they need the first status frame, not just a socket.
	needsState := op == "pause" || op == "resume" || op == "stop"
	if needsState {
		if !waitOnline(sess, timeout, stderr) {
			return 1
		}
	} else if !waitConnected(sess, timeout, stderr) {
		return 1
	}

	if err := dispatchOp(sess, op, opArgs); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Sent %s\n", op)
	return 0
}

func dispatchOp(sess sessionLike, op string, args []string) error {
	d := sess.Dispatcher()

	switch op {
	case "home":
		return d.HomeAxes(args...)
	case "fan":
		pct, err := intArg(args, 0, "percent")
		if err != nil {
			return err
		}
		return d.SetCaseFan(pct)
	case "light":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return fmt.Errorf("light takes exactly one argument: on or off")
		}
		return d.SetLight(args[0] == "on")
	case "bed-temp":
		zone, err := intArg(args, 0, "zone")
		if err != nil {
			return err
		}
		temp, err := intArg(args, 1, "temperature")
		if err != nil {
			return err
		}
		return d.SetBedTemp(zone, temp)
	case "z-offset":
		delta, err := floatArg(args, 0, "delta")
		if err != nil {
			return err
		}
		return d.SetZOffset(delta)
	case "move":
		if len(args) < 2 {
			return fmt.Errorf("move takes an axis and a distance")
		}
		dist, err := floatArg(args, 1, "distance")
		if err != nil {
			return err
		}
		return d.MoveAxis(args[0], dist)
	case "pause":
		return d.Pause()
	case "resume":
		return d.Resume()
	case "stop":
		return d.Stop()
	case "recover":
		if len(args) != 1 || (args[0] != "resume" && args[0] != "cancel") {
			return fmt.Errorf("recover takes exactly one argument: resume or cancel")
		}
		return d.RecoverAfterPowerLoss(args[0] == "resume")
	case "restart-firmware":
		return d.RestartFirmware()
	case "matrix":
		return d.RequestProbedMatrix()
	case "clear-matrix":
		return d.ClearProbedMatrix()
	case "params":
		return d.RequestPrinterParams()
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

func intArg(args []string, i int, name string) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing %s argument", name)
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, args[i])
	}
	return v, nil
}

func floatArg(args []string, i int, name string) (float64, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing %s argument", name)
	}
	v, err := strconv.ParseFloat(args[i], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, args[i])
	}
	return v, nil
}
