package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/crealink/crealink/internal/printererr"
	"github.com/crealink/crealink/internal/session"
)

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"crealink"}, &stdout, &stderr)
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "Usage:") {
		t.Error("usage text missing from stdout")
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"crealink", "bogus"}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Unknown command") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"crealink", "version"}, &stdout, &stderr)
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "crealink") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

// offlineSession builds a session pointed at a closed port so dispatchOp
// tests exercise argument parsing without a printer.
func offlineSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(session.Options{
		Host:           "test",
		TransportURL:   "ws://127.0.0.1:1/",
		BackoffInitial: time.Hour,
	})
	t.Cleanup(s.Close)
	return s
}

func TestDispatchOp_ArgumentErrors(t *testing.T) {
	sess := offlineSession(t)

	tests := []struct {
		name string
		op   string
		args []string
	}{
		{"unknown op", "explode", nil},
		{"fan missing percent", "fan", nil},
		{"fan non-numeric", "fan", []string{"fast"}},
		{"light missing arg", "light", nil},
		{"light bad arg", "light", []string{"maybe"}},
		{"bed-temp missing temp", "bed-temp", []string{"0"}},
		{"bed-temp non-numeric zone", "bed-temp", []string{"x", "60"}},
		{"z-offset missing delta", "z-offset", nil},
		{"z-offset non-numeric", "z-offset", []string{"up"}},
		{"move missing distance", "move", []string{"X"}},
		{"move non-numeric distance", "move", []string{"X", "far"}},
		{"recover missing arg", "recover", nil},
		{"recover bad arg", "recover", []string{"maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := dispatchOp(sess, tt.op, tt.args); err == nil {
				t.Errorf("dispatchOp(%q, %v) should fail", tt.op, tt.args)
			}
		})
	}
}

func TestDispatchOp_ValidatesBeforeTransport(t *testing.T) {
	sess := offlineSession(t)

	// Semantically invalid values fail with a coded parameter error even
	// though the transport is down.
	if err := dispatchOp(sess, "fan", []string{"150"}); !printererr.IsCode(err, printererr.CodeInvalidParameter) {
		t.Errorf("fan 150 error code = %q, want %q", printererr.GetCode(err), printererr.CodeInvalidParameter)
	}
	if err := dispatchOp(sess, "home", []string{"Q"}); !printererr.IsCode(err, printererr.CodeInvalidParameter) {
		t.Errorf("home Q error code = %q, want %q", printererr.GetCode(err), printererr.CodeInvalidParameter)
	}

	// Well-formed commands surface the connection failure.
	if err := dispatchOp(sess, "light", []string{"on"}); !printererr.IsCode(err, printererr.CodeNotConnected) {
		t.Errorf("light on error code = %q, want %q", printererr.GetCode(err), printererr.CodeNotConnected)
	}
}

func TestPrinterFlags_ResolveRequiresHost(t *testing.T) {
	pf := printerFlags{configPath: t.TempDir() + "/nope.toml"}
	if _, err := pf.resolve(); err == nil {
		t.Error("resolve() without a host should fail")
	}
}

func TestPrinterFlags_FlagOverridesConfig(t *testing.T) {
	pf := printerFlags{
		configPath: t.TempDir() + "/nope.toml",
		host:       "10.0.0.5",
		port:       18188,
	}
	cfg, err := pf.resolve()
	if err != nil {
		t.Fatalf("resolve() error: %v", err)
	}
	if cfg.Host != "10.0.0.5" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.Port != 18188 {
		t.Errorf("Port = %d, want 18188", cfg.Port)
	}
	// Untouched fields still carry defaults.
	if cfg.CommandRate != 5 {
		t.Errorf("CommandRate = %v, want default 5", cfg.CommandRate)
	}
}
