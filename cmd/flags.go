package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/crealink/crealink/internal/config"
	"github.com/crealink/crealink/internal/journal"
	"github.com/crealink/crealink/internal/session"
	"github.com/crealink/crealink/internal/state"
	"github.com/crealink/crealink/internal/transport"
)

// printerFlags holds the flags shared by commands that talk to a printer.
// Flag values override the config file.
type printerFlags struct {
	configPath string
	host       string
	port       int
	password   string
	journal    string
}

func (p *printerFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&p.configPath, "config", "", "config file path (default ~/.crealink/config.toml)")
	fs.StringVar(&p.host, "host", "", "printer address")
	fs.IntVar(&p.port, "port", 0, "control channel port (9999 FDM, 18188 resin)")
	fs.StringVar(&p.password, "password", "", "printer password")
	fs.StringVar(&p.journal, "journal", "", "telemetry journal database path")
}

// resolve loads the config file and applies flag overrides.
func (p *printerFlags) resolve() (*config.Config, error) {
	path := p.configPath
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if p.host != "" {
		cfg.Host = p.host
	}
	if p.port != 0 {
		cfg.Port = p.port
	}
	if p.password != "" {
		cfg.Password = p.password
	}
	if p.journal != "" {
		cfg.JournalPath = p.journal
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("no printer host configured (use --host or a config file)")
	}
	return cfg, nil
}

// openSession builds a session (and journal, if configured) from config.
// The caller owns both returned closers.
func openSession(cfg *config.Config) (*session.Session, *journal.Journal, error) {
	var jnl *journal.Journal
	if cfg.JournalPath != "" {
		var err error
		jnl, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, nil, err
		}
	}

	var rec session.Recorder
	if jnl != nil {
		rec = jnl
	}

	sess := session.New(session.Options{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Password:       cfg.Password,
		ConnectTimeout: time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond,
		StaleAfter:     time.Duration(cfg.StaleAfterMs) * time.Millisecond,
		BackoffInitial: time.Duration(cfg.ReconnectInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.ReconnectMaxMs) * time.Millisecond,
		CommandRate:    cfg.CommandRate,
		CommandBurst:   cfg.CommandBurst,
		Journal:        rec,
	})
	return sess, jnl, nil
}

// waitConnected blocks until the session's transport reports connected,
// or the timeout expires.
func waitConnected(sess *session.Session, timeout time.Duration, stderr io.Writer) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if sess.ConnState() == transport.StateConnected {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	fmt.Fprintf(stderr, "Timed out waiting for connection\n")
	return false
}

// waitOnline additionally waits for the first status frame so lifecycle
// preconditions (pause/resume/stop) see real state.
func waitOnline(sess *session.Session, timeout time.Duration, stderr io.Writer) bool {
	if !waitConnected(sess, timeout, stderr) {
		return false
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if sess.Snapshot().Status != state.StatusOffline {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	fmt.Fprintf(stderr, "Connected but no status frame received\n")
	return false
}
