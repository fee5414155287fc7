package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/crealink/crealink/internal/state"
)

func runWatch(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var pf printerFlags
	pf.register(fs)
	if err := fs.Parse(args); err != nil {
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

	fmt.Fprintf(stdout, "Watching %s:%d (Ctrl-C to stop)\n", cfg.Host, cfg.Port)

	sess.OnUpdate(func(snap state.Snapshot) {
		fmt.Fprintf(stdout, "%-9s progress=%5.1f%% layer=%d/%d nozzle=%.1f/%.1f bed=%.1f/%.1f file=%s\n",
			snap.Status, snap.Progress, snap.Layer, snap.TotalLayers,
			snap.Nozzle.Current, snap.Nozzle.Target,
			snap.Bed[0].Current, snap.Bed[0].Target,
			snap.FileName)
	})

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	<-interrupt

	fmt.Fprintln(stdout, "Stopping")
	return 0
}
