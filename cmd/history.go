package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/crealink/crealink/internal/config"
	"github.com/crealink/crealink/internal/journal"
)

func runHistory(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var pf printerFlags
	pf.register(fs)
	limit := fs.Int("n", 20, "number of transitions to show")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	path := pf.configPath
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if pf.journal != "" {
		cfg.JournalPath = pf.journal
	}
	if cfg.JournalPath == "" {
		fmt.Fprintf(stderr, "No journal configured (use --journal or journal_path in config)\n")
		return 1
	}

	jnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer jnl.Close()

	transitions, err := jnl.RecentTransitions(*limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if len(transitions) == 0 {
		fmt.Fprintln(stdout, "No transitions recorded")
		return 0
	}
	for _, tr := range transitions {
		fmt.Fprintf(stdout, "%s  %s -> %s\n", tr.At.Format("2006-01-02 15:04:05"), tr.From, tr.To)
	}
	return 0
}

func runInit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	host := fs.String("host", "", "printer address to write into the config")
	path := fs.String("config", "", "config file path (default ~/.crealink/config.toml)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	target := *path
	if target == "" {
		var err error
		target, err = config.DefaultConfigPath()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	if err := config.WriteDefault(target, *host); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Config ready at %s\n", target)
	return 0
}
