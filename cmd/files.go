package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/crealink/crealink/internal/state"
)

func runFiles(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("files", flag.ContinueOnError)
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

	timeout := time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond
	if !waitConnected(sess, timeout, stderr) {
		return 1
	}

	// The listing arrives as a status frame; watch the snapshot's opaque
	// keys for the reply.
	done := make(chan string, 1)
	sess.OnUpdate(func(snap state.Snapshot) {
		if v, ok := snap.Extra["retGcodeFileInfo"]; ok {
			b, _ := json.MarshalIndent(v, "", "  ")
			select {
			case done <- string(b):
			default:
			}
		}
	})

	if err := sess.Dispatcher().RequestFileList(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	select {
	case listing := <-done:
		fmt.Fprintln(stdout, listing)
		return 0
	case <-time.After(timeout):
		fmt.Fprintf(stderr, "Timed out waiting for file listing\n")
		return 1
	}
}

func runPrint(args []string, stdout, stderr io.Writer) int {
	return runFileOp("print", args, stdout, stderr)
}

func runDelete(args []string, stdout, stderr io.Writer) int {
	return runFileOp("delete", args, stdout, stderr)
}

func runFileOp(op string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(op, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var pf printerFlags
	pf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	rest := fs.Args()
	if len(rest) != 2 {
		fmt.Fprintf(stderr, "Usage: crealink %s <storage> <file>\n", op)
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
	if !waitConnected(sess, timeout, stderr) {
		return 1
	}

	if op == "print" {
		err = sess.Dispatcher().PrintFile(rest[0], rest[1])
	} else {
		err = sess.Dispatcher().DeleteFile(rest[0], rest[1])
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Sent %s for %s/%s\n", op, rest[0], rest[1])
	return 0
}
