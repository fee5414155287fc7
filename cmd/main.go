package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.1.0" ./cmd
var Version = "dev"

const usage = `crealink - protocol adapter for Creality WebSocket printers

Usage:
  crealink <command> [options]

Commands:
  watch         Connect and stream printer status updates
  send <op>     Send a one-shot command (run 'crealink send --help')
  files         List G-code files stored on the printer
  print <t> <f>   Start printing a stored file
  delete <t> <f>  Delete a stored file
  discover      Find printers on the local network
  history       Show recent lifecycle transitions from the journal
  init          Write a default config file
  version       Print the version

Run 'crealink <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "watch":
		return runWatch(args[2:], stdout, stderr)
	case "send":
		return runSend(args[2:], stdout, stderr)
	case "files":
		return runFiles(args[2:], stdout, stderr)
	case "print":
		return runPrint(args[2:], stdout, stderr)
	case "delete":
		return runDelete(args[2:], stdout, stderr)
	case "discover":
		return runDiscover(args[2:], stdout, stderr)
	case "history":
		return runHistory(args[2:], stdout, stderr)
	case "init":
		return runInit(args[2:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "crealink %s\n", Version)
		return 0
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}
