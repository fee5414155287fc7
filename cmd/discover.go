package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/crealink/crealink/internal/discovery"
)

func runDiscover(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		host     = fs.String("host", "", "probe a specific host instead of browsing")
		password = fs.String("password", "", "printer password for the probe request")
		timeout  = fs.Duration("timeout", 5*time.Second, "how long to browse")
		showQR   = fs.Bool("qr", false, "render each printer's control URL as a QR code")
	)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var printers []discovery.Printer
	if *host != "" {
		port, err := discovery.DetectPort(ctx, *host, *password)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		printers = []discovery.Printer{{Host: *host, Port: port}}
	} else {
		var err error
		printers, err = discovery.Browse(ctx, *password)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	if len(printers) == 0 {
		fmt.Fprintln(stdout, "No printers found")
		return 1
	}

	for _, p := range printers {
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}
		url := fmt.Sprintf("ws://%s:%d/", p.Host, p.Port)
		fmt.Fprintf(stdout, "%s  %s\n", name, url)

		if *showQR {
			qr, err := qrcode.New(url, qrcode.Medium)
			if err != nil {
				fmt.Fprintf(stderr, "Error generating QR code: %v\n", err)
				continue
			}
			fmt.Fprint(stdout, qr.ToSmallString(false))
		}
	}
	return 0
}
