// Package discovery locates Creality printers on the local network.
//
// Two mechanisms are combined: an mDNS/DNS-SD browse for hosts that
// advertise themselves, and direct port probing of the two known control
// ports (9999 for the FDM line, 18188 for legacy resin). Probing opens the
// control channel, sends a status request, and waits briefly for any
// reply; any response means a printer is listening.
package discovery

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"

	"github.com/crealink/crealink/internal/auth"
	"github.com/crealink/crealink/internal/printererr"
)

// ServiceType is the mDNS service type browsed for printer advertisements.
const ServiceType = "_creality._tcp"

// CandidatePorts are probed in order when detecting a printer's port.
var CandidatePorts = []int{9999, 18188}

const (
	probeDialTimeout  = 5 * time.Second
	probeReplyTimeout = 3 * time.Second
)

// Printer describes one discovered printer endpoint.
type Printer struct {
	Host string
	Port int
	Name string // mDNS instance name, empty for probed hosts
}

// Browse searches the local network for advertised printers until the
// context expires. Hosts found via mDNS are port-probed to confirm the
// control channel responds.
func Browse(ctx context.Context, password string) ([]Printer, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("init mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	var found []Printer
	for entry := range entries {
		if len(entry.AddrIPv4) == 0 {
			continue
		}
		host := entry.AddrIPv4[0].String()

		port := entry.Port
		if !probe(ctx, host, port, password) {
			// The advertisement may not name the control port; fall back
			// to probing the known ones.
			p, err := DetectPort(ctx, host, password)
			if err != nil {
				log.Printf("discovery: %s advertised but no control port responded", host)
				continue
			}
			port = p
		}

		found = append(found, Printer{Host: host, Port: port, Name: entry.Instance})
	}
	return found, nil
}

// DetectPort probes the candidate control ports on a host and returns the
// first one that answers a status request.
func DetectPort(ctx context.Context, host, password string) (int, error) {
	for _, port := range CandidatePorts {
		if probe(ctx, host, port, password) {
			return port, nil
		}
	}
	return 0, printererr.New(printererr.CodeDiscoveryFailed,
		fmt.Sprintf("no control port responded on %s", host))
}

// Probe reports whether a printer control channel answers on host:port.
func Probe(ctx context.Context, host string, port int, password string) bool {
	return probe(ctx, host, port, password)
}

func probe(ctx context.Context, host string, port int, password string) bool {
	url := fmt.Sprintf("ws://%s:%d/", host, port)

	dialCtx, cancel := context.WithTimeout(ctx, probeDialTimeout)
	defer cancel()

	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return false
	}
	defer conn.Close()

	req, err := auth.LegacyRequest("GET_PRINT_STATUS", password)
	if err != nil {
		return false
	}
	conn.SetWriteDeadline(time.Now().Add(probeReplyTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, req); err != nil {
		return false
	}

	// Any reply at all means a printer is listening.
	conn.SetReadDeadline(time.Now().Add(probeReplyTimeout))
	_, _, err = conn.ReadMessage()
	return err == nil
}
