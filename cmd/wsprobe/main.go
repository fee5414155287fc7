// Command wsprobe is a raw frame dumper for the printer control channel.
// Usage: go run ./cmd/wsprobe ws://192.168.1.50:9999/
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crealink/crealink/internal/auth"
)

func main() {
	url := "ws://127.0.0.1:9999/"
	if len(os.Args) > 1 {
		url = os.Args[1]
	}
	password := ""
	if len(os.Args) > 2 {
		password = os.Args[2]
	}

	fmt.Printf("Connecting to %s...\n", url)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Prime the stream the way the vendor app does.
	hello, err := auth.LegacyRequest("GET_PRINT_STATUS", password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build status request: %v\n", err)
		os.Exit(1)
	}
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to send status request: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Connected! Waiting for frames...")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	frameCount := 0

	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					fmt.Printf("Read error: %v\n", err)
				}
				return
			}

			frameCount++

			var fields map[string]interface{}
			if err := json.Unmarshal(data, &fields); err != nil {
				fmt.Printf("[%d] Raw: %s\n", frameCount, string(data))
				continue
			}
			fmt.Printf("[%d] %d keys:", frameCount, len(fields))
			for k, v := range fields {
				fmt.Printf(" %s=%v", k, v)
			}
			fmt.Println()
		}
	}()

	select {
	case <-done:
		fmt.Println("Connection closed")
	case <-interrupt:
		fmt.Println("Interrupted")
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}

	fmt.Printf("Total frames received: %d\n", frameCount)
}
