// =============================================================================
// BATTLE ENGINE - SPECTATOR
// =============================================================================
// This standalone process is a thin WAMP client: it dials a router over
// WebSocket, joins a realm, subscribes to one battle's event topic, and
// prints every event line to stdout as it arrives.
//
// USAGE:
//   go run ./cmd/spectator -addr ws://localhost:8080/wamp -realm battles -topic battle.b1.events
// =============================================================================
package main

import (
	"bytes"
	"context"
	"encoding/gob"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"battlecore/internal/wamp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables only")
	}

	addr := flag.String("addr", getEnvWithDefault("WAMP_ADDR", "ws://localhost:8080/wamp"), "WAMP router WebSocket URL")
	realm := flag.String("realm", getEnvWithDefault("WAMP_REALM", "battles"), "WAMP realm to join")
	topic := flag.String("topic", getEnvWithDefault("WAMP_TOPIC", "battle.events"), "topic to subscribe to")
	flag.Parse()

	log.Println("================================")
	log.Println(" BATTLE ENGINE - SPECTATOR")
	log.Println("================================")
	log.Printf("router: %s  realm: %s  topic: %s", *addr, *realm, *topic)

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatalf("failed to dial router: %v", err)
	}
	transport := wamp.NewWSTransport(conn)

	session := wamp.NewSession(transport, *realm)

	runCtx, cancelRun := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- session.Run(runCtx) }()

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelConnect()
	if err := session.Connect(connectCtx); err != nil {
		log.Fatalf("failed to establish session: %v", err)
	}
	log.Println("session established")

	subCtx, cancelSub := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSub()
	_, err = session.Subscribe(subCtx, *topic, func(ev wamp.EventMsg) {
		var line string
		if derr := gob.NewDecoder(bytes.NewReader(ev.Args)).Decode(&line); derr != nil {
			log.Printf("undecodable event on %s: %v", *topic, derr)
			return
		}
		os.Stdout.WriteString(line + "\n")
	})
	if err != nil {
		log.Fatalf("failed to subscribe to %s: %v", *topic, err)
	}
	log.Printf("subscribed to %s", *topic)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("shutting down...")
	case err := <-runDone:
		log.Printf("session ended: %v", err)
		cancelRun()
		return
	}

	cancelRun()
	<-runDone
	log.Println("goodbye")
}

func getEnvWithDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
