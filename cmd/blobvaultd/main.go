// Command blobvaultd is the thinnest possible host for the blob store
// core: it loads configuration, starts a coordinator, runs a short
// scripted demo sequence so the binary has an observable effect, then
// waits for a shutdown signal. It is not the interactive CLI front end the
// core's specification places out of scope (§1) — that front end, and the
// actor-runtime bootstrap beyond what Start wires up, are external
// collaborators this binary does not attempt to be.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dreamware/blobvault/internal/config"
	"github.com/dreamware/blobvault/internal/coordinator"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	coord, err := coordinator.Start(cfg)
	if err != nil {
		log.Fatalf("starting coordinator: %v", err)
	}

	runDemo(coord)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down...")
	if err := coord.Shutdown(); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
	log.Println("blobvaultd stopped")
}

// runDemo exercises the core's external interface once at startup so the
// binary has an observable effect without an interactive front end.
func runDemo(coord *coordinator.Coordinator) {
	const name = "welcome"

	if err := coord.Upload(name, []byte("hello, blobvault")); err != nil {
		log.Printf("demo upload failed: %v", err)
		return
	}

	content, err := coord.Get(name)
	if err != nil {
		log.Printf("demo get failed: %v", err)
		return
	}
	fmt.Printf("%s -> %s\n", name, content)

	nodes := coord.ListNodes()
	fmt.Printf("%d storage actors online\n", len(nodes))
}
