package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/downfa11-org/go-eventlog/pkg/config"
	"github.com/downfa11-org/go-eventlog/pkg/disk"
	"github.com/downfa11-org/go-eventlog/pkg/server"
)

func main() {
	// Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	fmt.Printf("🚀 Starting event log on port %d\n", cfg.Port)
	fmt.Printf("💾 Data dir: %s | 📊 Exporter: %v\n", cfg.DataDir, cfg.EnableExporter)

	// Startup recovery runs here; an inconsistent offset/event file pair is
	// fatal and aborts the process before the server accepts requests.
	h, err := disk.NewHandler(cfg)
	if err != nil {
		log.Fatalf("❌ Event log recovery failed: %v", err)
	}

	// Drain queued writes before exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("🛑 Received %v, shutting down\n", sig)
		h.Close()
		os.Exit(0)
	}()

	if err := server.RunServer(cfg, h); err != nil {
		h.Close()
		log.Fatalf("❌ Server failed: %v", err)
	}
}
