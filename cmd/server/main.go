package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"LIVE_FEEDBACK/backend/internal/config"
	"LIVE_FEEDBACK/backend/internal/handlers"
	"LIVE_FEEDBACK/backend/internal/rooms"
	"LIVE_FEEDBACK/backend/internal/services"
)

func main() {
	httpPort := flag.String("http-port", "", "HTTP port (overrides HTTP_PORT)")
	flag.Parse()

	cfg := config.LoadConfig()
	if *httpPort != "" {
		cfg.HTTPPort = *httpPort
	}

	log.Println("Starting Live Feedback server...")
	log.Printf("HTTP port: %s", cfg.HTTPPort)
	log.Printf("Environment: %s", cfg.Environment)
	log.Printf("Thresholds: gaze=%.2f rotation=%.0f ear=%.2f drowsy=%s noface=%d cooldown=%s",
		cfg.LookingAwayThreshold, cfg.HeadRotationThreshold, cfg.DrowsyEARThreshold,
		cfg.DrowsyDuration, cfg.NoFaceFrames, cfg.AlertCooldown)

	metrics := services.NewMetrics()
	registry := rooms.NewRegistry(metrics)
	handler := handlers.New(cfg, registry, metrics)

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: handler.Router(),
		// No global read/write timeouts: the websocket connections are
		// long-lived and paced by their own ping/pong deadlines.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("HTTP server listening on port %s", cfg.HTTPPort)
		log.Printf("WebSocket:  ws://localhost:%s/ws/supervisor", cfg.HTTPPort)
		log.Printf("REST API:   http://localhost:%s/", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	log.Println("Closing rooms and websocket connections...")
	registry.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	} else {
		log.Println("HTTP server gracefully stopped")
	}

	log.Println("Goodbye!")
}
