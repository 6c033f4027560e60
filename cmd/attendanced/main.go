package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheuscascao/attendance-registry/config"
	"github.com/matheuscascao/attendance-registry/internal/api/handlers"
	"github.com/matheuscascao/attendance-registry/internal/attendance"
	"github.com/matheuscascao/attendance-registry/internal/camera"
	"github.com/matheuscascao/attendance-registry/internal/cleanup"
	"github.com/matheuscascao/attendance-registry/internal/db"
	"github.com/matheuscascao/attendance-registry/internal/db/repository"
	"github.com/matheuscascao/attendance-registry/internal/display"
	"github.com/matheuscascao/attendance-registry/internal/enrollment"
	"github.com/matheuscascao/attendance-registry/internal/integrations/mqtt"
	"github.com/matheuscascao/attendance-registry/internal/integrations/provider"
	"github.com/matheuscascao/attendance-registry/internal/logger"
	"github.com/matheuscascao/attendance-registry/internal/recognition"
	"github.com/matheuscascao/attendance-registry/internal/server/sse"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Log); err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}

	// Database and repository
	database, err := db.Initialize(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	repo := repository.NewSQLiteRepository(database)

	// Reference image store
	store, err := enrollment.NewStore(cfg.Recognition.FacesDir)
	if err != nil {
		log.Fatalf("Failed to open reference image store: %v", err)
	}
	if codes, err := store.Codes(); err == nil {
		log.Infof("Reference image store ready with %d enrolled identit(ies)", len(codes))
	}

	// Face comparator
	comparator, err := provider.NewComparator(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize face comparator: %v", err)
	}
	log.Infof("Using face comparator: %s", comparator.Name())

	// Cleanup service
	cleanupService := cleanup.NewService(repo, cfg.Cleanup.RetentionDays, 24*time.Hour)
	if cleanupService != nil {
		cleanupService.StartBackgroundCleanup()
	}

	// SSE hub for live event streaming
	hub := sse.NewHub()
	go hub.Run()

	// Attendance sinks: database always, SSE always, MQTT when enabled
	sinks := attendance.MultiSink{
		attendance.NewStoreSink(repo),
		attendance.NewSSESink(hub),
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(cfg.MQTT)
		if err := mqttClient.Start(); err != nil {
			log.Warnf("Failed to connect MQTT client: %v. Continuing without MQTT.", err)
			mqttClient = nil
		} else {
			sinks = append(sinks, attendance.NewMQTTSink(mqttClient, cfg.MQTT.Topic))
			defer mqttClient.Stop()
		}
	} else {
		log.Info("MQTT is disabled in config")
	}

	// Camera and display surface
	device := camera.NewDevice(cfg.Camera)
	var surface recognition.Display
	if cfg.Camera.Display {
		surface = display.NewWindow(cfg.Camera)
	} else {
		log.Info("Display window disabled, running headless")
	}

	processor := recognition.NewProcessor(cfg.Recognition, device, surface, comparator, store, sinks)

	// HTTP API server
	router := gin.Default()
	router.Use(cors.Default())
	apiHandler := handlers.NewAPIHandler(cfg, repo, store, hub, processor)
	apiHandler.RegisterRoutes(router)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}
	go func() {
		log.Infof("Starting API server on %s", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	// Stop everything on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Infof("Received signal %s, shutting down...", sig)
		processor.Stop()
	}()

	// Recognition loop blocks the main goroutine until Stop
	if err := processor.Start(); err != nil {
		log.Fatalf("Failed to start capture device: %v", err)
	}
	if err := processor.Run(); err != nil {
		log.Errorf("Recognition loop error: %v", err)
	}

	// Loop exited: tear down the rest
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("API server shutdown: %v", err)
	}

	if cleanupService != nil {
		cleanupService.StopBackgroundCleanup()
	}

	log.Info("Shutdown complete")
}
