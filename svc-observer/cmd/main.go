package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/etesami/traffic-accident-observer/api"
	"github.com/etesami/traffic-accident-observer/pkg/event"
	metric "github.com/etesami/traffic-accident-observer/pkg/metric"
	"github.com/etesami/traffic-accident-observer/pkg/render"
	"github.com/etesami/traffic-accident-observer/pkg/rpc"
	"github.com/etesami/traffic-accident-observer/pkg/store"
	utils "github.com/etesami/traffic-accident-observer/pkg/utils"
	"github.com/etesami/traffic-accident-observer/svc-observer/internal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

func main() {

	// Observer tuning comes from the config file, service wiring from the environment
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := internal.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config [%s]: %v", cfgPath, err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	obsCfg, _ := cfg.ObserverConfig()

	procTimeBuckets := utils.ParseBuckets(os.Getenv("PROC_TIME_BUCKETS"))
	m := metric.NewMetric(prometheus.DefaultRegisterer, nil, procTimeBuckets, nil, nil)

	// Local service initialization (observer) to receive detection batches
	svcHost := os.Getenv("SVC_OBSERVER_HOST")
	svcPort := os.Getenv("SVC_OBSERVER_PORT")
	if svcPort == "" || svcHost == "" {
		panic("SVC_OBSERVER_HOST or SVC_OBSERVER_PORT environment variable is not set")
	}
	localSvc := &api.Service{
		Address: svcHost,
		Port:    svcPort,
	}

	// We listen on all interfaces
	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", localSvc.Port))
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}

	// Event sinks, each one optional
	var sinks []event.Sink
	var eventStore *store.DB
	if cfg.Events.FilePath != "" {
		fs, err := event.NewFileSink(cfg.Events.FilePath)
		if err != nil {
			log.Fatalf("Failed to open event file: %v", err)
		}
		sinks = append(sinks, fs)
	}
	if cfg.Events.WebhookURL != "" {
		ws, err := event.NewWebhookSink(cfg.Events.WebhookURL, cfg.Events.WebhookHeaders, cfg.Events.DeliverTimeout)
		if err != nil {
			log.Fatalf("Failed to create webhook sink: %v", err)
		}
		sinks = append(sinks, ws)
	}
	if cfg.Events.SQLitePath != "" {
		eventStore, err = store.Open(cfg.Events.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open event store: %v", err)
		}
		sinks = append(sinks, store.NewSink(eventStore))
	}

	s := &internal.Server{
		ObserverConfig: obsCfg,
		Metric:         m,
	}
	if len(sinks) > 0 {
		s.Emitter = event.NewEmitter(cfg.EmitterConfig(), sinks, m)
		log.Printf("Delivering events to [%d] sinks\n", len(sinks))
	}
	if cfg.RenderEnabled() {
		r, err := render.New(renderOptions(cfg), obsCfg.Zones)
		if err != nil {
			log.Fatalf("Failed to create renderer: %v", err)
		}
		s.Renderer = r
	}

	grpcServer := grpc.NewServer()
	rpc.RegisterTrackObserverServer(grpcServer, s)

	go func() {
		log.Printf("starting gRPC server on port %s:%s\n", localSvc.Address, localSvc.Port)
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	var lister internal.EventLister
	if eventStore != nil {
		lister = eventStore
	}
	metricAddr := os.Getenv("METRIC_ADDR")
	metricPort := os.Getenv("METRIC_PORT")
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", metricAddr, metricPort),
		Handler:      internal.NewStatusRouter(s, lister, promhttp.Handler()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting metrics and status server on %s\n", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	// Set up channel to listen for interrupt or terminate signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan // Wait for signal
	log.Printf("Received shutdown signal\n")
	grpcServer.GracefulStop() // Stop the gRPC server gracefully

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Emitter.Close(ctx)
	if s.Renderer != nil {
		s.Renderer.Close()
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down server: %v\n", err)
	}
	if eventStore != nil {
		eventStore.Close()
	}
	log.Printf("Server shut down gracefully\n")
}

func renderOptions(cfg *internal.Config) render.Options {
	return render.Options{
		VehicleClasses:     cfg.Detection.VehicleClasses,
		DrawZones:          cfg.Render.DrawROI,
		DrawPath:           cfg.Render.DrawPersonWay,
		SaveImage:          cfg.Render.SaveImage,
		SaveImagePath:      cfg.Render.SaveImagePath,
		SaveImageFrequency: cfg.Render.SaveImageFrequency,
		VideoWriter: render.VideoWriterConfig{
			Enabled:        cfg.VideoWriter.Write,
			OutputPath:     cfg.VideoWriter.OutputPath,
			FPS:            cfg.VideoWriter.FPS,
			FourCC:         cfg.VideoWriter.FourCC,
			SkipFrames:     cfg.VideoWriter.SkipFrames,
			SegmentSeconds: cfg.VideoWriter.SegmentSeconds,
		},
	}
}
