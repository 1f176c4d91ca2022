package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	api "github.com/etesami/traffic-accident-observer/api"
	metric "github.com/etesami/traffic-accident-observer/pkg/metric"
	"github.com/etesami/traffic-accident-observer/pkg/render"
	utils "github.com/etesami/traffic-accident-observer/pkg/utils"
	"github.com/etesami/traffic-accident-observer/svc-replay/internal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {

	// Setup the metric service for tracking metrics of the remote observer
	sentDataBuckets := utils.ParseBuckets(os.Getenv("SENT_DATA_BUCKETS"))
	transTimeBuckets := utils.ParseBuckets(os.Getenv("TRANSMIT_TIME_BUCKETS"))
	e2eTimeBuckets := utils.ParseBuckets(os.Getenv("E2E_TIME_BUCKETS"))
	m := metric.NewMetric(prometheus.DefaultRegisterer, sentDataBuckets, nil, transTimeBuckets, e2eTimeBuckets)

	batchFile := os.Getenv("BATCH_FILE")
	if batchFile == "" {
		panic("BATCH_FILE environment variable is not set")
	}
	f, err := os.Open(batchFile)
	if err != nil {
		log.Fatalf("Failed to open batch file: %v", err)
	}
	defer f.Close()

	frameRate, _ := strconv.ParseFloat(os.Getenv("FRAME_RATE"), 64)
	cfg := internal.Config{
		SourceId:  os.Getenv("SOURCE_ID"),
		FrameRate: frameRate,
		Service:   "observer",
	}

	var images internal.FrameImages
	if videoFile := os.Getenv("VIDEO_FILE"); videoFile != "" {
		vf, err := render.OpenVideoFrames(videoFile)
		if err != nil {
			log.Fatalf("Failed to open video: %v", err)
		}
		defer vf.Close()
		images = vf
	}

	// Setup the remote service (observer) and keep the connection alive as client
	REMOTE_OBSERVER_HOST := os.Getenv("REMOTE_OBSERVER_HOST")
	REMOTE_OBSERVER_PORT := os.Getenv("REMOTE_OBSERVER_PORT")
	if REMOTE_OBSERVER_HOST == "" || REMOTE_OBSERVER_PORT == "" {
		panic("REMOTE_OBSERVER_HOST or REMOTE_OBSERVER_PORT environment variable is not set")
	}
	targetSvc := api.Service{
		Address: REMOTE_OBSERVER_HOST,
		Port:    REMOTE_OBSERVER_PORT,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up channel to listen for interrupt or terminate signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("Received shutdown signal\n")
		cancel()
	}()

	var client utils.GrpcClient
	go utils.MonitorConnection(ctx, targetSvc, &client, 2*time.Second)

	metricAddr := os.Getenv("METRIC_ADDR")
	metricPort := os.Getenv("METRIC_PORT")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", metricAddr, metricPort),
		Handler: mux,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting metrics server on %s\n", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	// Wait for the first connection before replaying
	for client.Load() == nil && ctx.Err() == nil {
		time.Sleep(200 * time.Millisecond)
	}

	sent, err := internal.Replay(ctx, cfg, internal.NewBatchReader(f), images, &client, m)
	if err != nil && ctx.Err() == nil {
		log.Printf("Replay stopped: %v\n", err)
	}
	log.Printf("Replayed [%d] frames from [%s]\n", sent, batchFile)

	if err := server.Shutdown(context.Background()); err != nil {
		log.Printf("Error shutting down server: %v\n", err)
	}
}
