package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	api "github.com/etesami/traffic-accident-observer/api"
	mt "github.com/etesami/traffic-accident-observer/pkg/metric"
	"github.com/etesami/traffic-accident-observer/pkg/rpc"
	"github.com/etesami/traffic-accident-observer/pkg/utils"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// ErrNoClient is returned while the observer connection is not ready.
var ErrNoClient = errors.New("client is not initialized")

// BatchSource yields frame batches until io.EOF.
type BatchSource interface {
	Next() (*api.FrameBatch, error)
}

// FrameImages yields encoded images to attach to batches.
type FrameImages interface {
	Next() ([]byte, bool)
}

type Config struct {
	SourceId  string  // overrides the source id of every batch when set
	FrameRate float64 // batches per second, 0 sends as fast as acks arrive
	Service   string  // metric label of the observer
}

// SendFrame sends one batch to the observer service and records latency metrics.
func SendFrame(ctx context.Context, b *api.FrameBatch, clientRef *utils.GrpcClient, m *mt.Metric, dstSvcName string) (*api.FrameAck, error) {
	client := clientRef.Load()
	if client == nil {
		return nil, ErrNoClient
	}

	sentAt := time.Now()
	b.SentTimestamp = timestamppb.New(sentAt)

	pong, err := client.ProcessFrame(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("error sending frame to server: %w", err)
	}
	now := time.Now()
	addSentDataBytes(dstSvcName, m, float64(rpc.Size(b)))

	transTime, err := utils.CalculateRtt(sentAt, pong.ReceivedTimestamp.AsTime(), pong.AckSentTimestamp.AsTime(), now)
	if err != nil {
		return pong, fmt.Errorf("error calculating RTT: %w", err)
	}
	e2eSvcLatency := float64(now.Sub(sentAt).Microseconds()) / 1000.0

	addTransitTime(dstSvcName, m, transTime)
	addE2ELatency(dstSvcName, m, e2eSvcLatency)

	log.Printf("Sent frame [%d], [%s] response: [%s], RTT [%.2f]ms, Total [%.2f]ms", b.FrameId, dstSvcName, pong.Status, transTime, e2eSvcLatency)
	return pong, nil
}

// Replay sends every batch of src in order, pacing them at cfg.FrameRate.
// It returns the number of batches acknowledged.
func Replay(ctx context.Context, cfg Config, src BatchSource, images FrameImages, clientRef *utils.GrpcClient, m *mt.Metric) (int, error) {
	var tick <-chan time.Time
	if cfg.FrameRate > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / cfg.FrameRate))
		defer ticker.Stop()
		tick = ticker.C
	}

	sent := 0
	for {
		b, err := src.Next()
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, err
		}
		if cfg.SourceId != "" {
			b.SourceId = cfg.SourceId
		}
		if images != nil && len(b.Frame) == 0 {
			if img, ok := images.Next(); ok {
				b.Frame = img
			}
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return sent, err
		}

		ack, err := SendFrame(ctx, b, clientRef, m, cfg.Service)
		switch {
		case errors.Is(err, ErrNoClient):
			log.Printf("Skipping frame [%d]: %v", b.FrameId, err)
			increaseFrames(cfg.Service, m, "skipped")
			continue
		case err != nil && ack == nil:
			log.Printf("Error sending frame [%d]: %v", b.FrameId, err)
			increaseFrames(cfg.Service, m, "failed")
			continue
		case err != nil:
			log.Printf("Frame [%d] acknowledged: %v", b.FrameId, err)
		}
		increaseFrames(cfg.Service, m, "sent")
		sent++
		for _, c := range ack.Collisions {
			log.Printf("Observer reported collision in frame [%d]: pedestrian [%d] vehicle [%d] at [%d,%d]",
				b.FrameId, c.PedestrianId, c.VehicleId, c.X, c.Y)
		}
	}
}
