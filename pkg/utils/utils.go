package utils

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	api "github.com/etesami/traffic-accident-observer/api"
	"github.com/etesami/traffic-accident-observer/pkg/rpc"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

// CalculateRtt returns the transit time in milliseconds: the time the message
// spent on the wire plus the time the ack spent on the wire, excluding the
// processing time in between.
func CalculateRtt(msgSentTime, msgRecTime, ackSentTime, ackRecTime time.Time) (float64, error) {
	if msgSentTime.IsZero() || msgRecTime.IsZero() || ackSentTime.IsZero() || ackRecTime.IsZero() {
		return -1, fmt.Errorf("missing timestamps: (%v, %v, %v, %v)", msgSentTime, msgRecTime, ackSentTime, ackRecTime)
	}
	t1 := msgRecTime.Sub(msgSentTime)
	t2 := ackRecTime.Sub(ackSentTime)
	return float64((t1 + t2).Microseconds()) / 1000.0, nil
}

// ParseBuckets parses a comma-separated string of bucket values into a slice of float64
func ParseBuckets(env string) []float64 {
	if env == "" {
		return nil
	}
	parts := strings.Split(env, ",")
	var buckets []float64
	for _, p := range parts {
		if f, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err == nil {
			buckets = append(buckets, f)
		} else {
			log.Printf("Error parsing bucket value '%s': %v\n", p, err)
			return nil
		}
	}
	return buckets
}

// GrpcClient holds the current observer client; it is swapped by MonitorConnection.
type GrpcClient struct {
	v atomic.Value
}

// Load returns the stored client or nil when no connection is ready yet.
func (c *GrpcClient) Load() rpc.TrackObserverClient {
	client, _ := c.v.Load().(rpc.TrackObserverClient)
	return client
}

func (c *GrpcClient) Store(client rpc.TrackObserverClient) {
	c.v.Store(client)
}

// MonitorConnection keeps clientRef pointed at a ready connection to targetSvc
// until ctx is done.
func MonitorConnection(ctx context.Context, targetSvc api.Service, clientRef *GrpcClient, every time.Duration) {
	var conn *grpc.ClientConn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		if err := targetSvc.ServiceReachable(); err != nil {
			log.Printf("Target service [%s] is not reachable: %v", targetSvc.Target(), err)
		} else if conn == nil || conn.GetState() == connectivity.TransientFailure || conn.GetState() == connectivity.Shutdown {
			if conn != nil {
				conn.Close()
			}
			newConn, err := grpc.NewClient(
				targetSvc.Target(),
				grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				log.Println("Failed to connect:", err)
			} else {
				conn = newConn
				clientRef.Store(rpc.NewTrackObserverClient(conn))
				log.Printf("gRPC client for [%s] connected and stored", targetSvc.Target())
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(every):
		}
	}
}
