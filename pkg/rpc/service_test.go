package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	api "github.com/etesami/traffic-accident-observer/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type echoServer struct {
	UnimplementedTrackObserverServer
	got *api.FrameBatch
}

func (s *echoServer) ProcessFrame(_ context.Context, in *api.FrameBatch) (*api.FrameAck, error) {
	s.got = in
	return &api.FrameAck{
		Status:                "ok",
		OriginalSentTimestamp: in.SentTimestamp,
		Pedestrians:           len(in.Detections),
		Collisions:            []api.Collision{{PedestrianId: 1, VehicleId: 2, X: 3, Y: 4}},
	}, nil
}

func dial(t *testing.T, srv TrackObserverServer) TrackObserverClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterTrackObserverServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewTrackObserverClient(conn)
}

func TestProcessFrameRoundTrip(t *testing.T) {
	srv := &echoServer{}
	client := dial(t, srv)

	sent := timestamppb.New(time.UnixMilli(1700000000123))
	in := &api.FrameBatch{
		SourceId:      "cam-1",
		FrameId:       42,
		SentTimestamp: sent,
		Detections: []api.Detection{
			{TrackId: 1, Box: [4]int{1, 2, 3, 4}, Class: "person", Confidence: 0.5},
		},
		Frame: []byte{0xff, 0xd8},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ack, err := client.ProcessFrame(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, "ok", ack.Status)
	assert.Equal(t, 1, ack.Pedestrians)
	assert.Equal(t, sent.AsTime(), ack.OriginalSentTimestamp.AsTime())
	assert.Equal(t, []api.Collision{{PedestrianId: 1, VehicleId: 2, X: 3, Y: 4}}, ack.Collisions)

	require.NotNil(t, srv.got)
	assert.Equal(t, "cam-1", srv.got.SourceId)
	assert.Equal(t, in.Detections, srv.got.Detections)
	assert.Equal(t, in.Frame, srv.got.Frame)
}

func TestUnimplementedServer(t *testing.T) {
	client := dial(t, UnimplementedTrackObserverServer{})

	_, err := client.ProcessFrame(context.Background(), &api.FrameBatch{})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestSize(t *testing.T) {
	assert.Greater(t, Size(&api.FrameBatch{SourceId: "cam"}), len("cam"))
}
