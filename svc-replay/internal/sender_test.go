package internal

import (
	"context"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	api "github.com/etesami/traffic-accident-observer/api"
	mt "github.com/etesami/traffic-accident-observer/pkg/metric"
	"github.com/etesami/traffic-accident-observer/pkg/monitoring"
	"github.com/etesami/traffic-accident-observer/pkg/rpc"
	"github.com/etesami/traffic-accident-observer/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

type fakeObserver struct {
	rpc.UnimplementedTrackObserverServer

	mu       sync.Mutex
	received []*api.FrameBatch
}

func (f *fakeObserver) ProcessFrame(_ context.Context, in *api.FrameBatch) (*api.FrameAck, error) {
	rec := timestamppb.Now()
	f.mu.Lock()
	f.received = append(f.received, in)
	f.mu.Unlock()

	ack := &api.FrameAck{
		Status:                "ok",
		OriginalSentTimestamp: in.SentTimestamp,
		ReceivedTimestamp:     rec,
		Pedestrians:           len(in.Detections),
	}
	if in.FrameId == 2 {
		ack.Collisions = []api.Collision{{PedestrianId: 1, VehicleId: 2}}
	}
	ack.AckSentTimestamp = timestamppb.Now()
	return ack, nil
}

func (f *fakeObserver) batches() []*api.FrameBatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*api.FrameBatch(nil), f.received...)
}

func startObserver(t *testing.T) (*fakeObserver, *utils.GrpcClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	obs := &fakeObserver{}
	rpc.RegisterTrackObserverServer(srv, obs)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ref := &utils.GrpcClient{}
	ref.Store(rpc.NewTrackObserverClient(conn))
	return obs, ref
}

type sliceSource struct {
	batches []*api.FrameBatch
}

func (s *sliceSource) Next() (*api.FrameBatch, error) {
	if len(s.batches) == 0 {
		return nil, io.EOF
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

type staticImages struct{ n int }

func (s *staticImages) Next() ([]byte, bool) {
	if s.n == 0 {
		return nil, false
	}
	s.n--
	return []byte{0xff, 0xd8, 0xff}, true
}

func newBatches(n int) *sliceSource {
	src := &sliceSource{}
	for i := 1; i <= n; i++ {
		src.batches = append(src.batches, &api.FrameBatch{
			SourceId:   "recorded",
			FrameId:    int64(i),
			Detections: []api.Detection{{TrackId: 1, Box: [4]int{0, 0, 10, 10}, Class: "person"}},
		})
	}
	return src
}

func TestSendFrameRecordsMetrics(t *testing.T) {
	_, ref := startObserver(t)
	reg := prometheus.NewRegistry()
	m := mt.NewMetric(reg, nil, nil, nil, nil)

	ack, err := SendFrame(context.Background(), &api.FrameBatch{SourceId: "cam", FrameId: 1}, ref, m, "observer")
	require.NoError(t, err)
	assert.Equal(t, "ok", ack.Status)
	require.NotNil(t, ack.OriginalSentTimestamp)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]uint64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if h := metric.GetHistogram(); h != nil {
				counts[mf.GetName()] += h.GetSampleCount()
			}
		}
	}
	assert.Equal(t, uint64(1), counts["sent_data_bytes_histogram"])
	assert.Equal(t, uint64(1), counts["transit_time_ms_histogram"])
	assert.Equal(t, uint64(1), counts["e2e_time_ms_histogram"])
}

func TestSendFrameWithoutClient(t *testing.T) {
	_, err := SendFrame(context.Background(), &api.FrameBatch{}, &utils.GrpcClient{}, nil, "observer")
	assert.ErrorIs(t, err, ErrNoClient)
}

func TestReplay(t *testing.T) {
	obs, ref := startObserver(t)

	sent, err := Replay(context.Background(), Config{SourceId: "cam-7", FrameRate: 200, Service: "observer"},
		newBatches(3), &staticImages{n: 2}, ref, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)

	got := obs.batches()
	require.Len(t, got, 3)
	for i, b := range got {
		assert.Equal(t, "cam-7", b.SourceId)
		assert.Equal(t, int64(i+1), b.FrameId)
		assert.NotNil(t, b.SentTimestamp)
	}
	assert.NotEmpty(t, got[0].Frame)
	assert.NotEmpty(t, got[1].Frame)
	assert.Empty(t, got[2].Frame, "images exhausted")
}

func TestReplaySkipsWithoutConnection(t *testing.T) {
	sent, err := Replay(context.Background(), Config{Service: "observer"}, newBatches(2), nil, &utils.GrpcClient{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestReplayStopsOnCancel(t *testing.T) {
	_, ref := startObserver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	sent, err := Replay(ctx, Config{FrameRate: 1, Service: "observer"}, newBatches(5), nil, ref, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sent)
	assert.Less(t, time.Since(start), time.Second)
}
