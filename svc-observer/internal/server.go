package internal

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	api "github.com/etesami/traffic-accident-observer/api"
	"github.com/etesami/traffic-accident-observer/pkg/event"
	mt "github.com/etesami/traffic-accident-observer/pkg/metric"
	"github.com/etesami/traffic-accident-observer/pkg/observer"
	"github.com/etesami/traffic-accident-observer/pkg/rpc"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Renderer draws the observer state over the frame carried by a batch.
type Renderer interface {
	Render(sourceID string, frameID int64, frame []byte, dets []observer.Detection, f *observer.Frame) error
	Close() error
}

type Server struct {
	rpc.UnimplementedTrackObserverServer

	ObserverConfig observer.Config
	Metric         *mt.Metric
	Emitter        *event.Emitter
	Renderer       Renderer

	sources sync.Map // map[string]*source
}

// source holds the observer of one video source. Frames of a source are
// stepped one at a time, in increasing frame id order.
type source struct {
	mu        sync.Mutex
	observer  *observer.Observer
	started   bool
	lastFrame int64
	latest    *observer.Frame
	updatedAt time.Time
}

// SourceStatus summarises the latest state of a source.
type SourceStatus struct {
	ID          string    `json:"id"`
	LastFrame   int64     `json:"last_frame"`
	Pedestrians int       `json:"pedestrians"`
	Vehicles    int       `json:"vehicles"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Server) source(id string) (*source, error) {
	if v, ok := s.sources.Load(id); ok {
		return v.(*source), nil
	}
	o, err := observer.New(s.ObserverConfig)
	if err != nil {
		return nil, err
	}
	v, loaded := s.sources.LoadOrStore(id, &source{observer: o})
	if !loaded {
		log.Printf("Observing new source [%s]\n", id)
	}
	return v.(*source), nil
}

// ProcessFrame steps the observer of the batch's source and acknowledges the frame.
func (s *Server) ProcessFrame(ctx context.Context, in *api.FrameBatch) (*api.FrameAck, error) {
	recTime := time.Now()

	if in == nil || in.SourceId == "" {
		increaseFrames(s.Metric, "", "invalid")
		return nil, status.Errorf(codes.InvalidArgument, "source id is required")
	}
	src, err := s.source(in.SourceId)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "create observer: %v", err)
	}

	dets := toDetections(in.Detections)

	src.mu.Lock()
	if src.started && in.FrameId <= src.lastFrame {
		last := src.lastFrame
		src.mu.Unlock()
		increaseFrames(s.Metric, in.SourceId, "out_of_order")
		return nil, status.Errorf(codes.FailedPrecondition,
			"frame [%d] of source [%s] is not after last processed frame [%d]", in.FrameId, in.SourceId, last)
	}
	f := src.observer.Step(observer.FrameInput{FrameID: in.FrameId, Detections: dets})
	src.started = true
	src.lastFrame = in.FrameId
	src.latest = f
	src.updatedAt = recTime

	if s.Renderer != nil && len(in.Frame) > 0 {
		if err := s.Renderer.Render(in.SourceId, in.FrameId, in.Frame, dets, f); err != nil {
			log.Printf("Error rendering frame [%d] of [%s]: %v\n", in.FrameId, in.SourceId, err)
		}
	}
	src.mu.Unlock()

	for _, r := range f.Rejected {
		log.Printf("Rejected detection [%d] [%s] in frame [%d] of [%s]: %v\n",
			r.Detection.TrackID, r.Detection.Class, in.FrameId, in.SourceId, r.Err)
	}
	for _, c := range f.Collisions {
		log.Printf("Collision in frame [%d] of [%s]: pedestrian [%d] vehicle [%d] at [%d,%d]\n",
			in.FrameId, in.SourceId, c.PedestrianID, c.VehicleID, c.Point.X, c.Point.Y)
	}
	for _, ev := range event.FromFrame(in.SourceId, f, recTime.UTC()) {
		s.Emitter.Emit(ev)
	}

	increaseFrames(s.Metric, in.SourceId, "processed")
	recordStep(s.Metric, in.SourceId, f)
	addProcessingTime(s.Metric, in.SourceId, recTime)

	ack := &api.FrameAck{
		Status:                "ok",
		OriginalSentTimestamp: in.SentTimestamp,
		ReceivedTimestamp:     timestamppb.New(recTime),
		Pedestrians:           len(f.Pedestrians),
		Vehicles:              len(f.Vehicles),
		Rejected:              len(f.Rejected),
	}
	for _, c := range f.Collisions {
		ack.Collisions = append(ack.Collisions, api.Collision{
			PedestrianId: int64(c.PedestrianID),
			VehicleId:    int64(c.VehicleID),
			X:            c.Point.X,
			Y:            c.Point.Y,
		})
	}
	ack.AckSentTimestamp = timestamppb.Now()
	return ack, nil
}

func toDetections(in []api.Detection) []observer.Detection {
	dets := make([]observer.Detection, 0, len(in))
	for _, d := range in {
		dets = append(dets, observer.Detection{
			TrackID:    int(d.TrackId),
			Box:        observer.Box{X1: d.Box[0], Y1: d.Box[1], X2: d.Box[2], Y2: d.Box[3]},
			Class:      d.Class,
			Confidence: d.Confidence,
		})
	}
	return dets
}

// Sources lists every observed source ordered by id.
func (s *Server) Sources() []SourceStatus {
	var out []SourceStatus
	s.sources.Range(func(k, v any) bool {
		src := v.(*source)
		src.mu.Lock()
		st := SourceStatus{ID: k.(string), LastFrame: src.lastFrame, UpdatedAt: src.updatedAt}
		if src.latest != nil {
			st.Pedestrians = len(src.latest.Pedestrians)
			st.Vehicles = len(src.latest.Vehicles)
		}
		src.mu.Unlock()
		out = append(out, st)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns the latest frame output of a source. The frame must not be modified.
func (s *Server) Snapshot(id string) (*observer.Frame, bool) {
	v, ok := s.sources.Load(id)
	if !ok {
		return nil, false
	}
	src := v.(*source)
	src.mu.Lock()
	defer src.mu.Unlock()
	return src.latest, src.latest != nil
}
