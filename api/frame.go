package api

import (
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Detection is one tracked box produced by the upstream detector/tracker.
// Box holds x1, y1, x2, y2 in pixels.
type Detection struct {
	TrackId    int64   `json:"track_id"`
	Box        [4]int  `json:"box"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// FrameBatch carries the detections of one frame of one video source.
// Frame optionally holds the JPEG encoded image the detections refer to.
type FrameBatch struct {
	SourceId      string                 `json:"source_id"`
	FrameId       int64                  `json:"frame_id"`
	CapturedAt    *timestamppb.Timestamp `json:"captured_at,omitempty"`
	SentTimestamp *timestamppb.Timestamp `json:"sent_timestamp,omitempty"`
	Detections    []Detection            `json:"detections"`
	Frame         []byte                 `json:"frame,omitempty"`
}

// Collision reports a pedestrian latched as hit during the acknowledged frame.
type Collision struct {
	PedestrianId int64 `json:"pedestrian_id"`
	VehicleId    int64 `json:"vehicle_id"`
	X            int   `json:"x"`
	Y            int   `json:"y"`
}

// FrameAck acknowledges a processed FrameBatch.
type FrameAck struct {
	Status                string                 `json:"status"`
	OriginalSentTimestamp *timestamppb.Timestamp `json:"original_sent_timestamp,omitempty"`
	ReceivedTimestamp     *timestamppb.Timestamp `json:"received_timestamp,omitempty"`
	AckSentTimestamp      *timestamppb.Timestamp `json:"ack_sent_timestamp,omitempty"`
	Pedestrians           int                    `json:"pedestrians"`
	Vehicles              int                    `json:"vehicles"`
	Collisions            []Collision            `json:"collisions,omitempty"`
	Rejected              int                    `json:"rejected"`
}
