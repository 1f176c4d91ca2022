package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/etesami/traffic-accident-observer/pkg/monitoring"
	"github.com/etesami/traffic-accident-observer/pkg/observer"

	"gocv.io/x/gocv"
)

// VideoWriterConfig controls the segmented video output.
type VideoWriterConfig struct {
	Enabled        bool
	OutputPath     string
	FPS            float64
	FourCC         string
	SkipFrames     int
	SegmentSeconds float64
}

// Options controls what is drawn and where it goes.
type Options struct {
	VehicleClasses     []string
	DrawZones          bool
	DrawPath           bool
	SaveImage          bool
	SaveImagePath      string
	SaveImageFrequency int
	VideoWriter        VideoWriterConfig
}

// Renderer draws observer state on top of the decoded frame.
// It is safe for concurrent use by different sources.
type Renderer struct {
	opts     Options
	polys    [][]image.Point
	vehicles map[string]struct{}

	mu      sync.Mutex
	writers map[string]*sourceWriter
}

type sourceWriter struct {
	seg    *segmenter
	writer *gocv.VideoWriter
}

func New(opts Options, zones []observer.Zone) (*Renderer, error) {
	if opts.SaveImage {
		if opts.SaveImagePath == "" {
			return nil, errors.New("save image path is empty")
		}
		if err := os.MkdirAll(opts.SaveImagePath, 0o755); err != nil {
			return nil, fmt.Errorf("create image dir: %w", err)
		}
	}
	if opts.VideoWriter.Enabled {
		if opts.VideoWriter.OutputPath == "" {
			return nil, errors.New("video output path is empty")
		}
		if err := os.MkdirAll(opts.VideoWriter.OutputPath, 0o755); err != nil {
			return nil, fmt.Errorf("create video dir: %w", err)
		}
	}

	r := &Renderer{opts: opts, vehicles: make(map[string]struct{}), writers: make(map[string]*sourceWriter)}
	classes := opts.VehicleClasses
	if len(classes) == 0 {
		classes = observer.DefaultVehicleClasses
	}
	for _, c := range classes {
		r.vehicles[c] = struct{}{}
	}
	for _, z := range zones {
		var poly []image.Point
		for _, v := range z.Vertices() {
			poly = append(poly, image.Pt(v.X, v.Y))
		}
		r.polys = append(r.polys, poly)
	}
	return r, nil
}

// Enabled reports whether rendering produces any output.
func (r *Renderer) Enabled() bool {
	return r.opts.SaveImage || r.opts.VideoWriter.Enabled
}

// Render decodes frame, draws dets and the state of f on it and hands the
// result to the image and video outputs.
func (r *Renderer) Render(sourceID string, frameID int64, frame []byte, dets []observer.Detection, f *observer.Frame) error {
	if !r.Enabled() || len(frame) == 0 {
		return nil
	}
	img, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return fmt.Errorf("decode frame [%d]: %w", frameID, err)
	}
	defer img.Close()
	if img.Empty() {
		return fmt.Errorf("decode frame [%d]: empty image", frameID)
	}

	r.draw(&img, dets, f)

	if r.opts.SaveImage && r.opts.SaveImageFrequency > 0 && frameID%int64(r.opts.SaveImageFrequency) == 0 {
		name := filepath.Join(r.opts.SaveImagePath, fmt.Sprintf("%s_%06d.jpg", sourceID, frameID))
		if ok := gocv.IMWrite(name, img); !ok {
			monitoring.Logf("Error saving image [%s]", name)
		}
	}
	if r.opts.VideoWriter.Enabled {
		return r.writeVideo(sourceID, img)
	}
	return nil
}

func (r *Renderer) draw(img *gocv.Mat, dets []observer.Detection, f *observer.Frame) {
	accident := false
	for _, d := range dets {
		rect := image.Rect(d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
		switch {
		case d.Class == observer.PersonClass:
			view, ok := f.Pedestrians[d.TrackID]
			if !ok {
				continue
			}
			c := pedestrianColor(view)
			accident = accident || view.Collided()
			if r.opts.DrawPath {
				for i := 0; i+1 < len(view.Points); i++ {
					a, b := view.Points[i], view.Points[i+1]
					gocv.Line(img, image.Pt(a.X, a.Y), image.Pt(b.X, b.Y), c, 2)
				}
			}
			drawBox(img, rect, label(d, false), c)
		case r.isVehicle(d.Class):
			drawBox(img, rect, label(d, false), colorVehicle)
		default:
			drawBox(img, rect, label(d, true), paletteColor(d.TrackID))
		}
	}
	if accident {
		gocv.PutText(img, "Detected accident", image.Pt(40, 160), gocv.FontHersheyPlain, 5, colorAccident, 5)
	}

	if r.opts.DrawZones && len(r.polys) > 0 {
		pv := gocv.NewPointsVectorFromPoints(r.polys)
		defer pv.Close()
		gocv.Polylines(img, pv, true, colorZone, 2)
	}
}

func (r *Renderer) isVehicle(class string) bool {
	_, ok := r.vehicles[class]
	return ok
}

func drawBox(img *gocv.Mat, rect image.Rectangle, text string, c color.RGBA) {
	gocv.Rectangle(img, rect, c, 2)
	gocv.PutText(img, text, image.Pt(rect.Min.X+5, rect.Min.Y+30), gocv.FontHersheySimplex, 0.7, colorLabel, 2)
}

func (r *Renderer) writeVideo(sourceID string, img gocv.Mat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.writers[sourceID]
	if !ok {
		cfg := r.opts.VideoWriter
		w = &sourceWriter{seg: newSegmenter(cfg.FPS, cfg.SegmentSeconds, cfg.SkipFrames)}
		r.writers[sourceID] = w
	}
	if !w.seg.admit() {
		return nil
	}

	if w.writer == nil {
		cfg := r.opts.VideoWriter
		name := filepath.Join(cfg.OutputPath, fmt.Sprintf("%s_%s.mkv", sourceID, time.Now().Format("20060102_150405")))
		vw, err := gocv.VideoWriterFile(name, cfg.FourCC, cfg.FPS, img.Cols(), img.Rows(), true)
		if err != nil {
			return fmt.Errorf("open video writer [%s]: %w", name, err)
		}
		monitoring.Logf("Opened video segment [%s]", name)
		w.writer = vw
	}
	if err := w.writer.Write(img); err != nil {
		return fmt.Errorf("write video frame: %w", err)
	}
	if w.seg.written() {
		w.writer.Close()
		w.writer = nil
	}
	return nil
}

// Close releases every open video writer.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, w := range r.writers {
		if w.writer != nil {
			w.writer.Close()
		}
		delete(r.writers, id)
	}
	return nil
}
