package render

import (
	"fmt"

	"gocv.io/x/gocv"
)

// VideoFrames reads a video file and yields its frames JPEG encoded.
type VideoFrames struct {
	capture *gocv.VideoCapture
	img     gocv.Mat
}

func OpenVideoFrames(path string) (*VideoFrames, error) {
	capture, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, fmt.Errorf("open video [%s]: %w", path, err)
	}
	return &VideoFrames{capture: capture, img: gocv.NewMat()}, nil
}

// Next returns the next frame, or false once the video is exhausted.
func (v *VideoFrames) Next() ([]byte, bool) {
	if ok := v.capture.Read(&v.img); !ok || v.img.Empty() {
		return nil, false
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, v.img)
	if err != nil {
		return nil, false
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), true
}

func (v *VideoFrames) Close() error {
	v.img.Close()
	return v.capture.Close()
}
