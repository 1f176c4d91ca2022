package render

// segmenter decides which frames reach the video writer and when a
// segment file is full.
type segmenter struct {
	skipFrames    int
	segmentFrames int

	total     int
	inSegment int
}

func newSegmenter(fps float64, segmentSeconds float64, skipFrames int) *segmenter {
	if skipFrames < 1 {
		skipFrames = 1
	}
	n := int(fps * segmentSeconds)
	if n < 1 {
		n = 1
	}
	return &segmenter{skipFrames: skipFrames, segmentFrames: n}
}

// admit counts a rendered frame and reports whether it should be written.
func (s *segmenter) admit() bool {
	s.total++
	return s.total%s.skipFrames == 0
}

// written records a write and reports whether the segment must be rotated.
func (s *segmenter) written() bool {
	s.inSegment++
	if s.inSegment >= s.segmentFrames {
		s.inSegment = 0
		return true
	}
	return false
}
