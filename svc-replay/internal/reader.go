package internal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	api "github.com/etesami/traffic-accident-observer/api"
)

// maxLineBytes bounds a single JSONL record; batches may carry an encoded frame.
const maxLineBytes = 16 << 20

// BatchReader decodes one api.FrameBatch per line. Blank lines and lines
// starting with '#' are skipped.
type BatchReader struct {
	scanner *bufio.Scanner
	line    int
}

func NewBatchReader(r io.Reader) *BatchReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &BatchReader{scanner: sc}
}

// Next returns the next batch, or io.EOF when the input is exhausted.
func (br *BatchReader) Next() (*api.FrameBatch, error) {
	for br.scanner.Scan() {
		br.line++
		text := strings.TrimSpace(br.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var b api.FrameBatch
		if err := json.Unmarshal([]byte(text), &b); err != nil {
			return nil, fmt.Errorf("line %d: %w", br.line, err)
		}
		return &b, nil
	}
	if err := br.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
