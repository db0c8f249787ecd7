package provider

import (
	"bufio"
	"bytes"
	"io"
)

// maxFrameSize bounds a single SSE line
const maxFrameSize = 1024 * 1024

// doneSentinel terminates an OpenAI-style event stream
const doneSentinel = "[DONE]"

// sseReader yields the payload of each "data:" line of a server-sent event
// stream. Other fields and comments are ignored.
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &sseReader{scanner: scanner}
}

// Next returns the next data payload, or io.EOF at the end of the body
func (s *sseReader) Next() ([]byte, error) {
	for s.scanner.Scan() {
		line := bytes.TrimRight(s.scanner.Bytes(), "\r")
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(line[len("data:"):])
		if len(data) == 0 {
			continue
		}
		return data, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// readLimited reads at most limit bytes of r
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
