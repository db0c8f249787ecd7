package provider

import (
	"bytes"
	"context"
	"io"
	"sync"

	http "github.com/bogdanfinn/fhttp"
)

// MockResponseBody is a ReadCloser that records whether it was closed
type MockResponseBody struct {
	r      io.Reader
	closed bool
}

// NewMockResponseBody creates a body serving data
func NewMockResponseBody(data []byte) *MockResponseBody {
	return &MockResponseBody{r: bytes.NewReader(data)}
}

func (m *MockResponseBody) Read(p []byte) (int, error) { return m.r.Read(p) }

func (m *MockResponseBody) Close() error {
	m.closed = true
	return nil
}

// failingReader returns data then err
type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

// MockDoer returns a canned response and records requests
type MockDoer struct {
	mu       sync.Mutex
	Response *http.Response
	Err      error
	Requests []*http.Request
	Bodies   [][]byte
}

func (m *MockDoer) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		m.Bodies = append(m.Bodies, b)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func newResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       NewMockResponseBody([]byte(body)),
		Header:     make(http.Header),
	}
}

func sseBody(frames ...string) string {
	var b bytes.Buffer
	for _, f := range frames {
		b.WriteString("data: ")
		b.WriteString(f)
		b.WriteString("\n\n")
	}
	return b.String()
}

func collect(s Stream) ([]string, error) {
	var chunks []string
	for s.Next() {
		chunks = append(chunks, s.Chunk())
	}
	return chunks, s.Err()
}

func newTestRequest(ctx context.Context) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, "https://example.com", nil)
}
