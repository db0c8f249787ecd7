package commands

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/diogo/dland/internal/config"
	"github.com/diogo/dland/internal/store"
	"github.com/diogo/dland/internal/tui"
)

const (
	geminiHost     = "generativelanguage.googleapis.com"
	openRouterHost = "openrouter.ai"
)

var testNow = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

// fakeDoer answers provider requests by host with queued SSE bodies
type fakeDoer struct {
	mu     sync.Mutex
	queued map[string][]string
	status map[string]int
	bodies map[string][]string
}

func newFakeDoer() *fakeDoer {
	return &fakeDoer{
		queued: make(map[string][]string),
		status: make(map[string]int),
		bodies: make(map[string][]string),
	}
}

func (d *fakeDoer) gemini(chunks ...string) {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(`data: {"candidates":[{"content":{"role":"model","parts":[{"text":"` + c + `"}]}}]}` + "\n\n")
	}
	d.push(geminiHost, b.String())
}

func (d *fakeDoer) vision(chunks ...string) {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(`data: {"choices":[{"delta":{"content":"` + c + `"}}]}` + "\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	d.push(openRouterHost, b.String())
}

func (d *fakeDoer) push(host, body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queued[host] = append(d.queued[host], body)
}

func (d *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	host := req.URL.Host
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		d.bodies[host] = append(d.bodies[host], string(data))
	}

	status := http.StatusOK
	if s, ok := d.status[host]; ok {
		status = s
	}
	body := ""
	if q := d.queued[host]; len(q) > 0 {
		body, d.queued[host] = q[0], q[1:]
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}, nil
}

func (d *fakeDoer) requests(host string) []gjson.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]gjson.Result, len(d.bodies[host]))
	for i, b := range d.bodies[host] {
		out[i] = gjson.Parse(b)
	}
	return out
}

// testEnv is an isolated dland home with injected dependencies
type testEnv struct {
	home      string
	doer      *fakeDoer
	kv        *store.MemoryStore
	deps      *Dependencies
	clipboard []string
	terminal  bool
	tuiCalls  []tui.Session
	tuiOpts   tui.Options
	tuiErr    error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("DLAND_HOME", home)
	t.Setenv("DLAND_PRIMARY_API_KEY", "")
	t.Setenv("DLAND_VISION_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "test-gemini-key")
	t.Setenv("OPENROUTER_API_KEY", "test-openrouter-key")
	t.Setenv("GLAMOUR_STYLE", "")

	cfg := config.DefaultConfig()
	cfg.Location.Enabled = false
	require.NoError(t, config.SaveConfig(cfg))

	env := &testEnv{home: home, doer: newFakeDoer(), kv: store.NewMemory()}
	env.deps = &Dependencies{
		Doer:  env.doer,
		Store: env.kv,
		RunTUI: func(ctx context.Context, sess tui.Session, opts tui.Options) error {
			env.tuiCalls = append(env.tuiCalls, sess)
			env.tuiOpts = opts
			return env.tuiErr
		},
		Clipboard: func(text string) error {
			env.clipboard = append(env.clipboard, text)
			return nil
		},
		IsTerminal:    func(any) bool { return env.terminal },
		TerminalWidth: func() int { return 80 },
		Now:           func() time.Time { return testNow },
	}
	return env
}

// run executes the root command with args and returns stdout and stderr
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd(e.deps)
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
