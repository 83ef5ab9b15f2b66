package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-grace/pkg/anim"
	"github.com/teslashibe/go-grace/pkg/assistant"
	"github.com/teslashibe/go-grace/pkg/hub"
	"github.com/teslashibe/go-grace/pkg/orb"
	"github.com/teslashibe/go-grace/pkg/store"
	"github.com/teslashibe/go-grace/pkg/voice"
)

type fakeConversation struct {
	mu      sync.Mutex
	store   *store.Store
	err     error
	starts  int
	ends    int
	toggles int
	live    bool
}

func (f *fakeConversation) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.err != nil {
		return f.err
	}
	f.live = true
	f.store.SetState(voice.Speaking)
	return nil
}

func (f *fakeConversation) End(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends++
	f.live = false
	f.store.SetState(voice.Inactive)
	return f.err
}

func (f *fakeConversation) Toggle(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles++
	return f.err
}

func (f *fakeConversation) Live() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

type fixture struct {
	srv   *Server
	store *store.Store
	ctrl  *anim.Controller
	sched *anim.Scheduler
	conv  *fakeConversation
}

func newFixture(t *testing.T, withConv bool) *fixture {
	t.Helper()
	st := store.New()
	ctrl := anim.NewController(voice.Inactive, anim.WithClock(anim.NewManualClock(time.Unix(0, 0))))
	sched := anim.NewScheduler(ctrl, 30)

	reg := prometheus.NewRegistry()
	requests := prometheus.NewCounter(prometheus.CounterOpts{Name: "grace_test_total", Help: "test"})
	reg.MustRegister(requests)
	requests.Inc()

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	f := &fixture{store: st, ctrl: ctrl, sched: sched}
	deps := Deps{Store: st, Controller: ctrl, Scheduler: sched, Renderer: orb.NewRenderer(orb.DefaultSize)}
	if withConv {
		f.conv = &fakeConversation{store: st}
		deps.Conversation = f.conv
	}

	srv, err := NewServer(cfg, deps)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(srv.Close)
	f.srv = srv
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return v
}

func TestNewServerRequiresDependencies(t *testing.T) {
	if _, err := NewServer(DefaultConfig(), Deps{}); !errors.Is(err, ErrMissingDependency) {
		t.Errorf("err = %v, want ErrMissingDependency", err)
	}
}

func TestScreens(t *testing.T) {
	f := newFixture(t, true)

	code, body := f.do(t, http.MethodGet, "/", "")
	if code != http.StatusOK {
		t.Fatalf("GET / = %d", code)
	}
	home := decode[assistant.HomeView](t, body)
	if home.Title != "Grace" || len(home.Actions) != 1 {
		t.Errorf("home = %+v", home)
	}

	code, body = f.do(t, http.MethodGet, "/voice", "")
	if code != http.StatusOK {
		t.Fatalf("GET /voice = %d", code)
	}
	v := decode[assistant.VoiceView](t, body)
	if v.Status != "Tap microphone to start" || v.MicIcon != "mic" || v.State != voice.Inactive {
		t.Errorf("voice = %+v", v)
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, true)

	code, body := f.do(t, http.MethodGet, "/does-not-exist", "")
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
	nf := decode[assistant.NotFoundView](t, body)
	if nf.Title != "Page Not Found" || nf.Link != "/" {
		t.Errorf("not found = %+v", nf)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	code, body := f.do(t, http.MethodGet, "/healthz", "")
	if code != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Errorf("GET /healthz = %d %s", code, body)
	}
}

func TestConversationEndpoints(t *testing.T) {
	f := newFixture(t, true)

	code, body := f.do(t, http.MethodPost, "/api/conversation/start", "")
	if code != http.StatusOK {
		t.Fatalf("start = %d %s", code, body)
	}
	v := decode[assistant.VoiceView](t, body)
	if v.State != voice.Speaking || v.Status != "Speaking..." || v.MicIcon != "close" {
		t.Errorf("voice after start = %+v", v)
	}
	if f.ctrl.State() != voice.Speaking {
		t.Errorf("controller state = %v, want speaking", f.ctrl.State())
	}

	code, _ = f.do(t, http.MethodPost, "/api/conversation/end", "")
	if code != http.StatusOK || f.store.State() != voice.Inactive {
		t.Errorf("end = %d, state = %v", code, f.store.State())
	}

	code, _ = f.do(t, http.MethodPost, "/api/conversation/toggle", "")
	if code != http.StatusOK || f.conv.toggles != 1 {
		t.Errorf("toggle = %d, toggles = %d", code, f.conv.toggles)
	}
}

func TestConversationErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"provider failure", errors.New("dial refused"), http.StatusBadGateway},
		{"permission denied", assistant.ErrPermissionDenied, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			f.conv.err = tt.err
			code, body := f.do(t, http.MethodPost, "/api/conversation/start", "")
			if code != tt.want {
				t.Errorf("status = %d, want %d (%s)", code, tt.want, body)
			}
			if !strings.Contains(string(body), `"error"`) {
				t.Errorf("body = %s, want error field", body)
			}
		})
	}

	f := newFixture(t, false)
	if code, _ := f.do(t, http.MethodPost, "/api/conversation/start", ""); code != http.StatusServiceUnavailable {
		t.Errorf("without conversation = %d, want 503", code)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	f := newFixture(t, true)
	f.store.AddToHistory(store.SpeakerAssistant, assistant.Greeting)
	f.store.AddToHistory(store.SpeakerUser, "Remind me at noon")

	code, body := f.do(t, http.MethodGet, "/api/conversation", "")
	if code != http.StatusOK {
		t.Fatalf("GET conversation = %d", code)
	}
	got := decode[struct {
		ConversationID string        `json:"conversationId"`
		CurrentQuery   string        `json:"currentQuery"`
		History        []store.Entry `json:"history"`
	}](t, body)
	if len(got.History) != 2 || got.CurrentQuery != "Remind me at noon" || got.ConversationID == "" {
		t.Errorf("conversation = %+v", got)
	}

	code, _ = f.do(t, http.MethodDelete, "/api/conversation", "")
	if code != http.StatusNoContent {
		t.Errorf("DELETE conversation = %d, want 204", code)
	}
	if f.store.Len() != 0 || f.store.CurrentQuery() != "" {
		t.Errorf("store not cleared: len=%d query=%q", f.store.Len(), f.store.CurrentQuery())
	}
}

func TestSetState(t *testing.T) {
	f := newFixture(t, false)

	code, _ := f.do(t, http.MethodPost, "/api/state", `{"state":"listening"}`)
	if code != http.StatusOK {
		t.Fatalf("POST /api/state = %d", code)
	}
	if f.store.State() != voice.Listening || f.ctrl.State() != voice.Listening {
		t.Errorf("store=%v controller=%v, want listening", f.store.State(), f.ctrl.State())
	}

	code, _ = f.do(t, http.MethodPost, "/api/state", `{"state":"dancing"}`)
	if code != http.StatusBadRequest {
		t.Errorf("unknown state = %d, want 400", code)
	}
}

func TestOrbEndpoints(t *testing.T) {
	f := newFixture(t, false)

	code, body := f.do(t, http.MethodGet, "/api/orb", "")
	if code != http.StatusOK {
		t.Fatalf("GET /api/orb = %d", code)
	}
	scene := decode[orb.Scene](t, body)
	if scene.Size != orb.DefaultSize || len(scene.Shapes) != 4 {
		t.Errorf("scene size=%v shapes=%d", scene.Size, len(scene.Shapes))
	}

	code, body = f.do(t, http.MethodGet, "/api/orb?size=120", "")
	if code != http.StatusOK {
		t.Fatalf("GET /api/orb?size=120 = %d", code)
	}
	if scene := decode[orb.Scene](t, body); scene.Size != 120 || scene.Center != 60 {
		t.Errorf("sized scene size=%v center=%v", scene.Size, scene.Center)
	}

	for _, bad := range []string{"abc", "-5", "0", "99999"} {
		if code, _ := f.do(t, http.MethodGet, "/api/orb?size="+bad, ""); code != http.StatusBadRequest {
			t.Errorf("size=%s: status = %d, want 400", bad, code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/orb.svg", nil)
	resp, err := f.srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("GET /orb.svg: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	svg, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(svg), "<svg") {
		t.Errorf("body does not start with <svg: %.40s", svg)
	}
}

func TestSizedRenderersAreReused(t *testing.T) {
	f := newFixture(t, false)

	for i := 0; i < 3; i++ {
		if code, _ := f.do(t, http.MethodGet, "/api/orb?size=120", ""); code != http.StatusOK {
			t.Fatalf("GET /api/orb?size=120 = %d", code)
		}
	}
	first := f.srv.sizedRenderer(120, false)
	if again := f.srv.sizedRenderer(120, false); again != first {
		t.Error("renderer for size 120 rebuilt")
	}
	if len(f.srv.sized) != 1 {
		t.Errorf("cached renderers = %d, want 1", len(f.srv.sized))
	}

	for i := 0; i < maxSizedRenderers+4; i++ {
		f.srv.sizedRenderer(float64(100+i), false)
	}
	if n := len(f.srv.sized); n > maxSizedRenderers {
		t.Errorf("cached renderers = %d, want at most %d", n, maxSizedRenderers)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, true)
	f.sched.Step()

	code, body := f.do(t, http.MethodGet, "/api/status", "")
	if code != http.StatusOK {
		t.Fatalf("GET /api/status = %d", code)
	}
	st := decode[StatusResponse](t, body)
	if st.State != voice.Inactive || st.FPS != 30 || st.Frames != 1 || st.Live {
		t.Errorf("status = %+v", st)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, false)
	code, body := f.do(t, http.MethodGet, "/metrics", "")
	if code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", code)
	}
	if !strings.Contains(string(body), "grace_test_total 1") {
		t.Errorf("metrics body missing counter:\n%s", body)
	}
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	f := newFixture(t, false)
	if code, _ := f.do(t, http.MethodGet, "/ws/orb", ""); code != http.StatusUpgradeRequired {
		t.Errorf("GET /ws/orb = %d, want 426", code)
	}
}

func TestInboundCommands(t *testing.T) {
	f := newFixture(t, true)

	f.srv.handleInbound([]byte(`{"type":"start"}`))
	f.srv.handleInbound([]byte(`{"type":"toggle"}`))
	f.srv.handleInbound([]byte(`{"type":"end"}`))
	f.srv.handleInbound([]byte(`not json`))
	f.srv.handleInbound([]byte(`{"type":"state","state":"listening"}`))

	if f.conv.starts != 1 || f.conv.toggles != 1 || f.conv.ends != 1 {
		t.Errorf("starts=%d toggles=%d ends=%d", f.conv.starts, f.conv.toggles, f.conv.ends)
	}
	if f.store.State() != voice.Listening {
		t.Errorf("state = %v, want listening", f.store.State())
	}
}

func TestEventStream(t *testing.T) {
	f := newFixture(t, true)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- f.srv.Serve(ctx, ln) }()

	url := "ws://" + ln.Addr().String() + "/ws/events"
	var conn *websocket.Conn
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readEvent := func() hub.Event {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev hub.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		return ev
	}

	if ev := readEvent(); ev.Type != hub.EventState {
		t.Fatalf("first event = %q, want state", ev.Type)
	}

	// The hub registers the client asynchronously.
	for time.Now().Before(deadline) && f.srv.eventHub.ClientCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	f.store.SetState(voice.Listening)
	ev := readEvent()
	if ev.Type != hub.EventState {
		t.Fatalf("event = %q, want state", ev.Type)
	}
	data, _ := ev.Data.(map[string]any)
	if data["state"] != "listening" || data["status"] != "Go ahead, I'm listening" {
		t.Errorf("state event = %v", ev.Data)
	}

	f.srv.Notify(assistant.Notice{Kind: assistant.NoticeMessage, Message: "Saved"})
	if ev := readEvent(); ev.Type != hub.EventNotice {
		t.Errorf("event = %q, want notice", ev.Type)
	}

	conn.Close()
	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
