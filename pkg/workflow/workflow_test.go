package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/teslashibe/go-grace/pkg/store"
)

var history = []store.Entry{
	{ID: 1, Speaker: store.SpeakerAssistant, Text: "Go ahead, I'm listening."},
	{ID: 2, Speaker: store.SpeakerUser, Text: "Open my calendar"},
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(""); !errors.Is(err, ErrNoWebhook) {
		t.Errorf("error = %v, want ErrNoWebhook", err)
	}
}

func TestProcessSuccess(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing request id")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"url":"https://cal","status":"ok","actions":[{"type":"navigate","screen":"home"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithAgentID("agent-1"))
	if err != nil {
		t.Fatal(err)
	}
	res := c.Process(context.Background(), "session-9", history)

	if !res.Success || res.Data == nil {
		t.Fatalf("result = %+v", res)
	}
	if res.Data.URL != "https://cal" || len(res.Data.Actions) != 1 {
		t.Errorf("data = %+v", res.Data)
	}
	if got.AgentID != "agent-1" || got.SessionID != "session-9" {
		t.Errorf("request = %+v", got)
	}
	if len(got.Conversation) != 2 || got.Conversation[1] != (Message{Role: "user", Content: "Open my calendar"}) {
		t.Errorf("conversation = %+v", got.Conversation)
	}
}

func TestProcessErrorPrecedence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail wins", `{"detail":"bad agent","message":"ignored"}`, "bad agent"},
		{"message next", `{"message":"workflow inactive"}`, "workflow inactive"},
		{"status fallback", `not json`, "Request failed with status code 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, _ := NewClient(srv.URL)
			res := c.Process(context.Background(), "", history)
			if res.Success {
				t.Fatal("expected failure")
			}
			if res.Error != tt.want {
				t.Errorf("error = %q, want %q", res.Error, tt.want)
			}
		})
	}
}

func TestProcessTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := NewClient(url)
	res := c.Process(context.Background(), "", history)
	if res.Success || res.Error == "" || res.Error == UnknownError {
		t.Errorf("result = %+v", res)
	}
}

func TestFailureDefaultsToUnknown(t *testing.T) {
	if got := failure("").Error; got != UnknownError {
		t.Errorf("failure(\"\") = %q", got)
	}
}

func TestMessagesRoles(t *testing.T) {
	msgs := Messages([]store.Entry{{Speaker: "system", Text: "x"}, {Speaker: store.SpeakerUser, Text: "y"}})
	if msgs[0].Role != "assistant" || msgs[1].Role != "user" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestDispatch(t *testing.T) {
	var screens, messages []string
	d := NewDispatcher(HandlerFuncs{
		NavigateFunc:    func(screen string, _ map[string]any) { screens = append(screens, screen) },
		ShowMessageFunc: func(msg string) { messages = append(messages, msg) },
	}, nil)

	n := d.Dispatch([]Action{
		{Type: ActionNavigate, Screen: "voice"},
		{Type: "teleport"},
		{Type: ActionShowMessage, Message: "Done"},
	})

	if n != 2 {
		t.Errorf("executed = %d, want 2", n)
	}
	if len(screens) != 1 || screens[0] != "voice" {
		t.Errorf("screens = %v", screens)
	}
	if len(messages) != 1 || messages[0] != "Done" {
		t.Errorf("messages = %v", messages)
	}
}
