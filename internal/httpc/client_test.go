package httpc

import (
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
)

func TestUserAgent(t *testing.T) {
	want := "GraceAssistant/1.0.0 (" + runtime.GOOS + ")"
	if got := UserAgent(); got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}
}

func TestPostSendsBody(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
	}))
	defer srv.Close()

	resp, err := Post(srv.URL, "application/json", []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	resp.Body.Close()

	if !strings.Contains(got, `"a":1`) {
		t.Errorf("body = %q", got)
	}
}

func TestNewClientTimeout(t *testing.T) {
	c := NewClient(DefaultConnectTimeout)
	if c.Timeout != DefaultConnectTimeout {
		t.Errorf("timeout = %v", c.Timeout)
	}
}
