package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Strob0t/Exec/internal/port/oracle"
)

func newServer(t *testing.T, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "sk-ant-test" {
			t.Errorf("X-Api-Key = %q", got)
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete(t *testing.T) {
	var seen map[string]any
	srv := newServer(t, `{"id":"msg_1","type":"message","role":"assistant","model":"claude",
"content":[{"type":"text","text":"CREATE_PLAN("},{"type":"text","text":"1. Search)\n"}],
"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":5}}`, &seen)

	o, err := New(Config{APIKey: "sk-ant-test", BaseURL: srv.URL, Model: "claude-test", MaxTokens: 128})
	if err != nil {
		t.Fatal(err)
	}
	got, err := o.Complete(context.Background(), oracle.Request{System: "sys", Prompt: "act"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "CREATE_PLAN(1. Search)\n" {
		t.Errorf("reply should be returned verbatim, got %q", got)
	}
	if seen["model"] != "claude-test" || seen["max_tokens"] != float64(128) {
		t.Errorf("request = %v", seen)
	}
	system, _ := seen["system"].([]any)
	if len(system) != 1 {
		t.Fatalf("system = %v", seen["system"])
	}
}

func TestCompleteEmptyReply(t *testing.T) {
	srv := newServer(t, `{"id":"msg_1","type":"message","role":"assistant","model":"claude","content":[],
"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`, nil)
	o, _ := New(Config{APIKey: "sk-ant-test", BaseURL: srv.URL})
	if _, err := o.Complete(context.Background(), oracle.Request{Prompt: "p"}); err == nil {
		t.Fatal("expected error for reply without text")
	}
}

func TestNewDefaults(t *testing.T) {
	o, err := New(Config{APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	if o.cfg.MaxTokens != defaultMaxTokens || o.cfg.Model == "" {
		t.Fatalf("defaults not applied: %+v", o.cfg)
	}
}
