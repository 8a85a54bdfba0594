package assist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	synccit "github.com/synccit/synccit"
)

// completionServer serves a fixed chat completions reply and records the
// last request it received.
type completionServer struct {
	status int
	body   string

	lastReq  chatCompletionsRequest
	lastAuth string
	lastRef  string
	hits     int
}

func (s *completionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hits++
	s.lastAuth = r.Header.Get("Authorization")
	s.lastRef = r.Header.Get("HTTP-Referer")
	data, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(data, &s.lastReq)
	w.WriteHeader(s.status)
	_, _ = io.WriteString(w, s.body)
}

func replyBody(content string) string {
	data, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(data)
}

func newTestDispatcher(t *testing.T, cs *completionServer) *Dispatcher {
	t.Helper()
	srv := httptest.NewServer(cs)
	t.Cleanup(srv.Close)

	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("OPENROUTER_BASE_URL", srv.URL)
	t.Setenv("OPENROUTER_MODEL_LINK", "")
	return NewDispatcher(synccit.DefaultConfig(), srv.Client(), nil)
}

func TestDispatchQuickTest(t *testing.T) {
	cs := &completionServer{status: http.StatusOK, body: replyBody("  - looks fine\nVERDICT: ok \n")}
	d := newTestDispatcher(t, cs)

	resp, err := d.Dispatch(context.Background(), QuickTest, &synccit.ActionRequest{Code: "print(1)", Language: "python"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Result != "- looks fine\nVERDICT: ok" {
		t.Errorf("unexpected result %q", resp.Result)
	}
	if resp.Metrics != nil {
		t.Errorf("expected nil metrics, got %+v", resp.Metrics)
	}
	if cs.hits != 1 {
		t.Errorf("expected exactly one upstream call, got %d", cs.hits)
	}
	if cs.lastAuth != "Bearer sk-test" {
		t.Errorf("unexpected auth header %q", cs.lastAuth)
	}
	if cs.lastRef == "" {
		t.Error("expected HTTP-Referer attribution header")
	}
	if cs.lastReq.Model != "arcee-ai/trinity-large-preview:free" {
		t.Errorf("unexpected model %q", cs.lastReq.Model)
	}
	if cs.lastReq.MaxTokens != 1800 || cs.lastReq.Temperature != 0.3 {
		t.Errorf("unexpected sampling params: %+v", cs.lastReq)
	}
	if len(cs.lastReq.Messages) != 2 || cs.lastReq.Messages[0].Role != "system" || cs.lastReq.Messages[1].Role != "user" {
		t.Errorf("unexpected messages: %+v", cs.lastReq.Messages)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"metrics":null`) || !strings.Contains(string(data), `"test_results":null`) {
		t.Errorf("expected null metrics and test_results, got %s", data)
	}
}

func TestDispatchReduceComplexityScores(t *testing.T) {
	cs := &completionServer{status: http.StatusOK, body: replyBody("O(n^2)\nEFFICIENCY_SCORE: 85\nSCALABILITY_SCORE: 60")}
	d := newTestDispatcher(t, cs)

	resp, err := d.Dispatch(context.Background(), ReduceComplexity, &synccit.ActionRequest{Code: "for i in x:\n  for j in x: pass"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Metrics == nil {
		t.Fatal("expected metrics")
	}
	if resp.Metrics.Efficiency != 85 || resp.Metrics.Scalability != 60 {
		t.Errorf("unexpected metrics %+v", *resp.Metrics)
	}
}

func TestDispatchReduceComplexityDefaultScores(t *testing.T) {
	cs := &completionServer{status: http.StatusOK, body: replyBody("it is fast")}
	d := newTestDispatcher(t, cs)

	resp, err := d.Dispatch(context.Background(), ReduceComplexity, &synccit.ActionRequest{Code: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Metrics == nil || resp.Metrics.Efficiency != 50 || resp.Metrics.Scalability != 50 {
		t.Errorf("expected default 50/50 metrics, got %+v", resp.Metrics)
	}
}

func TestDispatchEmptyReply(t *testing.T) {
	for _, body := range []string{replyBody("   "), `{"choices":[]}`} {
		cs := &completionServer{status: http.StatusOK, body: body}
		d := newTestDispatcher(t, cs)

		resp, err := d.Dispatch(context.Background(), CodeExplain, &synccit.ActionRequest{Code: "x"})
		if err != nil {
			t.Fatal(err)
		}
		if resp.Result != EmptyReply {
			t.Errorf("expected %q, got %q", EmptyReply, resp.Result)
		}
	}
}

func TestDispatchUpstreamError(t *testing.T) {
	cs := &completionServer{status: http.StatusTooManyRequests, body: strings.Repeat("r", 1000)}
	d := newTestDispatcher(t, cs)

	_, err := d.Dispatch(context.Background(), Redesign, &synccit.ActionRequest{Code: "x"})
	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ae.Kind != KindUpstream || ae.HTTPStatus() != http.StatusBadGateway {
		t.Errorf("unexpected kind %s / status %d", ae.Kind, ae.HTTPStatus())
	}
	if ae.UpstreamStatus != http.StatusTooManyRequests {
		t.Errorf("expected upstream status 429, got %d", ae.UpstreamStatus)
	}
	prefix := "OpenRouter HTTP 429: "
	if !strings.HasPrefix(ae.Message, prefix) {
		t.Fatalf("unexpected message %q", ae.Message)
	}
	if got := len(ae.Message) - len(prefix); got != upstreamExcerptLimit {
		t.Errorf("expected %d-char excerpt, got %d", upstreamExcerptLimit, got)
	}
}

func TestDispatchMalformedReply(t *testing.T) {
	cs := &completionServer{status: http.StatusOK, body: "not json"}
	d := newTestDispatcher(t, cs)

	_, err := d.Dispatch(context.Background(), QuickTest, &synccit.ActionRequest{Code: "x"})
	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ae.Kind != KindInternal || !strings.HasPrefix(ae.Message, "Internal error: ") {
		t.Errorf("unexpected error %s: %q", ae.Kind, ae.Message)
	}
}

func TestDispatchMissingKey(t *testing.T) {
	cs := &completionServer{status: http.StatusOK, body: replyBody("unused")}
	d := newTestDispatcher(t, cs)
	t.Setenv("OPENROUTER_API_KEY", "")

	_, err := d.Dispatch(context.Background(), QuickTest, &synccit.ActionRequest{Code: "x"})
	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ae.HTTPStatus() != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", ae.HTTPStatus())
	}
	if cs.hits != 0 {
		t.Errorf("expected no upstream call, got %d", cs.hits)
	}
}

func TestDispatchIgnoresCallerCancellation(t *testing.T) {
	cs := &completionServer{status: http.StatusOK, body: replyBody("done")}
	d := newTestDispatcher(t, cs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, err := d.Dispatch(ctx, QuickTest, &synccit.ActionRequest{Code: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Result != "done" {
		t.Errorf("unexpected result %q", resp.Result)
	}
}
