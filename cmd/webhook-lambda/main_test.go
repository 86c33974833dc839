package main

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

func apiEvent(method, path string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method: method,
				Path:   path,
			},
		},
	}
}

func TestHandleHealth(t *testing.T) {
	cfg := config{upstreamBaseURL: "http://example.com", upstreamTimeout: time.Second}
	client := &http.Client{Timeout: time.Second}

	resp, err := handle(context.Background(), cfg, client, apiEvent(http.MethodGet, "/health"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.Body != "ok" {
		t.Fatalf("expected ok body, got %q", resp.Body)
	}
}

func TestHandleRejectsWrongMethod(t *testing.T) {
	cfg := config{upstreamBaseURL: "http://example.com", upstreamTimeout: time.Second}
	client := &http.Client{Timeout: time.Second}

	resp, err := handle(context.Background(), cfg, client, apiEvent(http.MethodGet, "/appointment-cancellation"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, resp.StatusCode)
	}
}

func TestHandleRejectsUnrelayedPath(t *testing.T) {
	cfg := config{upstreamBaseURL: "http://example.com", upstreamTimeout: time.Second}
	client := &http.Client{Timeout: time.Second}

	// internal triggers never go through the public edge
	resp, err := handle(context.Background(), cfg, client, apiEvent(http.MethodPost, "/appointment-reminders"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestHandleInvalidBase64Body(t *testing.T) {
	cfg := config{upstreamBaseURL: "http://example.com", upstreamTimeout: time.Second}
	client := &http.Client{Timeout: time.Second}

	evt := apiEvent(http.MethodPost, "/whatsapp-responses")
	evt.Body = "not-base64"
	evt.IsBase64Encoded = true

	resp, err := handle(context.Background(), cfg, client, evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

type captured struct {
	method  string
	path    string
	query   string
	headers http.Header
	body    string
}

func newUpstream(t *testing.T, status int, contentType, body string) (*httptest.Server, chan captured) {
	t.Helper()
	reqCh := make(chan captured, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		reqCh <- captured{
			method:  r.Method,
			path:    r.URL.Path,
			query:   r.URL.RawQuery,
			headers: r.Header.Clone(),
			body:    string(raw),
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(upstream.Close)
	return upstream, reqCh
}

func TestHandleForwardsInboundReply(t *testing.T) {
	upstream, reqCh := newUpstream(t, http.StatusOK, "application/json", `{"success":true}`)
	client := upstream.Client()
	client.Timeout = time.Second
	cfg := config{upstreamBaseURL: upstream.URL, upstreamTimeout: time.Second}

	evt := apiEvent(http.MethodPost, "/whatsapp-responses")
	evt.Body = `{"from":"0501234567","text":"כן"}`
	evt.Headers = map[string]string{
		"content-type":        "application/json",
		"x-hub-signature-256": "sha256=abc",
		"x-forwarded-proto":   "http",
	}
	evt.RequestContext.DomainName = "hooks.example.com"
	evt.RequestContext.HTTP.SourceIP = "203.0.113.9"

	resp, err := handle(context.Background(), cfg, client, evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.Body != `{"success":true}` {
		t.Fatalf("expected upstream body, got %q", resp.Body)
	}
	if ct := resp.Headers["content-type"]; ct != "application/json" {
		t.Fatalf("expected content-type to be forwarded, got %q", ct)
	}

	select {
	case got := <-reqCh:
		if got.method != http.MethodPost || got.path != "/whatsapp-responses" {
			t.Fatalf("unexpected upstream request %s %s", got.method, got.path)
		}
		if got.body != `{"from":"0501234567","text":"כן"}` {
			t.Fatalf("expected body to be relayed, got %q", got.body)
		}
		if got.headers.Get("X-Hub-Signature-256") != "sha256=abc" {
			t.Fatalf("expected signature to be forwarded, got %q", got.headers.Get("X-Hub-Signature-256"))
		}
		if got.headers.Get("X-Real-IP") != "203.0.113.9" {
			t.Fatalf("expected client ip, got %q", got.headers.Get("X-Real-IP"))
		}
		if got.headers.Get("X-Forwarded-Host") != "hooks.example.com" {
			t.Fatalf("expected forwarded host, got %q", got.headers.Get("X-Forwarded-Host"))
		}
		if got.headers.Get("X-Forwarded-Proto") != "http" {
			t.Fatalf("expected forwarded proto, got %q", got.headers.Get("X-Forwarded-Proto"))
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for upstream request")
	}
}

func TestHandleForwardsHandshake(t *testing.T) {
	upstream, reqCh := newUpstream(t, http.StatusOK, "text/plain", "1158201444")
	client := upstream.Client()
	cfg := config{upstreamBaseURL: upstream.URL, upstreamTimeout: time.Second}

	evt := apiEvent(http.MethodGet, "/whatsapp-responses")
	evt.RawQueryString = "hub.mode=subscribe&hub.verify_token=t&hub.challenge=1158201444"

	resp, err := handle(context.Background(), cfg, client, evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Body != "1158201444" {
		t.Fatalf("expected challenge echo, got %q", resp.Body)
	}
	got := <-reqCh
	if got.method != http.MethodGet {
		t.Fatalf("expected GET upstream, got %s", got.method)
	}
	if got.query != evt.RawQueryString {
		t.Fatalf("expected query to be relayed, got %q", got.query)
	}
}

func TestHandleUpstreamDown(t *testing.T) {
	upstream, _ := newUpstream(t, http.StatusOK, "text/plain", "")
	url := upstream.URL
	upstream.Close()

	cfg := config{upstreamBaseURL: url, upstreamTimeout: time.Second}
	resp, err := handle(context.Background(), cfg, &http.Client{Timeout: time.Second}, apiEvent(http.MethodPost, "/appointment-cancellation"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, resp.StatusCode)
	}
}

func TestDecodeBodyBase64(t *testing.T) {
	evt := events.APIGatewayV2HTTPRequest{
		Body:            base64.StdEncoding.EncodeToString([]byte("hello")),
		IsBase64Encoded: true,
	}

	decoded, err := decodeBody(evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(decoded) != "hello" {
		t.Fatalf("expected decoded body, got %q", string(decoded))
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "")
	if _, err := loadConfig(); err == nil {
		t.Fatalf("expected error without upstream")
	}

	t.Setenv("UPSTREAM_BASE_URL", "https://api.example.com/")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.upstreamBaseURL != "https://api.example.com" || cfg.upstreamTimeout != 3*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
