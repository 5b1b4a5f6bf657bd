package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fastClient(name string) *sourceClient {
	c := newSourceClient(name, 1000)
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func TestGetJSONRetriesTransientFailures(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"value":"ok"}`))
	}))
	defer server.Close()

	var out struct {
		Value string `json:"value"`
	}
	err := fastClient("test").getJSON(context.Background(), server.URL, nil, &out)
	if err != nil {
		t.Fatalf("expected recovery after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if out.Value != "ok" {
		t.Errorf("unexpected payload %q", out.Value)
	}
}

func TestGetJSONExhaustsRetries(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := fastClient("test").getJSON(context.Background(), server.URL, nil, &struct{}{})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if calls != sourceMaxAttempts {
		t.Errorf("expected %d attempts, got %d", sourceMaxAttempts, calls)
	}
}

func TestGetJSONAuthFailureNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err := fastClient("test").getJSON(context.Background(), server.URL, nil, &struct{}{})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if calls != 1 {
		t.Errorf("auth failures must not be retried, got %d attempts", calls)
	}
}

func TestGetJSONOtherClientErrorsNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	err := fastClient("test").getJSON(context.Background(), server.URL, nil, &struct{}{})
	if err == nil || errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected plain error for 404, got %v", err)
	}
	if calls != 1 {
		t.Errorf("404 must not be retried, got %d attempts", calls)
	}
}

func TestGetJSONSendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	headers := map[string]string{"Ocp-Apim-Subscription-Key": "secret"}
	if err := fastClient("test").getJSON(context.Background(), server.URL, headers, &struct{}{}); err != nil {
		t.Fatalf("expected header to be sent, got %v", err)
	}
}

func TestGetJSONHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := fastClient("test").getJSON(ctx, server.URL, nil, &struct{}{})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
