package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func TestNewHTTPValidation(t *testing.T) {
	if _, err := NewHTTP(Config{}); err == nil {
		t.Error("expected error for empty base URL")
	}
	if _, err := NewHTTP(Config{BaseURL: "http://localhost:8888"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHTTPSearch(t *testing.T) {
	var gotQuery, gotFormat string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [
			{"url": "https://a.example.com", "title": "A", "content": "first"},
			{"url": "https://b.example.com", "title": "B", "content": "second"},
			{"url": "https://c.example.com", "title": "C", "content": "third"}
		]}`))
	}))
	defer ts.Close()

	h, err := NewHTTP(Config{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}

	results, err := h.Search(context.Background(), "kubernetes deployment", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotQuery != "kubernetes deployment" {
		t.Errorf("q = %q", gotQuery)
	}
	if gotFormat != "json" {
		t.Errorf("format = %q", gotFormat)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want limit 2", len(results))
	}
	if results[0].URL != "https://a.example.com" || results[0].Snippet != "first" {
		t.Errorf("results[0] = %+v", results[0])
	}
}

func TestHTTPSearchErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer ts.Close()

	h, err := NewHTTP(Config{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}

	if _, err := h.Search(context.Background(), "anything", 5); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestHTTPClientUsesOtelTransport(t *testing.T) {
	h, err := NewHTTP(Config{BaseURL: "http://localhost:8888"})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	if _, ok := h.client.Transport.(*otelhttp.Transport); !ok {
		t.Errorf("transport = %T, want *otelhttp.Transport", h.client.Transport)
	}
}

func TestStaticSources(t *testing.T) {
	results := StaticSources([]string{"kubernetes", "deployment"}, 10)

	if len(results) != 4 {
		t.Fatalf("results = %d, want two per topic", len(results))
	}
	if !strings.HasPrefix(results[0].URL, "https://en.wikipedia.org/wiki/") {
		t.Errorf("results[0].URL = %q, want reference site first", results[0].URL)
	}
	if results[0].Title != "Kubernetes - Overview" {
		t.Errorf("results[0].Title = %q", results[0].Title)
	}
	if !strings.HasPrefix(results[1].URL, "https://scholar.google.com/") {
		t.Errorf("results[1].URL = %q", results[1].URL)
	}
	if results[2].Title != "Deployment - Overview" {
		t.Errorf("results[2].Title = %q", results[2].Title)
	}
}

func TestStaticSourcesCap(t *testing.T) {
	results := StaticSources([]string{"one", "two", "three"}, 3)
	if len(results) != 3 {
		t.Errorf("results = %d, want capped at 3", len(results))
	}
}

func TestStaticSourcesDeterministic(t *testing.T) {
	topics := []string{"caching", "latency"}
	first := StaticSources(topics, 10)
	for i := 0; i < 5; i++ {
		if got := StaticSources(topics, 10); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %+v", i, got)
		}
	}
}

func TestStaticSourcesEmptyTopics(t *testing.T) {
	if results := StaticSources(nil, 10); len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
}
