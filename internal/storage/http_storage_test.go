package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPAssetFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/style.css":
			w.Header().Set("Content-Type", "text/css")
			w.Write([]byte("body{}"))
		case "/loop":
			http.Redirect(w, r, "/loop", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher := NewHTTPAssetFetcher(server.Client().Transport)

	entry, err := fetcher.Fetch(context.Background(), server.URL+"/style.css")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if entry.URL != server.URL+"/style.css" || entry.Status != http.StatusOK {
		t.Errorf("Unexpected entry %+v", entry)
	}
	if string(entry.Body) != "body{}" || entry.Header.Get("Content-Type") != "text/css" {
		t.Errorf("Unexpected body or header: %q %q", entry.Body, entry.Header.Get("Content-Type"))
	}
	if entry.StoredAt.IsZero() {
		t.Error("Expected StoredAt to be set")
	}

	if _, err := fetcher.Fetch(context.Background(), server.URL+"/missing"); err == nil {
		t.Error("Expected error for 404")
	}
	if _, err := fetcher.Fetch(context.Background(), server.URL+"/loop"); err == nil {
		t.Error("Expected error for redirect loop")
	}
	if _, err := fetcher.Fetch(context.Background(), "://bad"); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestNewNetworkTransport(t *testing.T) {
	tr := NewNetworkTransport()
	if tr.TLSClientConfig != nil && tr.TLSClientConfig.InsecureSkipVerify {
		t.Error("Expected certificate verification to stay enabled")
	}
	if tr.MaxIdleConnsPerHost <= 0 {
		t.Error("Expected connection pooling to be configured")
	}
}
