package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alpinemaps/terrainclient/internal/tileid"
)

func TestLoadGoodResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/5/3/2.png" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	svc := New(Config{BaseURL: srv.URL, Extension: "png"})
	res := svc.Load(context.Background(), tileid.ID{Zoom: 5, X: 3, Y: 2})
	if res.Network.Status != Good {
		t.Fatalf("expected Good, got %v", res.Network.Status)
	}
	if string(res.Bytes) != "payload" {
		t.Fatalf("unexpected body %q", res.Bytes)
	}
}

func TestLoadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	svc := New(Config{BaseURL: srv.URL, Extension: "png"})
	res := svc.Load(context.Background(), tileid.ID{Zoom: 1, X: 0, Y: 0})
	if res.Network.Status != NotFound {
		t.Fatalf("expected NotFound, got %v", res.Network.Status)
	}
}

func TestLoadEmptyBodyIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := New(Config{BaseURL: srv.URL, Extension: "png"})
	res := svc.Load(context.Background(), tileid.ID{Zoom: 1, X: 0, Y: 0})
	if res.Network.Status != NotFound {
		t.Fatalf("expected empty-2xx to classify as NotFound, got %v", res.Network.Status)
	}
}

func TestLoadServerErrorIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := New(Config{BaseURL: srv.URL, Extension: "png"})
	res := svc.Load(context.Background(), tileid.ID{Zoom: 1, X: 0, Y: 0})
	if res.Network.Status != NetworkError {
		t.Fatalf("expected NetworkError, got %v", res.Network.Status)
	}
}

func TestLoadTimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("too slow"))
	}))
	defer srv.Close()

	svc := New(Config{BaseURL: srv.URL, Extension: "png", Timeout: 5 * time.Millisecond})
	res := svc.Load(context.Background(), tileid.ID{Zoom: 1, X: 0, Y: 0})
	if res.Network.Status != NetworkError {
		t.Fatalf("expected NetworkError on timeout, got %v", res.Network.Status)
	}
}

func TestSouthUpFlipsY(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	svc := New(Config{BaseURL: srv.URL, Extension: "jpeg", Convention: SouthUp})
	// zoom 2 has 4 rows (0..3); SlippyMap y=1 becomes TMS y=2.
	svc.Load(context.Background(), tileid.ID{Zoom: 2, X: 1, Y: 1})
	if gotPath != "/2/1/2.jpeg" {
		t.Fatalf("expected south-up flipped path, got %q", gotPath)
	}
}

func TestNoExtensionOmitsDot(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("mvt"))
	}))
	defer srv.Close()

	svc := New(Config{BaseURL: srv.URL})
	svc.Load(context.Background(), tileid.ID{Zoom: 4, X: 5, Y: 6})
	if gotPath != "/4/5/6" {
		t.Fatalf("expected extensionless path, got %q", gotPath)
	}
}
