package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metaltrading/internal/trading/domain"
)

func TestRefreshAndPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/prices" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"prices":{"XAU":{"price":"165.25","as_of":"2026-01-15T10:00:00Z"},"XAG":{"price":"2.7","as_of":"2026-01-15T10:00:00Z"}}}`))
	}))
	defer server.Close()

	f := New(Config{BaseURL: server.URL, MaxAge: time.Minute}, nil)
	f.now = func() time.Time { return time.Date(2026, 1, 15, 10, 0, 30, 0, time.UTC) }

	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	p, err := f.Price(context.Background(), "XAU")
	if err != nil {
		t.Fatalf("Price failed: %v", err)
	}
	if !p.Price.Equal(decimal.RequireFromString("165.25")) {
		t.Errorf("price = %s, want 165.25", p.Price)
	}

	snapshot, err := f.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snapshot) != 2 {
		t.Errorf("snapshot size = %d, want 2", len(snapshot))
	}
}

func TestPriceUnavailableWhenStale(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"prices":{"XAU":{"price":"165","as_of":"2026-01-15T10:00:00Z"}}}`))
	}))
	defer server.Close()

	f := New(Config{BaseURL: server.URL, MaxAge: time.Minute}, nil)
	f.now = func() time.Time { return time.Date(2026, 1, 15, 10, 0, 30, 0, time.UTC) }

	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// 超过 max_age 后价格不可用
	f.now = func() time.Time { return time.Date(2026, 1, 15, 10, 5, 0, 0, time.UTC) }
	if _, err := f.Price(context.Background(), "XAU"); !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Errorf("stale price err = %v, want ErrPriceUnavailable", err)
	}
}

func TestPriceUnknownSymbol(t *testing.T) {
	f := New(Config{BaseURL: "http://localhost:0", MaxAge: time.Minute}, nil)

	if _, err := f.Price(context.Background(), "XAU"); !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Errorf("missing symbol err = %v, want ErrPriceUnavailable", err)
	}
}

func TestRefreshServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := New(Config{BaseURL: server.URL, MaxAge: time.Minute}, nil)
	if err := f.Refresh(context.Background()); err == nil {
		t.Error("Refresh should fail on a non-200 response")
	}
}
