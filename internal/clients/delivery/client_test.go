package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/cateringhub/pricing/internal/domain"
)

func TestClientQuoteDeliverySuccess(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/delivery/calculate" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key_123" {
			t.Fatalf("expected bearer key, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"fee":12.5,"eligible":true,"range":"5-15 miles","reason":"","minimumRequired":100,"distanceEligible":true,"minimumEligible":true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", WithAPIKey(" key_123 "))
	distance := 7.5
	quote, err := client.QuoteDelivery(context.Background(), domain.RemoteDeliveryRequest{
		DeliveryAddress: "1 Elm St",
		OrderSubtotal:   240,
		ServiceID:       "svc_1",
		VendorID:        "vendor_1",
		DistanceMiles:   &distance,
	})
	if err != nil {
		t.Fatalf("QuoteDelivery: %v", err)
	}
	if quote.Fee != 12.5 || !quote.Eligible || quote.Range != "5-15 miles" {
		t.Fatalf("unexpected quote %+v", quote)
	}
	if quote.MinimumRequired == nil || *quote.MinimumRequired != 100 {
		t.Fatalf("expected minimum 100, got %v", quote.MinimumRequired)
	}
	if quote.Source != domain.DeliveryQuoteSourceRemote {
		t.Fatalf("expected remote source, got %s", quote.Source)
	}
	if captured["deliveryAddress"] != "1 Elm St" || captured["serviceId"] != "svc_1" || captured["distanceMiles"] != 7.5 {
		t.Fatalf("unexpected request payload %+v", captured)
	}
}

func TestClientQuoteDeliveryDefaultsSubFlags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"fee":0,"eligible":false,"reason":"outside zone"}`))
	}))
	defer srv.Close()

	quote, err := NewClient(srv.URL).QuoteDelivery(context.Background(), domain.RemoteDeliveryRequest{DeliveryAddress: "x"})
	if err != nil {
		t.Fatalf("QuoteDelivery: %v", err)
	}
	if quote.DistanceEligible || quote.MinimumEligible || quote.Reason != "outside zone" {
		t.Fatalf("unexpected quote %+v", quote)
	}
}

func TestClientQuoteDeliveryUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"fee":`))
			},
		},
		{
			name: "missing fields",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"range":"0-10"}`))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
				_, _ = w.Write([]byte(`{"fee":1,"eligible":true}`))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			client := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
			_, err := client.QuoteDelivery(context.Background(), domain.RemoteDeliveryRequest{DeliveryAddress: "1 Elm"})
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestClientWithoutBaseURL(t *testing.T) {
	client := NewClient("  ")
	if client.Enabled() {
		t.Fatalf("expected client to be disabled")
	}
	if _, err := client.QuoteDelivery(context.Background(), domain.RemoteDeliveryRequest{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := client.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from ping, got %v", err)
	}
}

func TestClientPing(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	status.Store(http.StatusServiceUnavailable)
	if err := client.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
