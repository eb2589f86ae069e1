package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func amapFixture(t *testing.T, geocodeOK, transitOK bool) *AmapClient {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v3/geocode/geo", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "amap-key" {
			t.Errorf("missing api key")
		}
		if !geocodeOK {
			fmt.Fprint(w, `{"status": "0", "geocodes": []}`)
			return
		}
		fmt.Fprint(w, `{"status": "1", "geocodes": [{"location": "106.5,29.5", "citycode": "023"}]}`)
	})
	mux.HandleFunc("/v5/direction/transit/integrated", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("origin") == "" || q.Get("destination") == "" {
			t.Errorf("transit query missing coordinates: %v", q)
		}
		if !transitOK {
			fmt.Fprint(w, `{"status": "0"}`)
			return
		}
		fmt.Fprint(w, `{"status": "1", "route": {"transits": [{"duration": "14400", "cost": {"transit_fee": "120"}}]}}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewAmapClientWithBaseURL("amap-key", srv.URL)
}

func TestTransitRoute(t *testing.T) {
	client := amapFixture(t, true, true)

	got := client.TransitRoute(context.Background(), "重庆", "兴义")
	if got == RouteUnavailable {
		t.Fatal("expected route data, got unavailable sentinel")
	}

	var transits []map[string]any
	if err := json.Unmarshal([]byte(got), &transits); err != nil {
		t.Fatalf("route output not JSON: %v", err)
	}
	if len(transits) != 1 || transits[0]["duration"] != "14400" {
		t.Errorf("unexpected transits: %v", transits)
	}
}

func TestTransitRouteFailures(t *testing.T) {
	tests := []struct {
		name      string
		geocodeOK bool
		transitOK bool
	}{
		{"geocode failure", false, true},
		{"transit failure", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := amapFixture(t, tt.geocodeOK, tt.transitOK)
			if got := client.TransitRoute(context.Background(), "重庆", "兴义"); got != RouteUnavailable {
				t.Errorf("got %q, want %q", got, RouteUnavailable)
			}
		})
	}
}

func TestTransitRouteServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewAmapClientWithBaseURL("amap-key", srv.URL)
	if got := client.TransitRoute(context.Background(), "重庆", "兴义"); got != RouteUnavailable {
		t.Errorf("got %q, want %q", got, RouteUnavailable)
	}
}

func TestTrainTickets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		for key, want := range map[string]string{
			"key":               "train-key",
			"search_type":       "1",
			"departure_station": "重庆西",
			"arrival_station":   "兴义",
			"date":              "2026-09-01",
			"enable_booking":    "1",
		} {
			if q.Get(key) != want {
				t.Errorf("query %s = %q, want %q", key, q.Get(key), want)
			}
		}
		fmt.Fprint(w, `{"trains": [{"no": "K1234"}]}`)
	}))
	defer srv.Close()

	client := NewTrainClient(srv.URL, "train-key")
	got, err := client.Tickets(context.Background(), "重庆西", "兴义", "2026-09-01")
	if err != nil {
		t.Fatalf("Tickets() error: %v", err)
	}
	if !strings.Contains(got, "K1234") {
		t.Errorf("ticket listing missing train: %q", got)
	}
}

func TestTrainTicketsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewTrainClient(srv.URL, "train-key")
	if _, err := client.Tickets(context.Background(), "重庆西", "兴义", "2026-09-01"); err == nil {
		t.Fatal("expected error for API failure")
	}
}
