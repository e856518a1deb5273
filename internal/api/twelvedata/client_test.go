package twelvedata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Alias1177/goldscalper/models"
)

func TestSymbol(t *testing.T) {
	tests := map[string]string{
		"XAUUSD":  "XAU/USD",
		"eurusd":  "EUR/USD",
		"XAU/USD": "XAU/USD",
		"US30":    "US30",
	}
	for in, want := range tests {
		if got := Symbol(in); got != want {
			t.Errorf("Symbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBars(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		fmt.Fprint(w, `{"meta":{"symbol":"XAU/USD","interval":"5min"},"status":"ok","values":[
			{"datetime":"2024-05-06 12:05:00","open":"2301.5","high":"2303","low":"2300","close":"2302.25"},
			{"datetime":"2024-05-06 12:00:00","open":"2300","high":"2302","low":"2299","close":"2301.5","volume":"120"}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{APIKey: "k", BaseURL: srv.URL, RequestTimeout: time.Second})
	bars, err := c.Bars(context.Background(), "XAUUSD", models.M5, 2)
	if err != nil {
		t.Fatalf("Bars() error = %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("Bars() = %d bars, want 2", len(bars))
	}
	if !bars[0].Time.Before(bars[1].Time) {
		t.Errorf("Bars() not sorted oldest first: %v, %v", bars[0].Time, bars[1].Time)
	}
	if bars[0].Volume != 120 || bars[1].Close != 2302.25 {
		t.Errorf("Bars() decoded %+v", bars)
	}
	if want := "symbol=XAU%2FUSD"; !strings.Contains(query, want) {
		t.Errorf("query %q missing %q", query, want)
	}
}

func TestBarsErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"api error", `{"status":"error","message":"invalid api key"}`, nil},
		{"empty", `{"status":"ok","values":[]}`, ErrEmptyData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c := NewClient(ClientOptions{BaseURL: srv.URL})
			_, err := c.Bars(context.Background(), "XAUUSD", models.M1, 10)
			if err == nil {
				t.Fatal("Bars() error = nil, want error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Bars() error = %v, want %v", err, tt.want)
			}
		})
	}
}
