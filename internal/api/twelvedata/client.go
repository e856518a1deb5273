package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpClient "github.com/Alias1177/goldscalper/internal/platform/http"
	"github.com/Alias1177/goldscalper/models"
)

// ErrEmptyData is returned when the API answers without bars.
var ErrEmptyData = errors.New("empty data returned")

const defaultBaseURL = "https://api.twelvedata.com"

// Client is the TwelveData API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new TwelveData client
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  float64
	MaxRetryTimeout time.Duration
}

// response represents the time_series answer from Twelve Data
type response struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []struct {
		Datetime string  `json:"datetime"`
		Open     float64 `json:"open,string"`
		High     float64 `json:"high,string"`
		Low      float64 `json:"low,string"`
		Close    float64 `json:"close,string"`
		Volume   float64 `json:"volume,string,omitempty"`
	} `json:"values"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewClient creates a new TwelveData API client
func NewClient(options ClientOptions) *Client {
	httpOpts := httpClient.ClientOptions{
		Timeout:         options.RequestTimeout,
		RequestsPerSec:  options.RequestsPerSec,
		MaxRetryTimeout: options.MaxRetryTimeout,
	}

	// Apply defaults if not set
	if httpOpts.Timeout == 0 {
		httpOpts.Timeout = 30 * time.Second
	}
	if httpOpts.RequestsPerSec == 0 {
		httpOpts.RequestsPerSec = 5
	}
	base := options.BaseURL
	if base == "" {
		base = defaultBaseURL
	}

	return &Client{
		apiKey:     options.APIKey,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: httpClient.NewClient(httpOpts),
		logger:     log.With().Str("component", "twelvedata_client").Logger(),
	}
}

// Symbol converts a broker symbol such as XAUUSD to the API form XAU/USD.
func Symbol(symbol string) string {
	symbol = strings.ToUpper(symbol)
	if len(symbol) == 6 && !strings.Contains(symbol, "/") {
		return symbol[:3] + "/" + symbol[3:]
	}
	return symbol
}

// Bars fetches count bars for symbol, oldest first.
func (c *Client) Bars(ctx context.Context, symbol string, tf models.Timeframe, count int) ([]models.Bar, error) {
	q := url.Values{}
	q.Set("symbol", Symbol(symbol))
	q.Set("interval", tf.Interval())
	q.Set("outputsize", fmt.Sprint(count))
	q.Set("timezone", "UTC")
	q.Set("apikey", c.apiKey)
	endpoint := c.baseURL + "/time_series?" + q.Encode()

	c.logger.Debug().Str("symbol", symbol).Str("interval", tf.Interval()).Int("count", count).Msg("Fetching bars")

	// Create a new request with context
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return c.parse(body)
}

func (c *Client) parse(body []byte) ([]models.Bar, error) {
	var data response
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Msg("Error parsing JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if data.Status == "error" {
		c.logger.Error().Str("message", data.Message).Msg("Twelve Data API error")
		return nil, fmt.Errorf("twelve data API error: %s", data.Message)
	}
	if len(data.Values) == 0 {
		c.logger.Warn().Msg("No bars in response")
		return nil, ErrEmptyData
	}

	bars := make([]models.Bar, 0, len(data.Values))
	for _, v := range data.Values {
		t, err := parseTime(v.Datetime)
		if err != nil {
			c.logger.Debug().Str("datetime", v.Datetime).Msg("skipping bar with unparsable time")
			continue
		}
		bars = append(bars, models.Bar{
			Time:   t,
			Open:   v.Open,
			High:   v.High,
			Low:    v.Low,
			Close:  v.Close,
			Volume: v.Volume,
		})
	}

	// Sort bars by time (oldest first for proper calculations)
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})

	c.logger.Debug().Int("count", len(bars)).Msg("Fetched bars")
	return bars, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// HistoricalBars fetches enough bars to cover the given number of days.
func (c *Client) HistoricalBars(ctx context.Context, symbol string, tf models.Timeframe, days int) ([]models.Bar, error) {
	return c.Bars(ctx, symbol, tf, min(tf.BarsForDays(days), 5000))
}
