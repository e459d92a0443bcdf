package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nbapaper/engine/internal/telemetry"
)

// RESTClient is a rate-limited HTTP client used only for market
// discovery (listing events/markets for the NBA series). Order
// placement is never exercised — execution is entirely simulated
// (spec.md §4.7) — so this client has no write-side order endpoints.
type RESTClient struct {
	baseURL     string
	httpClient  *http.Client
	signer      *Signer
	readLimiter *rate.Limiter
}

func NewRESTClient(baseURL string, signer *Signer, readRPS int) *RESTClient {
	if readRPS <= 0 {
		readRPS = 10
	}
	return &RESTClient{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		signer:      signer,
		readLimiter: rate.NewLimiter(rate.Limit(readRPS), readRPS),
	}
}

// Get performs a rate-limited, signed GET and returns the raw body.
func (c *RESTClient) Get(ctx context.Context, path string) ([]byte, int, error) {
	waitStart := time.Now()
	err := c.readLimiter.Wait(ctx)
	telemetry.Metrics.RateLimiterWait.Record(time.Since(waitStart))
	if err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, bytes.NewReader(nil))
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if err := c.signer.SignRequest(req); err != nil {
		return nil, 0, fmt.Errorf("sign: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	telemetry.Infof("exchange_http: GET %s -> %d (%s)", path, resp.StatusCode, time.Since(start))
	return body, resp.StatusCode, nil
}

// EventSummary is the subset of the discovery response needed to find
// the market tickers for one NBA game's event.
type EventSummary struct {
	EventTicker string   `json:"event_ticker"`
	MarketTicks []string `json:"market_tickers"`
}

// ListEventMarkets fetches the market tickers belonging to an event
// ticker, used once per game to discover what to subscribe to.
func (c *RESTClient) ListEventMarkets(ctx context.Context, eventTicker string) (EventSummary, error) {
	body, status, err := c.Get(ctx, "/trade-api/v2/events/"+eventTicker)
	if err != nil {
		return EventSummary{}, err
	}
	if status != http.StatusOK {
		return EventSummary{}, fmt.Errorf("exchange_http: event lookup %s returned %d", eventTicker, status)
	}

	var wrapper struct {
		Event struct {
			EventTicker string `json:"event_ticker"`
		} `json:"event"`
		Markets []struct {
			Ticker string `json:"ticker"`
		} `json:"markets"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return EventSummary{}, fmt.Errorf("decode event markets: %w", err)
	}

	tickers := make([]string, 0, len(wrapper.Markets))
	for _, m := range wrapper.Markets {
		tickers = append(tickers, m.Ticker)
	}
	return EventSummary{EventTicker: wrapper.Event.EventTicker, MarketTicks: tickers}, nil
}

// ListEventsForDate lists every KXNBAGAME event ticker the exchange
// reports as open, used by cmd/paperengine to discover which NBA games
// currently have a live market. The date argument does not filter the
// listing.
func (c *RESTClient) ListEventsForDate(ctx context.Context, date time.Time) ([]string, error) {
	path := "/trade-api/v2/events?series_ticker=KXNBAGAME&status=open"
	body, status, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("exchange_http: event listing returned %d", status)
	}

	var wrapper struct {
		Events []struct {
			EventTicker string `json:"event_ticker"`
		} `json:"events"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode event listing: %w", err)
	}

	tickers := make([]string, 0, len(wrapper.Events))
	for _, e := range wrapper.Events {
		tickers = append(tickers, e.EventTicker)
	}
	return tickers, nil
}
