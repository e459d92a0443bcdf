// Command healthcheck pings the exchange and sports-feed endpoints the
// engine depends on and reports round-trip latency, so an operator can
// check reachability before starting paperengine.
//
// Usage:
//
//	go run ./cmd/healthcheck               # default: 20 requests
//	go run ./cmd/healthcheck -n 50         # 50 requests per endpoint
//	go run ./cmd/healthcheck --ws          # also measure exchange WebSocket ping/pong latency
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nbapaper/engine/internal/adapters/exchange"
	"github.com/nbapaper/engine/internal/config"
)

const (
	exchangeStatusPath = "/trade-api/v2/exchange/status"
	httpTimeout        = 10 * time.Second
)

func main() {
	n := flag.Int("n", 20, "Number of requests per endpoint")
	ws := flag.Bool("ws", false, "Also measure exchange WebSocket ping/pong latency")
	flag.Parse()

	cfg := config.Load()

	fmt.Printf("\nChecking service reachability (mode=%s)\n", cfg.ExchangeMode)
	pingExchange(cfg, *n, *ws)
	pingSportsFeed(cfg, *n)
	fmt.Println()
}

func pingExchange(cfg *config.Config, n int, doWS bool) {
	statusURL := cfg.ExchangeBaseURL + exchangeStatusPath

	fmt.Printf("\n%s\n", strings.Repeat("=", 55))
	fmt.Printf("  EXCHANGE (%s) — %s\n", strings.ToUpper(cfg.ExchangeMode), cfg.ExchangeBaseURL)
	fmt.Printf("%s\n", strings.Repeat("=", 55))

	fmt.Println("\n  Cold-start request (DNS + TLS + HTTP):")
	if ms, code, err := measureHTTP(statusURL, nil); err != nil {
		fmt.Printf("    FAILED — %v\n", err)
	} else {
		fmt.Printf("    %.1f ms  (HTTP %d)\n", ms, code)
	}

	fmt.Printf("\n  Warm HTTP latency (%d requests, keep-alive):\n", n)
	client := &http.Client{Timeout: httpTimeout}
	if _, _, err := measureHTTP(statusURL, client); err != nil {
		fmt.Printf("  [!] Warm-up request failed: %v\n", err)
	} else {
		latencies := make([]float64, 0, n)
		pad := len(fmt.Sprintf("%d", n))
		for i := 1; i <= n; i++ {
			ms, code, err := measureHTTP(statusURL, client)
			if err != nil {
				fmt.Printf("  [%*d/%d]  FAILED — %v\n", pad, i, n, err)
				continue
			}
			latencies = append(latencies, ms)
			fmt.Printf("  [%*d/%d]  %7.1f ms  (HTTP %d)\n", pad, i, n, ms, code)
		}
		printStats(latencies, "Exchange HTTP")
	}

	if doWS {
		fmt.Printf("\n  WebSocket ping/pong latency (%d pings):\n", n)
		wsLatencies := measureWSLatency(cfg, n)
		if len(wsLatencies) > 0 {
			pad := len(fmt.Sprintf("%d", n))
			for i, ms := range wsLatencies {
				fmt.Printf("  [%*d/%d]  %7.1f ms  (WS ping/pong)\n", pad, i+1, n, ms)
			}
			printStats(wsLatencies, "Exchange WebSocket")
		}
	}
}

func pingSportsFeed(cfg *config.Config, n int) {
	if cfg.SportsFeedBaseURL == "" {
		fmt.Printf("\n%s\n", strings.Repeat("=", 55))
		fmt.Println("  SPORTS FEED")
		fmt.Printf("%s\n", strings.Repeat("=", 55))
		fmt.Println("\n  [!] SPORTSFEED_BASE_URL not configured, skipping")
		return
	}

	statusURL := cfg.SportsFeedBaseURL + "/v1/games"

	fmt.Printf("\n%s\n", strings.Repeat("=", 55))
	fmt.Printf("  SPORTS FEED — %s\n", cfg.SportsFeedBaseURL)
	fmt.Printf("%s\n", strings.Repeat("=", 55))

	fmt.Println("\n  Cold-start request (DNS + TCP + HTTP):")
	if ms, code, err := measureHTTP(statusURL, nil); err != nil {
		fmt.Printf("    FAILED — %v\n", err)
	} else {
		fmt.Printf("    %.1f ms  (HTTP %d)\n", ms, code)
	}

	fmt.Printf("\n  Warm HTTP latency (%d requests, keep-alive):\n", n)
	client := &http.Client{Timeout: httpTimeout}
	if _, _, err := measureHTTP(statusURL, client); err != nil {
		fmt.Printf("  [!] Warm-up request failed: %v\n", err)
	} else {
		latencies := make([]float64, 0, n)
		pad := len(fmt.Sprintf("%d", n))
		for i := 1; i <= n; i++ {
			ms, code, err := measureHTTP(statusURL, client)
			if err != nil {
				fmt.Printf("  [%*d/%d]  FAILED — %v\n", pad, i, n, err)
				continue
			}
			latencies = append(latencies, ms)
			fmt.Printf("  [%*d/%d]  %7.1f ms  (HTTP %d)\n", pad, i, n, ms, code)
		}
		printStats(latencies, "Sports Feed HTTP")
	}
}

func measureHTTP(u string, client *http.Client) (ms float64, statusCode int, err error) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, err
	}
	c := client
	if c == nil {
		c = &http.Client{Timeout: httpTimeout}
	}
	start := time.Now()
	resp, err := c.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	return float64(elapsed.Microseconds()) / 1000, resp.StatusCode, nil
}

func measureWSLatency(cfg *config.Config, n int) []float64 {
	signer, err := exchange.NewSignerFromFile(cfg.ExchangeKeyID, cfg.ExchangeKeyFile)
	if err != nil || signer == nil || !signer.Enabled() {
		fmt.Printf("  [!] Exchange credentials missing — set the key ID/file env vars for mode=%s\n", cfg.ExchangeMode)
		return nil
	}

	parsed, err := url.Parse(cfg.ExchangeWSURL)
	if err != nil {
		fmt.Printf("  [!] Invalid WS URL: %v\n", err)
		return nil
	}
	path := parsed.Path
	if path == "" {
		path = "/trade-api/ws/v2"
	}
	header := signer.Headers("GET", path)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ExchangeWSURL, header)
	if err != nil {
		fmt.Printf("  [!] WebSocket dial failed: %v\n", err)
		return nil
	}
	defer conn.Close()

	pongCh := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongCh <- struct{}{}:
		default:
		}
		return nil
	})

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	latencies := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		start := time.Now()
		if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(5*time.Second)); err != nil {
			fmt.Printf("  [!] WS ping failed: %v\n", err)
			break
		}
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		select {
		case <-pongCh:
			elapsed := time.Since(start)
			latencies = append(latencies, float64(elapsed.Microseconds())/1000)
		case <-time.After(5 * time.Second):
			fmt.Printf("  [!] WS pong timeout\n")
			return latencies
		}
	}
	return latencies
}

func printStats(latencies []float64, label string) {
	if len(latencies) < 2 {
		fmt.Printf("\n  Not enough %s samples for statistics.\n", label)
		return
	}
	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	mean := 0.0
	for _, v := range latencies {
		mean += v
	}
	mean /= float64(len(latencies))

	variance := 0.0
	for _, v := range latencies {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(latencies) - 1)
	stdev := math.Sqrt(variance)

	median := sorted[len(sorted)/2]
	p95Idx := int(float64(len(sorted)) * 0.95)
	if p95Idx >= len(sorted) {
		p95Idx = len(sorted) - 1
	}
	p99Idx := int(float64(len(sorted)) * 0.99)
	if p99Idx >= len(sorted) {
		p99Idx = len(sorted) - 1
	}

	fmt.Printf("\n  --- %s Stats (%d requests) ---\n", label, len(latencies))
	fmt.Printf("  Min:    %7.1f ms\n", sorted[0])
	fmt.Printf("  Max:    %7.1f ms\n", sorted[len(sorted)-1])
	fmt.Printf("  Mean:   %7.1f ms\n", mean)
	fmt.Printf("  Median: %7.1f ms\n", median)
	fmt.Printf("  Stdev:  %7.1f ms\n", stdev)
	fmt.Printf("  p95:    %7.1f ms\n", sorted[p95Idx])
	fmt.Printf("  p99:    %7.1f ms\n", sorted[p99Idx])
}
