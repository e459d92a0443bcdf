package exchange

import (
	"encoding/json"

	"github.com/nbapaper/engine/internal/telemetry"
)

// wsFrame is the envelope every exchange WebSocket message arrives in.
type wsFrame struct {
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

// level is one (price, quantity) resting-order level, price in cents.
type level struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
}

// snapshotMsg is a full orderbook snapshot: the complete set of resting
// yes-side and no-side bid levels plus the sequence number they were
// captured at.
type snapshotMsg struct {
	MarketTicker string  `json:"market_ticker"`
	Seq          int64   `json:"seq"`
	Yes          []level `json:"yes"`
	No           []level `json:"no"`
}

// deltaMsg patches a single resting level by a signed quantity delta.
type deltaMsg struct {
	MarketTicker string `json:"market_ticker"`
	Seq          int64  `json:"seq"`
	Side         string `json:"side"` // "yes" or "no"
	Price        int64  `json:"price"`
	Delta        int64  `json:"delta"`
}

// errorMsg is the exchange's error frame shape.
type errorMsg struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// parseFrame decodes a single raw WebSocket frame into its typed payload.
// Returns (nil, "", nil) for frame types the adapter doesn't act on
// (subscribed/unsubscribed acks).
func parseFrame(data []byte) (payload any, kind string, err error) {
	var f wsFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", err
	}

	switch f.Type {
	case "orderbook_snapshot":
		var s snapshotMsg
		if err := json.Unmarshal(f.Msg, &s); err != nil {
			return nil, "", err
		}
		return s, "snapshot", nil
	case "orderbook_delta":
		var d deltaMsg
		if err := json.Unmarshal(f.Msg, &d); err != nil {
			return nil, "", err
		}
		return d, "delta", nil
	case "error":
		var e errorMsg
		_ = json.Unmarshal(f.Msg, &e)
		telemetry.Warnf("exchange_ws: server error %s: %s", e.Code, e.Msg)
		return nil, "error", nil
	default:
		return nil, "", nil
	}
}
