package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nbapaper/engine/internal/telemetry"
)

type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) Enabled() bool { return n.webhookURL != "" }

type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

func (n *Notifier) SendText(ctx context.Context, msg string) error {
	return n.send(ctx, webhookPayload{Content: msg})
}

func (n *Notifier) SendEmbed(ctx context.Context, embed Embed) error {
	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return n.send(ctx, webhookPayload{Embeds: []Embed{embed}})
}

func (n *Notifier) send(ctx context.Context, payload webhookPayload) error {
	if !n.Enabled() {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 429 {
		telemetry.Warnf("discord: rate limited")
		return fmt.Errorf("discord rate limited")
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook: status=%d", resp.StatusCode)
	}

	return nil
}

// --- Convenience methods for common alert types ---

const (
	ColorGreen  = 0x2ECC71
	ColorRed    = 0xE74C3C
	ColorYellow = 0xF1C40F
	ColorBlue   = 0x3498DB
)

// SignalAlert announces a strategy-emitted trade signal that the
// execution engine filled, so an operator watching the channel sees
// what the engine did and why.
func (n *Notifier) SignalAlert(ctx context.Context, strategyKind, gameID, marketTicker, side string, quantity int, fillCents int, reason string) error {
	return n.SendEmbed(ctx, Embed{
		Title: fmt.Sprintf("Fill — %s", strategyKind),
		Color: ColorGreen,
		Fields: []Field{
			{Name: "Game", Value: gameID, Inline: true},
			{Name: "Market", Value: marketTicker, Inline: true},
			{Name: "Side", Value: side, Inline: true},
			{Name: "Qty", Value: fmt.Sprintf("%d", quantity), Inline: true},
			{Name: "Fill", Value: fmt.Sprintf("%d¢", fillCents), Inline: true},
			{Name: "Reason", Value: reason, Inline: false},
		},
	})
}

// RiskRejectionAlert announces an order the risk gate refused, naming
// the limit type and the gate's stated reason (spec.md §4.6).
func (n *Notifier) RiskRejectionAlert(ctx context.Context, strategyID, marketTicker, limitType, reason string) error {
	return n.SendEmbed(ctx, Embed{
		Title: "Order Rejected",
		Color: ColorYellow,
		Fields: []Field{
			{Name: "Strategy", Value: strategyID, Inline: true},
			{Name: "Market", Value: marketTicker, Inline: true},
			{Name: "Limit", Value: limitType, Inline: true},
			{Name: "Reason", Value: reason, Inline: false},
		},
	})
}

// InvariantAlert reports an InvariantViolation (spec.md §7: "fatal for
// the offending operation — abort, log, leave state unchanged"). These
// never self-heal, so they get the loudest color and go out immediately.
func (n *Notifier) InvariantAlert(ctx context.Context, component, detail string) error {
	return n.SendEmbed(ctx, Embed{
		Title:       "Invariant Violation",
		Description: detail,
		Color:       ColorRed,
		Fields: []Field{
			{Name: "Component", Value: component, Inline: true},
		},
	})
}

// ExecutionHaltAlert reports the engine halting after a post-fill
// persistence failure (spec.md §7: "the engine emits an alert and halts
// further executions until operator intervention").
func (n *Notifier) ExecutionHaltAlert(ctx context.Context, orderID, reason string) error {
	return n.SendEmbed(ctx, Embed{
		Title:       "Execution Halted",
		Description: reason,
		Color:       ColorRed,
		Fields: []Field{
			{Name: "Order", Value: orderID, Inline: true},
		},
	})
}

// GameFinalAlert reports an NBA game reaching its final phase, with the
// score the aggregator last observed.
func (n *Notifier) GameFinalAlert(ctx context.Context, homeAbbr, awayAbbr string, homeScore, awayScore int) error {
	return n.SendEmbed(ctx, Embed{
		Title:       "Game Final",
		Description: fmt.Sprintf("%s %d – %d %s", homeAbbr, homeScore, awayScore, awayAbbr),
		Color:       ColorBlue,
	})
}
