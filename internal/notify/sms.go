package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// ErrGatewayUnavailable is returned while the breaker is open.
var ErrGatewayUnavailable = errors.New("notify: sms gateway unavailable")

// SMSGatewayConfig describes the HTTP SMS provider.
type SMSGatewayConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Defaults to 5.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open. Defaults to 30s.
	OpenTimeout time.Duration
}

// SMSGateway posts messages to an HTTP SMS provider behind a circuit breaker.
type SMSGateway struct {
	cfg     SMSGatewayConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewSMSGateway constructs an SMSGateway.
func NewSMSGateway(cfg SMSGatewayConfig, logger *slog.Logger) *SMSGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sms-gateway",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return &SMSGateway{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, breaker: breaker}
}

type smsRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// SendSMS delivers one message.
func (g *SMSGateway) SendSMS(ctx context.Context, to, body string) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.post(ctx, to, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return err
}

// State reports the breaker state.
func (g *SMSGateway) State() gobreaker.State {
	return g.breaker.State()
}

func (g *SMSGateway) post(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(smsRequest{To: to, Body: body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: sms gateway: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: sms gateway returned %d", resp.StatusCode)
	}
	return nil
}
