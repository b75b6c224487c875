package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/AdakHaddad/capdash/internal/model"
)

// RelayClient issues commands over the synchronous HTTP relay, used only
// when the live broker session is unavailable. The breaker keeps a dead
// relay from stalling every dispatch behind a full HTTP timeout.
type RelayClient struct {
	url     string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

type relayRequest struct {
	Command     string `json:"command"`
	DurationSec int    `json:"duration_sec,omitempty"`
}

type relayResponse struct {
	Success bool   `json:"success"`
	Topic   string `json:"topic,omitempty"`
	Payload string `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewRelayClient(url string, timeout time.Duration) *RelayClient {
	if url == "" {
		return nil
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "command-relay",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})
	return &RelayClient{
		url:     url,
		http:    &http.Client{Timeout: timeout},
		breaker: cb,
	}
}

// Send posts the command to the relay and reports success only if the relay
// itself reports success.
func (rc *RelayClient) Send(ctx context.Context, cmd model.Command, durationSec int) error {
	_, err := rc.breaker.Execute(func() (any, error) {
		body, _ := json.Marshal(relayRequest{Command: string(cmd), DurationSec: durationSec})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rc.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := rc.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("relay request: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("relay status %d", resp.StatusCode)
		}

		var rr relayResponse
		if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
			return nil, fmt.Errorf("relay decode: %w", err)
		}
		if !rr.Success {
			if rr.Error != "" {
				return nil, fmt.Errorf("relay refused: %s", rr.Error)
			}
			return nil, fmt.Errorf("relay refused command")
		}
		return nil, nil
	})
	return err
}
