package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Notification is the payload handed to the external push function. The
// function is opaque to this service; delivery fan-out happens on the other
// side.
type Notification struct {
	CommunicationID string `json:"communication_id"`
	Title           string `json:"title"`
	Body            string `json:"body"`
	Tag             string `json:"tag"`
}

// Config configures the dispatcher.
type Config struct {
	FunctionURL string
	APIKey      string
	Timeout     time.Duration
	Enabled     bool
}

// Dispatcher invokes the push function. Fire-and-forget: failures are logged
// by the caller and never roll back the distribution they follow.
type Dispatcher struct {
	url     string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
	enabled bool
}

// NewDispatcher constructs the dispatcher.
func NewDispatcher(cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		url:     cfg.FunctionURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		enabled: cfg.Enabled && cfg.FunctionURL != "",
	}
}

// Enabled reports whether dispatching is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && d.enabled
}

// Invoke posts the notification to the push function.
func (d *Dispatcher) Invoke(ctx context.Context, notification Notification) error {
	if !d.Enabled() {
		return nil
	}
	if notification.CommunicationID == "" {
		return fmt.Errorf("notification requires a communication id")
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("invoke push function: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push function returned %d", resp.StatusCode)
	}

	d.logger.Debug("push dispatched",
		zap.String("communication_id", notification.CommunicationID),
		zap.String("tag", notification.Tag))
	return nil
}
