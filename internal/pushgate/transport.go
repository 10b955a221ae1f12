package pushgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Transport delivers a payload to one device. The HTTP implementation talks
// to real firmware; the mock one only logs, for development without hardware.
type Transport interface {
	Send(ctx context.Context, arduinoIP string, payload Payload) error
}

// NewTransport selects a transport by mode. Anything other than "mock" gets
// the real HTTP transport.
func NewTransport(mode string, timeout time.Duration, logger *zap.Logger) Transport {
	if mode == "mock" {
		logger.Info("Using mock device transport, payloads will only be logged")
		return &MockTransport{logger: logger}
	}
	return NewHTTPTransport(timeout, logger)
}

// HTTPTransport posts payloads to the device's update endpoint.
type HTTPTransport struct {
	client *http.Client
	logger *zap.Logger
}

func NewHTTPTransport(timeout time.Duration, logger *zap.Logger) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (t *HTTPTransport) Send(ctx context.Context, arduinoIP string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode device payload: %w", err)
	}

	url := fmt.Sprintf("http://%s/api/update", arduinoIP)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create device request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("device request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("device returned status %d", resp.StatusCode)
	}

	t.logger.Debug("Delivered payload to device",
		zap.String("url", url),
		zap.Int("body_size", len(body)))
	return nil
}

// MockTransport logs the payload it would have sent and reports success.
type MockTransport struct {
	logger *zap.Logger
}

func (t *MockTransport) Send(ctx context.Context, arduinoIP string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode device payload: %w", err)
	}

	t.logger.Info("Mock device delivery",
		zap.String("url", fmt.Sprintf("http://%s/api/update", arduinoIP)),
		zap.ByteString("payload", body))
	return nil
}
