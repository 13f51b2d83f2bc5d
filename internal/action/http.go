package action

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds HTTP and command handlers when none is configured.
const DefaultTimeout = 5 * time.Second

// maxDrain is how much of a response body is read before closing.
const maxDrain = 64 << 10

// HTTP calls a URL per action. A 2xx status is success.
type HTTP struct {
	Method  string
	OnURL   string
	OffURL  string
	Timeout time.Duration

	Client *http.Client
	Logger Logger
}

// TurnOn requests OnURL.
func (h *HTTP) TurnOn() bool { return h.call(h.OnURL) }

// TurnOff requests OffURL.
func (h *HTTP) TurnOff() bool { return h.call(h.OffURL) }

func (h *HTTP) call(url string) bool {
	logger := orNoop(h.Logger)
	if err := h.do(url); err != nil {
		logger.Warn("http action failed", "url", url, "error", err)
		return false
	}
	logger.Debug("http action succeeded", "url", url)
	return true
}

func (h *HTTP) do(url string) error {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain)) //nolint:errcheck // Draining for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
