package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.opencensus.io/plugin/ochttp"

	"github.com/vibe-kanban/webhooks/pkg/logger"
	"github.com/vibe-kanban/webhooks/pkg/signing"
)

// deliveryTimeout bounds a single HTTP attempt.
const deliveryTimeout = 30 * time.Second

// maxErrorBodyBytes bounds how much of a non-2xx response body is captured
// into a Result's Detail, so a misbehaving subscriber can't bloat last_error.
const maxErrorBodyBytes = 8 * 1024

// Outcome classifies the result of a single delivery attempt.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeRetriableHTTP    Outcome = "retriable_http"
	OutcomeNonRetriableHTTP Outcome = "non_retriable_http"
	OutcomeNetworkError     Outcome = "network_error"
	OutcomeTimeout          Outcome = "timeout"
	OutcomeInvalidURL       Outcome = "invalid_url"
)

// Result is what one attempt produced: its classification and a short,
// loggable description suitable for persisting as last_error.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Detail     string
}

// Retriable reports whether the outcome should be retried rather than
// failed outright.
func (r Result) Retriable() bool {
	switch r.Outcome {
	case OutcomeRetriableHTTP, OutcomeNetworkError, OutcomeTimeout:
		return true
	default:
		return false
	}
}

// Engine performs the actual HTTP delivery of a signed payload.
type Engine struct {
	httpClient *http.Client
	userAgent  string
	log        logger.Logger
}

// NewEngine creates a delivery Engine. client may be nil, in which case a
// client wrapped with OpenCensus HTTP instrumentation and a fixed per-attempt
// timeout is created.
func NewEngine(client *http.Client, log logger.Logger) *Engine {
	if client == nil {
		client = &http.Client{
			Timeout:   deliveryTimeout,
			Transport: &ochttp.Transport{},
		}
	}
	return &Engine{
		httpClient: client,
		userAgent:  "vibe-kanban-webhook/1.0",
		log:        log,
	}
}

// Deliver POSTs payload to targetURL, signed with secret, carrying the
// given event kind and delivery ID in headers. It never returns a Go error
// for a failed delivery — failures are expressed as a Result so the caller
// can decide whether to retry.
func (e *Engine) Deliver(ctx context.Context, targetURL, secret, eventType, deliveryID string, payload []byte) Result {
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Result{Outcome: OutcomeInvalidURL, Detail: fmt.Sprintf("invalid webhook URL: %s", targetURL)}
	}

	reqCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, targetURL, bytes.NewReader(payload))
	if err != nil {
		return Result{Outcome: OutcomeInvalidURL, Detail: err.Error()}
	}

	signature := signing.Sign([]byte(secret), payload)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Event", eventType)
	req.Header.Set("X-Webhook-Delivery", deliveryID)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// The subscriber's response body isn't part of the contract on
		// success; draining a small amount avoids leaking the connection
		// without holding it open.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
		return Result{Outcome: OutcomeSuccess, StatusCode: resp.StatusCode}
	}

	body, truncated := readLimited(resp.Body, maxErrorBodyBytes)
	detail := fmt.Sprintf("HTTP %d", resp.StatusCode)
	if len(body) > 0 {
		detail = fmt.Sprintf("%s: %s", detail, body)
		if truncated {
			detail += " (truncated)"
		}
	}

	if resp.StatusCode >= 500 {
		return Result{Outcome: OutcomeRetriableHTTP, StatusCode: resp.StatusCode, Detail: detail}
	}
	return Result{Outcome: OutcomeNonRetriableHTTP, StatusCode: resp.StatusCode, Detail: detail}
}

// readLimited reads up to limit bytes of body as text, reporting whether
// more data remained beyond the limit.
func readLimited(body io.Reader, limit int64) (string, bool) {
	buf, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return "", false
	}
	if int64(len(buf)) > limit {
		return string(buf[:limit]), true
	}
	return string(buf), false
}

func classifyTransportError(err error) Result {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Result{Outcome: OutcomeTimeout, Detail: "request timed out"}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return Result{Outcome: OutcomeTimeout, Detail: "request timed out"}
	}
	return Result{Outcome: OutcomeNetworkError, Detail: err.Error()}
}
