package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Incident-Signature"

// MetricsRecorder is an optional callback for delivery outcomes.
type MetricsRecorder func(success bool)

// Dispatcher posts notifications to a fixed set of webhook URLs.
type Dispatcher struct {
	urls       []string
	secret     string
	httpClient *http.Client
	delays     []time.Duration
	onMetrics  MetricsRecorder
	wg         sync.WaitGroup
	logger     *zap.Logger
}

// NewDispatcher returns a Dispatcher. An empty urls list makes Dispatch a
// no-op.
func NewDispatcher(urls []string, secret string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		urls:       urls,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		delays:     []time.Duration{0, time.Second, 5 * time.Second},
		logger:     logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (d *Dispatcher) SetMetricsRecorder(fn MetricsRecorder) {
	d.onMetrics = fn
}

// SetBackoff replaces the wait before each attempt. Its length is the number
// of attempts.
func (d *Dispatcher) SetBackoff(delays []time.Duration) {
	d.delays = delays
}

// SetHTTPClient replaces the client used for deliveries.
func (d *Dispatcher) SetHTTPClient(c *http.Client) {
	d.httpClient = c
}

// Enabled reports whether any webhook is configured.
func (d *Dispatcher) Enabled() bool { return d != nil && len(d.urls) > 0 }

// Dispatch fans n out to every URL in the background. Deliveries outlive
// ctx cancellation; Wait blocks until they finish.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	if !d.Enabled() || len(n.Alerts) == 0 {
		return
	}
	body, err := json.Marshal(n)
	if err != nil {
		d.logger.Error("alerts: marshal notification", zap.Error(err))
		return
	}
	signature := Sign(body, d.secret)
	ctx = context.WithoutCancel(ctx)
	for _, url := range d.urls {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(ctx, url, n, body, signature)
		}()
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, url string, n Notification, body []byte, signature string) {
	for attempt, delay := range d.delays {
		if delay > 0 {
			time.Sleep(delay)
		}
		status, err := d.post(ctx, url, n, body, signature)
		if d.onMetrics != nil {
			d.onMetrics(err == nil)
		}
		if err == nil {
			return
		}
		d.logger.Warn("alerts: delivery failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("status", status),
			zap.String("incident_id", n.IncidentID.String()),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) post(ctx context.Context, url string, n Notification, body []byte, signature string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)
	req.Header.Set("X-Incident-Delivery", n.DeliveryID.String())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Sign computes the "sha256=<hex>" HMAC of body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign in constant time.
func Verify(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}
