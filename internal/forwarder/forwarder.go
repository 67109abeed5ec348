// Package forwarder performs the single downstream call for an allowed gate decision.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/owaiken/gateway/internal/apperr"
	"github.com/owaiken/gateway/internal/gate"
	"github.com/owaiken/gateway/internal/metrics"
	"github.com/owaiken/gateway/internal/models"
	"github.com/owaiken/gateway/internal/settings"

	log "github.com/sirupsen/logrus"
)

const (
	defaultRequestTimeout = 60 * time.Second
	maxResponseBytes      = 10 << 20
)

// Options configures a Forwarder.
type Options struct {
	Client        *http.Client
	Timeout       time.Duration
	PublicBaseURL string
	SiteName      string
}

// Response is a successful downstream reply.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// DownstreamError is a non-2xx downstream reply.
type DownstreamError struct {
	Status int
	Body   []byte
}

// Error implements error.
func (e *DownstreamError) Error() string {
	return fmt.Sprintf("forwarder: downstream status %d", e.Status)
}

// Forwarder sends allowed calls downstream and meters them on success.
type Forwarder struct {
	client   *http.Client
	referer  string
	siteName string
}

// New constructs a Forwarder.
func New(opts Options) *Forwarder {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	siteName := strings.TrimSpace(opts.SiteName)
	if siteName == "" {
		siteName = settings.DefaultSiteName
	}
	return &Forwarder{
		client:   client,
		referer:  strings.TrimSpace(opts.PublicBaseURL),
		siteName: siteName,
	}
}

// Forward POSTs payload to the decision target exactly once.
// On a 2xx reply the decision is committed with payload as its snapshot; commit failures are only logged.
func (f *Forwarder) Forward(ctx context.Context, decision *gate.Decision, payload []byte) (*Response, error) {
	if f == nil || f.client == nil {
		return nil, apperr.New(apperr.KindInternal, "Internal server error")
	}
	if decision == nil || strings.TrimSpace(decision.Target.URL) == "" {
		return nil, apperr.New(apperr.KindInternal, "Internal server error")
	}
	action := string(decision.Action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, decision.Target.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Internal server error", fmt.Errorf("forwarder: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if credential := decision.Target.Credential; credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	if decision.Action == models.UsageActionChat {
		if f.referer != "" {
			req.Header.Set("HTTP-Referer", f.referer)
		}
		req.Header.Set("X-Title", f.siteName)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	metrics.ForwardDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ForwardRequests.WithLabelValues(action, "unreachable").Inc()
		return nil, apperr.Wrap(apperr.KindUpstreamUnreachable, "Failed to reach downstream service", fmt.Errorf("forwarder: request failed: %w", err))
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("forwarder: close response body failed")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.ForwardRequests.WithLabelValues(action, "unreachable").Inc()
		return nil, apperr.Wrap(apperr.KindUpstreamUnreachable, "Failed to reach downstream service", fmt.Errorf("forwarder: read response: %w", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		metrics.ForwardRequests.WithLabelValues(action, "downstream_error").Inc()
		downstream := &DownstreamError{Status: resp.StatusCode, Body: body}
		appErr := apperr.Wrap(apperr.KindDownstream, downstreamMessage(decision.Action), downstream).WithDetails(decodeDetails(body))
		appErr.Status = resp.StatusCode
		return nil, appErr
	}
	metrics.ForwardRequests.WithLabelValues(action, "ok").Inc()

	if errCommit := decision.Commit(ctx, payload); errCommit != nil {
		metrics.CommitFailures.WithLabelValues(action).Inc()
		log.WithError(errCommit).WithFields(log.Fields{
			"action":     action,
			"target":     decision.TargetID,
			"request_id": decision.RequestID,
		}).Warn("forwarder: usage commit failed")
	}

	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func downstreamMessage(action models.UsageAction) string {
	if action == models.UsageActionWorkflow {
		return "Error from n8n workflow"
	}
	return "Error from model provider"
}

// decodeDetails returns the downstream body as JSON when possible, else as text.
func decodeDetails(body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var parsed any
	if errUnmarshal := json.Unmarshal(body, &parsed); errUnmarshal == nil {
		return parsed
	}
	return string(body)
}
