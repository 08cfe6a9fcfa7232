// Package media brokers stream publishing against the external media
// server: WHIP negotiation on the primary transport, idempotent path
// provisioning, and HLS readiness reconciliation for the fallback.
package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

var (
	ErrRemoteTimeout     = errors.New("remote call deadline exceeded")
	ErrRemoteUnavailable = errors.New("remote collaborator unavailable")
)

type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeTimedOut
	OutcomeFailed
)

// CallResult is the tagged outcome of one outbound call. OutcomeOK means a
// response was received; Code may still be non-2xx and callers decide what
// that means for them.
type CallResult struct {
	Kind OutcomeKind
	Code int
	Body []byte
	Err  error
}

func (r CallResult) Success() bool {
	return r.Kind == OutcomeOK && r.Code >= 200 && r.Code < 300
}

// Cause maps the result onto the error taxonomy for propagation.
func (r CallResult) Cause() error {
	switch r.Kind {
	case OutcomeTimedOut:
		return ErrRemoteTimeout
	case OutcomeFailed:
		if r.Err != nil {
			return r.Err
		}
		return ErrRemoteUnavailable
	default:
		return nil
	}
}

// Client is the single reusable "call external collaborator with deadline"
// primitive shared by the provisioner, broker, and reconciler. Every call
// carries an explicit per-call deadline; a fired deadline releases the
// pending request and resolves deterministically as OutcomeTimedOut.
type Client struct {
	http *http.Client
}

func NewClient() *Client {
	return &Client{http: &http.Client{}}
}

func (c *Client) Call(ctx context.Context, timeout time.Duration, method, url, contentType string, body []byte) CallResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return CallResult{Kind: OutcomeFailed, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return CallResult{Kind: OutcomeTimedOut, Err: err}
		}
		return CallResult{Kind: OutcomeFailed, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return CallResult{Kind: OutcomeTimedOut, Err: err}
		}
		return CallResult{Kind: OutcomeFailed, Err: err}
	}
	return CallResult{Kind: OutcomeOK, Code: resp.StatusCode, Body: data}
}
