package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/proctorlab/Proctor/internal/domain"
)

type EnsureOutcome string

const (
	OutcomeExists  EnsureOutcome = "exists"
	OutcomeCreated EnsureOutcome = "created"
)

// pathConfig is the creation policy sent to the path-management API:
// the stream is fed by an incoming publisher, on-demand sourcing is off,
// a re-publish may override the current one, nothing is recorded.
type pathConfig struct {
	Source            string `json:"source"`
	SourceOnDemand    bool   `json:"sourceOnDemand"`
	OverridePublisher bool   `json:"overridePublisher"`
	Record            bool   `json:"record"`
}

// Provisioner ensures a named stream path exists on the external media
// server. It queries first and creates only on absence; a concurrent
// "already exists" from the create endpoint counts as success. It never
// retries by itself — retry policy belongs to the caller.
type Provisioner struct {
	client       *Client
	apiBase      string
	hlsBase      string
	timeout      time.Duration
	probeTimeout time.Duration
	group        singleflight.Group
}

func NewProvisioner(client *Client, apiBase, hlsBase string, timeout, probeTimeout time.Duration) *Provisioner {
	return &Provisioner{
		client:       client,
		apiBase:      strings.TrimRight(apiBase, "/"),
		hlsBase:      strings.TrimRight(hlsBase, "/"),
		timeout:      timeout,
		probeTimeout: probeTimeout,
	}
}

// PlaybackURL is the fallback viewing locator for a stream path.
func (p *Provisioner) PlaybackURL(name domain.StreamName) string {
	return fmt.Sprintf("%s/%s/index.m3u8", p.hlsBase, name)
}

// Ensure makes the named path exist. Concurrent calls for the same name are
// collapsed so the external service observes at most one create request.
func (p *Provisioner) Ensure(ctx context.Context, name domain.StreamName) (EnsureOutcome, error) {
	v, err, _ := p.group.Do(string(name), func() (any, error) {
		return p.ensure(ctx, name)
	})
	if err != nil {
		return "", err
	}
	return v.(EnsureOutcome), nil
}

func (p *Provisioner) ensure(ctx context.Context, name domain.StreamName) (EnsureOutcome, error) {
	getURL := fmt.Sprintf("%s/v3/config/paths/get/%s", p.apiBase, name)
	res := p.client.Call(ctx, p.timeout, http.MethodGet, getURL, "", nil)
	switch {
	case res.Success():
		return OutcomeExists, nil
	case res.Kind == OutcomeOK && res.Code == http.StatusNotFound:
		// well-formed absence, fall through to create
	case res.Kind == OutcomeOK:
		return "", fmt.Errorf("provision %s: path query status %d: %w", name, res.Code, ErrRemoteUnavailable)
	default:
		return "", fmt.Errorf("provision %s: path query: %w", name, res.Cause())
	}

	body := marshalPathConfig()
	addURL := fmt.Sprintf("%s/v3/config/paths/add/%s", p.apiBase, name)
	res = p.client.Call(ctx, p.timeout, http.MethodPost, addURL, "application/json", body)
	switch {
	case res.Success():
		log.Info().Str("module", "media.provisioner").Str("stream", string(name)).Msg("path created")
		go p.warmup(name)
		return OutcomeCreated, nil
	case res.Kind == OutcomeOK && strings.Contains(strings.ToLower(string(res.Body)), "already exists"):
		// lost a create race with another publisher attempt: still success
		return OutcomeExists, nil
	case res.Kind == OutcomeOK:
		return "", fmt.Errorf("provision %s: create status %d: %w", name, res.Code, ErrRemoteUnavailable)
	default:
		return "", fmt.Errorf("provision %s: create: %w", name, res.Cause())
	}
}

func marshalPathConfig() []byte {
	b, _ := json.Marshal(pathConfig{
		Source:            "publisher",
		SourceOnDemand:    false,
		OverridePublisher: true,
		Record:            false,
	})
	return b
}

// warmup probes the fallback surface right after a create so the first real
// viewer does not pay the cold-start. Failure here never downgrades the
// Created result.
func (p *Provisioner) warmup(name domain.StreamName) {
	res := p.client.Call(context.Background(), p.probeTimeout, http.MethodGet, p.PlaybackURL(name), "", nil)
	if !res.Success() {
		log.Debug().Str("module", "media.provisioner").
			Str("stream", string(name)).
			Int("status", res.Code).
			Msg("fallback warmup probe failed")
		return
	}
	log.Debug().Str("module", "media.provisioner").Str("stream", string(name)).Msg("fallback warmed up")
}
