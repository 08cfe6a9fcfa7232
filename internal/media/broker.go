package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/proctorlab/Proctor/internal/domain"
)

var (
	// ErrEmptyOffer is a validation failure: nothing was sent upstream.
	ErrEmptyOffer = errors.New("offer payload empty")

	// ErrNoTransport means both the primary negotiation and the fallback
	// provisioning failed; this is the only publish outcome surfaced as an
	// error to the publishing client.
	ErrNoTransport = errors.New("no usable transport")
)

// PublishResult is the outcome of one publish attempt. Primary carries the
// verbatim answer payload; otherwise the attempt concluded as a degraded
// success and FallbackURL points at the provisioned fallback path, with
// Reason recording why the primary transport was skipped.
type PublishResult struct {
	Primary     bool
	Answer      []byte
	FallbackURL string
	Reason      string
}

// Broker executes the publish handshake for one stream: a bounded-time
// attempt against the primary transport, with fallback provisioning when
// that attempt fails or times out. A primary failure alone is never visible
// to the publisher; a hard error means both transports are down.
type Broker struct {
	client   *Client
	prov     *Provisioner
	whipBase string
	timeout  time.Duration
}

func NewBroker(client *Client, prov *Provisioner, whipBase string, timeout time.Duration) *Broker {
	return &Broker{
		client:   client,
		prov:     prov,
		whipBase: strings.TrimRight(whipBase, "/"),
		timeout:  timeout,
	}
}

// Publish negotiates the stream with the primary transport under the
// configured deadline. The offer is opaque and forwarded verbatim; so is
// the answer. The attempt always terminates: answered, degraded, or failed.
func (b *Broker) Publish(ctx context.Context, name domain.StreamName, offer string) (*PublishResult, error) {
	if strings.TrimSpace(offer) == "" {
		return nil, ErrEmptyOffer
	}

	url := fmt.Sprintf("%s/%s/whip", b.whipBase, name)
	res := b.client.Call(ctx, b.timeout, http.MethodPost, url, "application/sdp", []byte(offer))
	if res.Success() {
		// Fallback viewers may still show up later; make sure the path is
		// known even though the primary answered. Best effort only.
		go func() {
			if _, err := b.prov.Ensure(context.Background(), name); err != nil {
				log.Debug().Str("module", "media.broker").Str("stream", string(name)).Err(err).Msg("deferred ensure failed")
			}
		}()
		log.Info().Str("module", "media.broker").Str("stream", string(name)).Msg("primary transport answered")
		return &PublishResult{Primary: true, Answer: res.Body}, nil
	}

	reason := primaryFailureReason(res)
	log.Warn().Str("module", "media.broker").
		Str("stream", string(name)).
		Str("reason", reason).
		Msg("primary transport unusable, provisioning fallback")

	if _, err := b.prov.Ensure(ctx, name); err != nil {
		return nil, fmt.Errorf("%w: primary: %s; fallback: %v", ErrNoTransport, reason, err)
	}
	return &PublishResult{
		FallbackURL: b.prov.PlaybackURL(name),
		Reason:      reason,
	}, nil
}

// Subscribe is a pass-through negotiation for viewers on the primary
// transport. No fallback branch: a viewer who cannot negotiate simply
// polls the status endpoint and switches to fallback playback itself.
func (b *Broker) Subscribe(ctx context.Context, name domain.StreamName, offer string) ([]byte, error) {
	if strings.TrimSpace(offer) == "" {
		return nil, ErrEmptyOffer
	}
	url := fmt.Sprintf("%s/%s/whep", b.whipBase, name)
	res := b.client.Call(ctx, b.timeout, http.MethodPost, url, "application/sdp", []byte(offer))
	if res.Success() {
		return res.Body, nil
	}
	if res.Kind == OutcomeOK {
		return nil, fmt.Errorf("subscribe %s: status %d: %w", name, res.Code, ErrRemoteUnavailable)
	}
	return nil, fmt.Errorf("subscribe %s: %w", name, res.Cause())
}

func primaryFailureReason(res CallResult) string {
	switch res.Kind {
	case OutcomeTimedOut:
		return "negotiation deadline exceeded"
	case OutcomeFailed:
		return fmt.Sprintf("negotiation failed: %v", res.Err)
	default:
		return fmt.Sprintf("negotiation rejected: status %d", res.Code)
	}
}
