package media

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func newTestBroker(t *testing.T, f *fakeMediaServer, timeout time.Duration) *Broker {
	t.Helper()
	prov, srv := newTestProvisioner(t, f)
	return NewBroker(NewClient(), prov, srv.URL, timeout)
}

func TestPublish_PrimaryAnswered(t *testing.T) {
	f := newFakeMediaServer()
	f.whipAnswer = "ANSWER"
	broker := newTestBroker(t, f, 2*time.Second)

	res, err := broker.Publish(context.Background(), "s1_camera", "v=0 OFFER")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !res.Primary {
		t.Fatal("expected a primary answer")
	}
	if string(res.Answer) != "ANSWER" {
		t.Errorf("answer = %q, want ANSWER", res.Answer)
	}
	if res.FallbackURL != "" {
		t.Errorf("primary success must not carry a fallback locator, got %q", res.FallbackURL)
	}
}

func TestPublish_TimeoutFallsBack(t *testing.T) {
	f := newFakeMediaServer()
	f.whipDelay = 2 * time.Second
	broker := newTestBroker(t, f, 150*time.Millisecond)

	start := time.Now()
	res, err := broker.Publish(context.Background(), "s1_screen", "v=0 OFFER")
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("a primary timeout alone must not surface as an error: %v", err)
	}
	if elapsed > time.Second {
		t.Errorf("publish took %v, the deadline did not fire", elapsed)
	}
	if res.Primary {
		t.Fatal("expected a degraded success, got primary")
	}
	if !strings.Contains(res.FallbackURL, "s1_screen") {
		t.Errorf("fallback locator %q does not reference the stream", res.FallbackURL)
	}
	if !strings.Contains(res.Reason, "deadline") {
		t.Errorf("reason %q should record the timeout", res.Reason)
	}
}

func TestPublish_RejectionFallsBack(t *testing.T) {
	f := newFakeMediaServer()
	f.whipStatus = http.StatusInternalServerError
	broker := newTestBroker(t, f, time.Second)

	res, err := broker.Publish(context.Background(), "s2_camera", "v=0 OFFER")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if res.Primary || res.FallbackURL == "" {
		t.Errorf("expected degraded success, got %+v", res)
	}
	if f.creates.Load() != 1 {
		t.Errorf("fallback path should have been provisioned once, got %d creates", f.creates.Load())
	}
}

func TestPublish_EmptyOfferNoRemoteCalls(t *testing.T) {
	f := newFakeMediaServer()
	broker := newTestBroker(t, f, time.Second)

	for _, offer := range []string{"", "   \n\t "} {
		_, err := broker.Publish(context.Background(), "s1_camera", offer)
		if !errors.Is(err, ErrEmptyOffer) {
			t.Errorf("offer %q: expected ErrEmptyOffer, got %v", offer, err)
		}
	}
	if f.whipCalls.Load() != 0 || f.creates.Load() != 0 {
		t.Errorf("validation failure performed remote calls: whip=%d creates=%d", f.whipCalls.Load(), f.creates.Load())
	}
}

func TestPublish_BothTransportsDown(t *testing.T) {
	f := newFakeMediaServer()
	f.whipStatus = http.StatusInternalServerError
	f.getStatus = http.StatusInternalServerError
	broker := newTestBroker(t, f, time.Second)

	_, err := broker.Publish(context.Background(), "s3_camera", "v=0 OFFER")
	if !errors.Is(err, ErrNoTransport) {
		t.Fatalf("expected ErrNoTransport, got %v", err)
	}
	// both underlying causes travel with the error for diagnostics
	if !strings.Contains(err.Error(), "primary") || !strings.Contains(err.Error(), "fallback") {
		t.Errorf("error %q should carry both causes", err)
	}
}

func TestSubscribe_PassThrough(t *testing.T) {
	f := newFakeMediaServer()
	f.whipAnswer = "VIEW-ANSWER"
	broker := newTestBroker(t, f, time.Second)

	answer, err := broker.Subscribe(context.Background(), "s1_camera", "v=0 OFFER")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if string(answer) != "VIEW-ANSWER" {
		t.Errorf("answer = %q", answer)
	}
}

func TestSubscribe_NoFallbackBranch(t *testing.T) {
	f := newFakeMediaServer()
	f.whipStatus = http.StatusInternalServerError
	broker := newTestBroker(t, f, time.Second)

	_, err := broker.Subscribe(context.Background(), "s1_camera", "v=0 OFFER")
	if !errors.Is(err, ErrRemoteUnavailable) {
		t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
	}
	if f.creates.Load() != 0 {
		t.Error("subscribe must never provision a fallback path")
	}
}
