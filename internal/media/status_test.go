package media

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newTestReconciler(t *testing.T, f *fakeMediaServer) *Reconciler {
	t.Helper()
	prov, srv := newTestProvisioner(t, f)
	return NewReconciler(NewClient(), prov, srv.URL, 2*time.Second, 500*time.Millisecond)
}

func TestStatus_ReadyStreamWithReachableFallback(t *testing.T) {
	f := newFakeMediaServer()
	f.listBody = `{"items":[{"name":"s1_camera","ready":true,"tracks":["H264","Opus"],"bytesReceived":4096}]}`
	rec := newTestReconciler(t, f)

	st := rec.Status(context.Background(), "s1_camera")
	if !st.Exists || !st.Ready {
		t.Fatalf("exists=%v ready=%v, want both true", st.Exists, st.Ready)
	}
	if !st.FallbackReachable {
		t.Error("fallback probe should have succeeded")
	}
	if !strings.Contains(st.FallbackURL, "s1_camera") {
		t.Errorf("fallback locator %q does not reference the stream", st.FallbackURL)
	}
	if st.CreateURL != "" {
		t.Errorf("present stream must not carry a create hint, got %q", st.CreateURL)
	}
	if len(st.Tracks) != 2 || st.BytesReceived != 4096 {
		t.Errorf("path details not carried over: %+v", st)
	}
}

func TestStatus_AbsentStreamGetsCreateHint(t *testing.T) {
	f := newFakeMediaServer()
	f.listBody = `{"items":[{"name":"other_screen","ready":true}]}`
	rec := newTestReconciler(t, f)

	st := rec.Status(context.Background(), "s1_camera")
	if st.Exists || st.Ready || st.FallbackReachable {
		t.Fatalf("absent stream reported as live: %+v", st)
	}
	if !strings.Contains(st.CreateURL, "s1_camera") {
		t.Errorf("create hint %q does not reference the stream", st.CreateURL)
	}
}

func TestStatus_UnreachableFallbackIsData(t *testing.T) {
	f := newFakeMediaServer()
	f.listBody = `{"items":[{"name":"s1_camera","ready":true}]}`
	f.hlsStatus = 404
	rec := newTestReconciler(t, f)

	st := rec.Status(context.Background(), "s1_camera")
	if !st.Exists || !st.Ready {
		t.Fatalf("path list entry ignored: %+v", st)
	}
	if st.FallbackReachable {
		t.Error("dead fallback surface reported reachable")
	}
}

func TestStatus_ListOutageNeverRaises(t *testing.T) {
	f := newFakeMediaServer()
	// empty listBody makes the fake serve 500 for /v3/paths/list
	rec := newTestReconciler(t, f)

	st := rec.Status(context.Background(), "s1_camera")
	if st.Exists || st.Ready || st.FallbackReachable {
		t.Fatalf("outage reported as a live stream: %+v", st)
	}
	if st.CreateURL == "" {
		t.Error("unknown stream should still carry a create hint")
	}
}

func TestStatus_MalformedListPayload(t *testing.T) {
	f := newFakeMediaServer()
	f.listBody = `not json at all`
	rec := newTestReconciler(t, f)

	st := rec.Status(context.Background(), "s1_camera")
	if st.Exists {
		t.Fatalf("garbage payload parsed into a live stream: %+v", st)
	}
}
