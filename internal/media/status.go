package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/proctorlab/Proctor/internal/domain"
)

// StreamStatus is a best-effort snapshot, never authoritative: it
// cross-references the media server's path list with a live probe of the
// fallback surface. Probe failures fold into FallbackReachable=false.
type StreamStatus struct {
	Name              domain.StreamName `json:"name"`
	Exists            bool              `json:"exists"`
	Ready             bool              `json:"ready"`
	FallbackReachable bool              `json:"fallbackReachable"`
	FallbackURL       string            `json:"fallbackUrl,omitempty"`
	CreateURL         string            `json:"createUrl,omitempty"`
	Tracks            []string          `json:"tracks,omitempty"`
	BytesReceived     int64             `json:"bytesReceived,omitempty"`
}

type pathListEntry struct {
	Name          string   `json:"name"`
	Ready         bool     `json:"ready"`
	Tracks        []string `json:"tracks"`
	BytesReceived int64    `json:"bytesReceived"`
}

type pathList struct {
	Items []pathListEntry `json:"items"`
}

// Reconciler answers "is this stream ready for viewing". It is a status
// query: errors are data, it never raises.
type Reconciler struct {
	client       *Client
	prov         *Provisioner
	apiBase      string
	timeout      time.Duration
	probeTimeout time.Duration
}

func NewReconciler(client *Client, prov *Provisioner, apiBase string, timeout, probeTimeout time.Duration) *Reconciler {
	return &Reconciler{
		client:       client,
		prov:         prov,
		apiBase:      strings.TrimRight(apiBase, "/"),
		timeout:      timeout,
		probeTimeout: probeTimeout,
	}
}

// Status fetches the path list once and finds name in it. Absent streams
// get a create hint locator so the caller can trigger provisioning.
func (r *Reconciler) Status(ctx context.Context, name domain.StreamName) StreamStatus {
	st := StreamStatus{
		Name:      name,
		CreateURL: fmt.Sprintf("/api/stream/%s/create", name),
	}

	listURL := fmt.Sprintf("%s/v3/paths/list", r.apiBase)
	res := r.client.Call(ctx, r.timeout, http.MethodGet, listURL, "", nil)
	if !res.Success() {
		log.Debug().Str("module", "media.status").Str("stream", string(name)).Msg("path list unavailable")
		return st
	}

	var list pathList
	if err := json.Unmarshal(res.Body, &list); err != nil {
		log.Debug().Str("module", "media.status").Err(err).Msg("bad path list payload")
		return st
	}

	for _, item := range list.Items {
		if item.Name != string(name) {
			continue
		}
		st.Exists = true
		st.Ready = item.Ready
		st.Tracks = item.Tracks
		st.BytesReceived = item.BytesReceived
		st.CreateURL = ""
		break
	}
	if !st.Exists {
		return st
	}

	st.FallbackURL = r.prov.PlaybackURL(name)
	probe := r.client.Call(ctx, r.probeTimeout, http.MethodGet, st.FallbackURL, "", nil)
	st.FallbackReachable = probe.Success()
	return st
}
