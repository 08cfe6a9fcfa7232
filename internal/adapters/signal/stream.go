package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/proctorlab/Proctor/internal/domain"
)

type streamEvent struct {
	Type       string `json:"type"`
	StudentID  string `json:"studentId"`
	StreamType string `json:"streamType"`
	StreamName string `json:"streamName,omitempty"`
	ViewURL    string `json:"viewUrl,omitempty"`
}

// handleStreamPublished relays the event verbatim to the sender's room,
// defaulting the locator fields when the sender omitted them.
func (ctl *Controller) handleStreamPublished(cid domain.ConnID, conn *WsConn, data []byte) {
	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad stream-published payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if ev.StudentID == "" || ev.StreamType == "" {
		ctl.sendError(conn, "missing studentId or streamType")
		return
	}

	if ev.StreamName == "" {
		ev.StreamName = string(domain.StreamNameFor(
			domain.ParticipantID(ev.StudentID),
			domain.StreamKind(ev.StreamType),
		))
	}
	if ev.ViewURL == "" && ctl.Locator != nil {
		ev.ViewURL = ctl.Locator.PlaybackURL(domain.StreamName(ev.StreamName))
	}

	log.Info().Str("module", "signal").
		Str("conn", string(cid)).
		Str("stream", ev.StreamName).
		Msg("stream published")
	ctl.Presence.Relay(cid, ev)
}

func (ctl *Controller) handleStreamStopped(cid domain.ConnID, conn *WsConn, data []byte) {
	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad stream-stopped payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if ev.StudentID == "" || ev.StreamType == "" {
		ctl.sendError(conn, "missing studentId or streamType")
		return
	}

	log.Info().Str("module", "signal").
		Str("conn", string(cid)).
		Str("student", ev.StudentID).
		Str("kind", ev.StreamType).
		Msg("stream stopped")
	ctl.Presence.Relay(cid, ev)
}
