package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/proctorlab/Proctor/internal/domain"
)

type joinPayload struct {
	Type      string `json:"type"`
	StudentID string `json:"studentId,omitempty"`
	ProctorID string `json:"proctorId,omitempty"`
	RoomID    string `json:"roomId"`
	Name      string `json:"name,omitempty"`
}

func (ctl *Controller) handleJoin(cid domain.ConnID, conn *WsConn, data []byte, role domain.Role) {
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	id := p.StudentID
	if role == domain.RoleProctor {
		id = p.ProctorID
	}

	part, err := domain.NewParticipant(domain.ParticipantID(id), p.Name, domain.RoomID(p.RoomID), role, cid)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("join rejected")
		ctl.sendError(conn, err.Error())
		return
	}

	log.Info().Str("module", "signal").
		Str("conn", string(cid)).
		Str("room", p.RoomID).
		Str("role", string(role)).
		Str("id", id).
		Msg("join")

	roster := ctl.Reg.Join(cid, part)
	ctl.sendFrames(conn, ctl.Presence.OnJoin(cid, *part, roster))
}

type updatePayload struct {
	Type     string  `json:"type"`
	ID       string  `json:"id"`
	Status   *string `json:"status,omitempty"`
	CameraOn *bool   `json:"camera,omitempty"`
	ScreenOn *bool   `json:"screen,omitempty"`
}

func (ctl *Controller) handleUpdateStatus(cid domain.ConnID, conn *WsConn, data []byte) {
	var p updatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad update payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if p.ID == "" {
		ctl.sendError(conn, "missing id")
		return
	}

	part, err := ctl.Reg.UpdateParticipant(domain.ParticipantID(p.ID), domain.ParticipantUpdate{
		Status:   p.Status,
		CameraOn: p.CameraOn,
		ScreenOn: p.ScreenOn,
	})
	if err != nil {
		// benign race: the participant may already be gone
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error().Err(err).Str("module", "signal").Msg("update participant")
		}
		ctl.sendError(conn, "not_found")
		return
	}

	ctl.Presence.Relay(cid, struct {
		Type        string             `json:"type"`
		Participant domain.Participant `json:"participant"`
	}{
		Type:        "participant-updated",
		Participant: part,
	})
}

func (ctl *Controller) handlePing(conn *WsConn) {
	ctl.sendJSON(conn, map[string]string{"type": "pong"})
}
