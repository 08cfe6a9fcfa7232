package core

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/proctorlab/Proctor/internal/domain"
)

// Presence translates registry mutations into directed notifications to the
// other members of a room. Fan-out always excludes the originating
// connection; the joiner's own roster summary is sent privately.
type Presence struct {
	reg *Registry
}

func NewPresence(reg *Registry) *Presence {
	return &Presence{reg: reg}
}

type joinedEvent struct {
	Type        string             `json:"type"`
	Participant domain.Participant `json:"participant"`
}

type roomStateEvent struct {
	Type         string        `json:"type"`
	RoomID       domain.RoomID `json:"roomId"`
	StudentCount int           `json:"studentCount"`
	ProctorCount int           `json:"proctorCount"`
}

type rosterEvent struct {
	Type     string               `json:"type"`
	RoomID   domain.RoomID        `json:"roomId"`
	Students []domain.Participant `json:"students"`
}

type disconnectedEvent struct {
	Type string               `json:"type"`
	ID   domain.ParticipantID `json:"id"`
}

// OnJoin fans out participant-joined to the rest of the room and returns the
// joiner's private events: a room-state summary for everyone, plus the full
// student roster when a proctor joins (dashboards bootstrap from it).
func (p *Presence) OnJoin(cid domain.ConnID, part domain.Participant, roster RosterSnapshot) []Frame {
	p.broadcast(p.reg.RoomMates(cid), joinedEvent{Type: "participant-joined", Participant: part})

	private := []Frame{marshal(roomStateEvent{
		Type:         "room-state",
		RoomID:       roster.RoomID,
		StudentCount: roster.StudentCount,
		ProctorCount: roster.ProctorCount,
	})}
	if part.Role == domain.RoleProctor {
		private = append(private, marshal(rosterEvent{
			Type:     "roster",
			RoomID:   roster.RoomID,
			Students: roster.Students,
		}))
	}
	return private
}

// OnDisconnect broadcasts the loss of a student to the room. A proctor's
// disconnect only mutates registry state; students do not depend on
// proctors, so nothing is sent.
func (p *Presence) OnDisconnect(part domain.Participant) {
	if part.Role != domain.RoleStudent {
		return
	}
	p.broadcast(p.reg.RoomPeers(part.RoomID), disconnectedEvent{
		Type: "participant-disconnected",
		ID:   part.ID,
	})
}

// Relay is pure store-and-forward: the payload goes verbatim to every other
// connection in the sender's room. No transformation, no persistence.
func (p *Presence) Relay(from domain.ConnID, payload any) {
	p.broadcast(p.reg.RoomMates(from), payload)
}

func (p *Presence) broadcast(peers []PeerSnap, v any) {
	data := marshal(v)
	if data == nil {
		return
	}
	for _, peer := range peers {
		if err := peer.Sig.TrySend(data); err != nil {
			log.Warn().Str("module", "core.presence").
				Str("conn", string(peer.Conn)).
				Err(err).
				Msg("dropped notification")
		}
	}
}

func marshal(v any) Frame {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "core.presence").Msg("marshal event")
		return nil
	}
	return b
}
