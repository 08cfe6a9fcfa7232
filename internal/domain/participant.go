// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"time"
)

const MaxDisplayNameLen = 64

var (
	ErrNotFound    = errors.New("not found")
	ErrEmptyID     = errors.New("participant id empty")
	ErrEmptyRoom   = errors.New("room id empty")
	ErrNameTooLong = errors.New("display name too long")
)

type (
	ParticipantID string
	ConnID        string
)

type Role string

const (
	RoleStudent Role = "student"
	RoleProctor Role = "proctor"
)

type StreamKind string

const (
	StreamCamera StreamKind = "camera"
	StreamScreen StreamKind = "screen"
)

type Participant struct {
	ID       ParticipantID `json:"id"`
	Name     string        `json:"name"`
	RoomID   RoomID        `json:"roomId"`
	Role     Role          `json:"role"`
	Status   string        `json:"status"`
	CameraOn bool          `json:"cameraOn"`
	ScreenOn bool          `json:"screenOn"`
	JoinedAt time.Time     `json:"joinedAt"`

	// Conn is a weak back-reference for reverse lookup on disconnect.
	// Confers no ownership of the transport.
	Conn ConnID `json:"-"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(id ParticipantID, name string, roomID RoomID, role Role, conn ConnID) (*Participant, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	if roomID == "" {
		return nil, ErrEmptyRoom
	}
	if len(name) > MaxDisplayNameLen {
		return nil, ErrNameTooLong
	}
	if name == "" {
		name = string(id)
	}
	return &Participant{
		ID:       id,
		Name:     name,
		RoomID:   roomID,
		Role:     role,
		Conn:     conn,
		JoinedAt: time.Now(),
	}, nil
}

// ParticipantUpdate carries only the fields present in a partial update.
type ParticipantUpdate struct {
	Status   *string `json:"status,omitempty"`
	CameraOn *bool   `json:"camera,omitempty"`
	ScreenOn *bool   `json:"screen,omitempty"`
}

func (u ParticipantUpdate) Apply(p *Participant) {
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.CameraOn != nil {
		p.CameraOn = *u.CameraOn
	}
	if u.ScreenOn != nil {
		p.ScreenOn = *u.ScreenOn
	}
}
