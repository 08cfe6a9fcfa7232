package domain

type RoomID string

// Room partitions its participants into role buckets. Created lazily on
// first join; the registry owns locking, Room itself is not threadsafe.
type Room struct {
	ID       RoomID
	Students map[ParticipantID]*Participant
	Proctors map[ParticipantID]*Participant
}

func NewRoom(id RoomID) *Room {
	return &Room{
		ID:       id,
		Students: make(map[ParticipantID]*Participant),
		Proctors: make(map[ParticipantID]*Participant),
	}
}

func (r *Room) Bucket(role Role) map[ParticipantID]*Participant {
	if role == RoleProctor {
		return r.Proctors
	}
	return r.Students
}

func (r *Room) Size() int {
	return len(r.Students) + len(r.Proctors)
}
