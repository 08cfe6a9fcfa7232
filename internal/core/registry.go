package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/proctorlab/Proctor/internal/domain"
)

// connEntry tracks one live connection. RoomID/Role/PID are filled on join
// and form the ConnectionBinding used for reverse lookup on disconnect.
type connEntry struct {
	Conn   SignalConnection
	RoomID domain.RoomID
	Role   domain.Role
	PID    domain.ParticipantID
}

// PeerSnap is a read-only view of a room member's transport endpoint.
type PeerSnap struct {
	Conn domain.ConnID
	Sig  SignalConnection
}

type RoomInfo struct {
	ID           domain.RoomID `json:"id"`
	StudentCount int           `json:"studentCount"`
	ProctorCount int           `json:"proctorCount"`
}

// RosterSnapshot is what a joining caller gets back: value copies only,
// safe to hand to adapters without further locking.
type RosterSnapshot struct {
	RoomID       domain.RoomID        `json:"roomId"`
	Students     []domain.Participant `json:"students"`
	StudentCount int                  `json:"studentCount"`
	ProctorCount int                  `json:"proctorCount"`
}

// Registry owns all room and presence state: rooms with role-partitioned
// participant buckets, and connection bindings. One instance per process,
// passed by handle to everything that needs it. Every mutation is a single
// atomic step under r.mu; no I/O ever happens while the lock is held.
type Registry struct {
	mu           sync.RWMutex
	rooms        map[domain.RoomID]*domain.Room
	conns        map[domain.ConnID]*connEntry
	participants map[domain.ParticipantID]*domain.Participant
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:        make(map[domain.RoomID]*domain.Room),
		conns:        make(map[domain.ConnID]*connEntry),
		participants: make(map[domain.ParticipantID]*domain.Participant),
	}
}

// Bind registers a live connection before any join happens on it.
// Rebinding the same id overwrites; at most one entry per connection.
func (r *Registry) Bind(cid domain.ConnID, conn SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[cid] = &connEntry{Conn: conn}
	log.Info().Str("module", "core.registry").Str("conn", string(cid)).Msg("bound connection")
}

// Join inserts (or overwrites) the participant in the target room's bucket
// for its role and records the ConnectionBinding for cid. The room is
// created lazily. A re-join with the same participant id replaces the old
// record in place; the superseded connection's binding is cleared so its
// later disconnect cannot remove the fresh record.
func (r *Registry) Join(cid domain.ConnID, p *domain.Participant) RosterSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[cid]
	if !ok {
		entry = &connEntry{}
		r.conns[cid] = entry
	}
	if entry.PID != "" {
		r.removeParticipantLocked(cid, entry)
	}

	if old, ok := r.participants[p.ID]; ok {
		if oldEntry, ok := r.conns[old.Conn]; ok && oldEntry.PID == p.ID {
			oldEntry.RoomID, oldEntry.Role, oldEntry.PID = "", "", ""
		}
		if oldRoom, ok := r.rooms[old.RoomID]; ok {
			delete(oldRoom.Bucket(old.Role), p.ID)
			r.reapIfEmptyLocked(oldRoom)
		}
	}

	room, ok := r.rooms[p.RoomID]
	if !ok {
		room = domain.NewRoom(p.RoomID)
		r.rooms[p.RoomID] = room
	}
	room.Bucket(p.Role)[p.ID] = p
	r.participants[p.ID] = p
	entry.RoomID, entry.Role, entry.PID = p.RoomID, p.Role, p.ID

	log.Info().Str("module", "core.registry").
		Str("conn", string(cid)).
		Str("room", string(p.RoomID)).
		Str("role", string(p.Role)).
		Str("id", string(p.ID)).
		Msg("participant joined")
	return r.rosterLocked(room)
}

// Leave resolves the ConnectionBinding for cid and removes the bound
// participant. A second call for the same connection (or a call for a
// connection that never joined) is a no-op, not an error. The removed
// participant is returned so the caller can fan out the disconnect.
func (r *Registry) Leave(cid domain.ConnID) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[cid]
	if !ok {
		return domain.Participant{}, false
	}
	delete(r.conns, cid)
	if entry.PID == "" {
		return domain.Participant{}, false
	}
	removed := r.removeParticipantLocked(cid, entry)
	if removed == nil {
		return domain.Participant{}, false
	}
	log.Info().Str("module", "core.registry").
		Str("conn", string(cid)).
		Str("room", string(removed.RoomID)).
		Str("id", string(removed.ID)).
		Msg("participant left")
	return *removed, true
}

// removeParticipantLocked unlinks the participant bound to entry, provided
// the record still belongs to cid (a re-join may have superseded it).
func (r *Registry) removeParticipantLocked(cid domain.ConnID, entry *connEntry) *domain.Participant {
	pid := entry.PID
	entry.RoomID, entry.Role, entry.PID = "", "", ""

	p, ok := r.participants[pid]
	if !ok || p.Conn != cid {
		return nil
	}
	delete(r.participants, pid)
	if room, ok := r.rooms[p.RoomID]; ok {
		delete(room.Bucket(p.Role), pid)
		r.reapIfEmptyLocked(room)
	}
	return p
}

func (r *Registry) reapIfEmptyLocked(room *domain.Room) {
	if room.Size() == 0 {
		delete(r.rooms, room.ID)
		log.Info().Str("module", "core.registry").Str("room", string(room.ID)).Msg("reaped empty room")
	}
}

// UpdateParticipant applies only the fields present in upd. Returns
// domain.ErrNotFound if the id is not currently joined anywhere.
func (r *Registry) UpdateParticipant(id domain.ParticipantID, upd domain.ParticipantUpdate) (domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrNotFound
	}
	upd.Apply(p)
	return *p, nil
}

// Get returns a value copy of the participant, if joined.
func (r *Registry) Get(id domain.ParticipantID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// Roster returns a snapshot of the room. ok is false if the room does not
// exist (never created, or reaped after its last leave).
func (r *Registry) Roster(roomID domain.RoomID) (RosterSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return RosterSnapshot{RoomID: roomID, Students: []domain.Participant{}}, false
	}
	return r.rosterLocked(room), true
}

func (r *Registry) rosterLocked(room *domain.Room) RosterSnapshot {
	students := make([]domain.Participant, 0, len(room.Students))
	for _, p := range room.Students {
		students = append(students, *p)
	}
	return RosterSnapshot{
		RoomID:       room.ID,
		Students:     students,
		StudentCount: len(room.Students),
		ProctorCount: len(room.Proctors),
	}
}

// RoomMates returns the transport endpoints of everyone sharing a room with
// cid, excluding cid itself (notify-others semantics).
func (r *Registry) RoomMates(cid domain.ConnID) []PeerSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[cid]
	if !ok || entry.RoomID == "" {
		return nil
	}
	return r.peersLocked(entry.RoomID, cid)
}

// RoomPeers returns the transport endpoints of every connection bound to
// roomID.
func (r *Registry) RoomPeers(roomID domain.RoomID) []PeerSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peersLocked(roomID, "")
}

func (r *Registry) peersLocked(roomID domain.RoomID, skip domain.ConnID) []PeerSnap {
	out := make([]PeerSnap, 0, len(r.conns))
	for cid, e := range r.conns {
		if e.RoomID != roomID || cid == skip || e.Conn == nil {
			continue
		}
		out = append(out, PeerSnap{Conn: cid, Sig: e.Conn})
	}
	return out
}

// RoomOf resolves the binding for cid.
func (r *Registry) RoomOf(cid domain.ConnID) (domain.RoomID, domain.Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[cid]
	if !ok || entry.RoomID == "" {
		return "", "", false
	}
	return entry.RoomID, entry.Role, true
}

// Rooms lists all live rooms with derived per-role counts.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for id, room := range r.rooms {
		out = append(out, RoomInfo{ID: id, StudentCount: len(room.Students), ProctorCount: len(room.Proctors)})
	}
	return out
}

// Counts derives process-wide totals by walking the maps; kept as a cheap
// query instead of separately-mutated counters that can drift.
func (r *Registry) Counts() (rooms, students, proctors int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		students += len(room.Students)
		proctors += len(room.Proctors)
	}
	return len(r.rooms), students, proctors
}
