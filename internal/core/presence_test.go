package core

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/proctorlab/Proctor/internal/domain"
)

// recConn records every frame delivered to it.
type recConn struct {
	mu     sync.Mutex
	frames []Frame
}

func (c *recConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *recConn) Close() {}

func (c *recConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("bad frame %q: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func (c *recConn) eventTypes(t *testing.T) []string {
	t.Helper()
	evs := c.events(t)
	types := make([]string, 0, len(evs))
	for _, e := range evs {
		types = append(types, e["type"].(string))
	}
	return types
}

// join wires a fake connection and replays the controller's join sequence:
// registry mutation, fan-out, private frames back to the joiner.
func join(t *testing.T, reg *Registry, pres *Presence, cid domain.ConnID, id, room string, role domain.Role) *recConn {
	t.Helper()
	conn := &recConn{}
	reg.Bind(cid, conn)
	p, err := domain.NewParticipant(domain.ParticipantID(id), "", domain.RoomID(room), role, cid)
	if err != nil {
		t.Fatalf("NewParticipant: %v", err)
	}
	roster := reg.Join(cid, p)
	for _, f := range pres.OnJoin(cid, *p, roster) {
		_ = conn.TrySend(f)
	}
	return conn
}

func TestPresence_ProctorSeesStudentLifecycle(t *testing.T) {
	reg := NewRegistry()
	pres := NewPresence(reg)

	join(t, reg, pres, "c1", "s1", "examA", domain.RoleStudent)
	proctor := join(t, reg, pres, "c2", "p1", "examA", domain.RoleProctor)

	var roster map[string]any
	for _, e := range proctor.events(t) {
		if e["type"] == "roster" {
			roster = e
		}
	}
	if roster == nil {
		t.Fatal("proctor did not receive the roster bootstrap")
	}
	students := roster["students"].([]any)
	if len(students) != 1 {
		t.Fatalf("roster students = %d, want 1", len(students))
	}
	if students[0].(map[string]any)["id"] != "s1" {
		t.Errorf("roster should contain s1: %+v", students[0])
	}

	// s1 disconnects
	part, ok := reg.Leave("c1")
	if !ok {
		t.Fatal("leave should remove s1")
	}
	pres.OnDisconnect(part)

	var gone map[string]any
	for _, e := range proctor.events(t) {
		if e["type"] == "participant-disconnected" {
			gone = e
		}
	}
	if gone == nil || gone["id"] != "s1" {
		t.Fatalf("proctor did not learn of s1's disconnect: %+v", gone)
	}

	snap, ok := reg.Roster("examA")
	if !ok || snap.StudentCount != 0 {
		t.Errorf("roster after disconnect = %+v", snap)
	}
}

func TestPresence_JoinBroadcastExcludesSender(t *testing.T) {
	reg := NewRegistry()
	pres := NewPresence(reg)

	first := join(t, reg, pres, "c1", "s1", "examA", domain.RoleStudent)
	second := join(t, reg, pres, "c2", "s2", "examA", domain.RoleStudent)

	seen := false
	for _, typ := range first.eventTypes(t) {
		if typ == "participant-joined" {
			seen = true
		}
	}
	if !seen {
		t.Error("existing member should have seen the new join")
	}

	for _, e := range second.events(t) {
		if e["type"] == "participant-joined" {
			t.Error("joiner must not receive its own join broadcast")
		}
	}
}

func TestPresence_StudentJoinerGetsNoRoster(t *testing.T) {
	reg := NewRegistry()
	pres := NewPresence(reg)

	join(t, reg, pres, "c1", "s1", "examA", domain.RoleStudent)
	student := join(t, reg, pres, "c2", "s2", "examA", domain.RoleStudent)

	sawState := false
	for _, typ := range student.eventTypes(t) {
		switch typ {
		case "room-state":
			sawState = true
		case "roster":
			t.Error("students receive only forward notifications, not the roster")
		}
	}
	if !sawState {
		t.Error("joiner should receive its private room-state summary")
	}
}

func TestPresence_ProctorDisconnectIsSilent(t *testing.T) {
	reg := NewRegistry()
	pres := NewPresence(reg)

	student := join(t, reg, pres, "c1", "s1", "examA", domain.RoleStudent)
	join(t, reg, pres, "c2", "p1", "examA", domain.RoleProctor)
	before := len(student.events(t))

	part, ok := reg.Leave("c2")
	if !ok {
		t.Fatal("leave should remove p1")
	}
	pres.OnDisconnect(part)

	if got := len(student.events(t)); got != before {
		t.Errorf("proctor disconnect broadcast something: %d -> %d events", before, got)
	}
}

func TestPresence_RelayExcludesSender(t *testing.T) {
	reg := NewRegistry()
	pres := NewPresence(reg)

	sender := join(t, reg, pres, "c1", "s1", "examA", domain.RoleStudent)
	receiver := join(t, reg, pres, "c2", "p1", "examA", domain.RoleProctor)
	outsider := join(t, reg, pres, "c3", "s9", "examB", domain.RoleStudent)

	senderBefore := len(sender.events(t))
	outsiderBefore := len(outsider.events(t))

	pres.Relay("c1", map[string]string{"type": "stream-published", "studentId": "s1"})

	found := false
	for _, e := range receiver.events(t) {
		if e["type"] == "stream-published" && e["studentId"] == "s1" {
			found = true
		}
	}
	if !found {
		t.Error("room mate did not receive the relayed event")
	}
	if len(sender.events(t)) != senderBefore {
		t.Error("relay echoed back to the sender")
	}
	if len(outsider.events(t)) != outsiderBefore {
		t.Error("relay leaked across rooms")
	}
}
