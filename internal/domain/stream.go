package domain

// StreamName is the external media server's addressable identifier for one
// published stream, e.g. "s1_camera".
type StreamName string

func StreamNameFor(id ParticipantID, kind StreamKind) StreamName {
	return StreamName(string(id) + "_" + string(kind))
}
