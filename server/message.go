package server

import (
	"encoding/json"

	"github.com/alimasry/go-collab-tree/ot"
)

// Message types exchanged over WebSocket.
const (
	MsgJoin  = "join"
	MsgLeave = "leave"
	MsgOp    = "op"
	MsgAck   = "ack"
	MsgDoc   = "doc"
	MsgError = "error"
)

// ClientMessage is a message from client to server.
//
// An op message carries one batch of operations created on top of Revision.
// The batch is answered with an ack; until then the client ignores op
// messages, since the ack's Ops already hold everything it missed.
type ClientMessage struct {
	Type     string        `json:"type"`
	DocID    string        `json:"docId,omitempty"`
	Revision int           `json:"revision"`
	BatchID  string        `json:"batchId,omitempty"`
	Ops      ot.Operations `json:"ops,omitempty"`
}

// ServerMessage is a message from server to client.
//
//   - doc: the full Snapshot at Revision, sent on join and on resync.
//   - ack: the sender's batch is applied; Ops are the operations it missed,
//     transformed to apply on top of its own batch. Revision is the new
//     server version.
//   - op: a batch of another client, ready to apply at Revision-len(Ops).
type ServerMessage struct {
	Type     string        `json:"type"`
	DocID    string        `json:"docId,omitempty"`
	Snapshot *ot.Snapshot  `json:"snapshot,omitempty"`
	Revision int           `json:"revision"`
	BatchID  string        `json:"batchId,omitempty"`
	Ops      ot.Operations `json:"ops,omitempty"`
	ClientID string        `json:"clientId,omitempty"`
	Name     string        `json:"name,omitempty"`
	Color    string        `json:"color,omitempty"`
	Message  string        `json:"message,omitempty"`
	Clients  []ClientInfo  `json:"clients,omitempty"`
}

// ClientInfo describes a connected user.
type ClientInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Encode serializes a ServerMessage to JSON bytes.
func (m ServerMessage) Encode() []byte {
	b, _ := json.Marshal(m)
	return b
}
