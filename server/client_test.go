package server

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/alimasry/go-collab-tree/model"
	"github.com/alimasry/go-collab-tree/ot"
)

func insertAt(version int) ot.Operation {
	return ot.NewInsertOperation(model.NewPosition(RootName, 0, 0), []*model.Node{model.NewText("x", nil)}, version)
}

func encodeClientMessage(t *testing.T, msg ClientMessage) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestCheckBatch(t *testing.T) {
	tests := []struct {
		name string
		msg  ClientMessage
		want error
	}{
		{"single operation", ClientMessage{Revision: 3, Ops: ot.Operations{insertAt(3)}}, nil},
		{"consecutive operations", ClientMessage{Revision: 3, Ops: ot.Operations{insertAt(3), insertAt(4), insertAt(5)}}, nil},
		{"no operations", ClientMessage{Revision: 3}, errEmptyBatch},
		{"first not at revision", ClientMessage{Revision: 3, Ops: ot.Operations{insertAt(4)}}, errBatchVersions},
		{"gap", ClientMessage{Revision: 3, Ops: ot.Operations{insertAt(3), insertAt(5)}}, errBatchVersions},
		{"repeated version", ClientMessage{Revision: 3, Ops: ot.Operations{insertAt(3), insertAt(3)}}, errBatchVersions},
		{"negative revision", ClientMessage{Revision: -1, Ops: ot.Operations{insertAt(-1)}}, errBatchVersions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkBatch(tt.msg)
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClient_HandleOpMessage(t *testing.T) {
	tests := []struct {
		name      string
		joined    bool
		msg       ClientMessage
		want      error
		forwarded bool
	}{
		{"valid batch", true, ClientMessage{Type: MsgOp, Revision: 0, Ops: ot.Operations{insertAt(0), insertAt(1)}}, nil, true},
		{"not joined", false, ClientMessage{Type: MsgOp, Revision: 0, Ops: ot.Operations{insertAt(0)}}, errNotJoined, false},
		{"empty batch", true, ClientMessage{Type: MsgOp, Revision: 0}, errEmptyBatch, false},
		{"out of order", true, ClientMessage{Type: MsgOp, Revision: 0, Ops: ot.Operations{insertAt(1), insertAt(0)}}, errBatchVersions, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mockClient("c1")
			s := &Session{incoming: make(chan opMessage, 1)}
			if tt.joined {
				c.session = s
			}

			err := c.handleMessage(encodeClientMessage(t, tt.msg))
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}

			select {
			case om := <-s.incoming:
				if !tt.forwarded {
					t.Fatal("rejected batch reached the session")
				}
				if om.client != c || len(om.msg.Ops) != len(tt.msg.Ops) {
					t.Errorf("forwarded %d ops from %s", len(om.msg.Ops), om.client.ID)
				}
			default:
				if tt.forwarded {
					t.Fatal("batch was not forwarded")
				}
			}
		})
	}
}

func TestClient_HandleJoinMessage(t *testing.T) {
	hub := &Hub{joinDoc: make(chan joinRequest, 1)}
	c := mockClient("c1")
	c.hub = hub

	if err := c.handleMessage(encodeClientMessage(t, ClientMessage{Type: MsgJoin, DocID: "doc1"})); err != nil {
		t.Fatal(err)
	}
	req := <-hub.joinDoc
	if req.client != c || req.docID != "doc1" {
		t.Errorf("join request = %+v", req)
	}

	c.session = &Session{}
	if err := c.handleMessage(encodeClientMessage(t, ClientMessage{Type: MsgJoin, DocID: "doc2"})); !errors.Is(err, errAlreadyJoined) {
		t.Errorf("second join: err = %v, want errAlreadyJoined", err)
	}
	if len(hub.joinDoc) != 0 {
		t.Error("second join reached the hub")
	}
}

func TestClient_HandleMalformedMessages(t *testing.T) {
	c := mockClient("c1")
	for _, data := range []string{`{"type":`, `{"type":"op","ops":[{"type":"teleport"}]}`, `{"type":"shout"}`} {
		if err := c.handleMessage([]byte(data)); err == nil {
			t.Errorf("%s: expected an error", data)
		}
	}
}
