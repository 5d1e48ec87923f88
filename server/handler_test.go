package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alimasry/go-collab-tree/model"
	"github.com/alimasry/go-collab-tree/ot"
	"github.com/alimasry/go-collab-tree/store"
)

func setupTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	st := store.NewMemoryStore()
	hub := NewHub(st, &ot.JupiterEngine{})
	go hub.Run()
	server := httptest.NewServer(NewHandler(hub))
	t.Cleanup(server.Close)
	return server, hub
}

func wsConnect(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWsMsg(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func TestHandler_WebSocketConnect(t *testing.T) {
	server, _ := setupTestServer(t)
	conn := wsConnect(t, server)

	// Send join message
	if err := conn.WriteJSON(ClientMessage{Type: MsgJoin, DocID: "test-doc"}); err != nil {
		t.Fatal(err)
	}

	// Read doc response
	resp := readWsMsg(t, conn)
	expectType(t, resp, MsgDoc)
	if resp.Snapshot == nil {
		t.Fatal("doc message without snapshot")
	}
}

func TestHandler_InvalidMessages(t *testing.T) {
	server, _ := setupTestServer(t)
	conn := wsConnect(t, server)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"op","ops":[{"type":"teleport"}]}`))
	expectType(t, readWsMsg(t, conn), MsgError)

	conn.WriteJSON(ClientMessage{Type: MsgOp})
	if msg := readWsMsg(t, conn); msg.Message != "not joined to a document" {
		t.Errorf("message = %q", msg.Message)
	}

	conn.WriteJSON(ClientMessage{Type: "shout"})
	expectType(t, readWsMsg(t, conn), MsgError)
}

func TestHandler_TwoClientsCollaborate(t *testing.T) {
	server, _ := setupTestServer(t)
	conn1 := wsConnect(t, server)
	conn2 := wsConnect(t, server)

	// c1 joins
	conn1.WriteJSON(ClientMessage{Type: MsgJoin, DocID: "collab"})
	doc1 := readWsMsg(t, conn1)
	expectType(t, doc1, MsgDoc)

	// c2 joins
	conn2.WriteJSON(ClientMessage{Type: MsgJoin, DocID: "collab"})
	doc2 := readWsMsg(t, conn2)
	expectType(t, doc2, MsgDoc)

	// c1 gets join notification for c2
	expectType(t, readWsMsg(t, conn1), MsgJoin)

	// c1 types into the seeded empty paragraph.
	local, err := ot.LoadDocument(*doc1.Snapshot)
	if err != nil {
		t.Fatal(err)
	}
	b, err := local.Change(func(w *ot.Writer) error {
		return w.InsertText(model.NewPosition(RootName, 0, 0), "hello", nil)
	})
	if err != nil {
		t.Fatal(err)
	}
	conn1.WriteJSON(ClientMessage{Type: MsgOp, DocID: "collab", Revision: doc1.Revision, BatchID: b.ID, Ops: b.Operations})

	ack := readWsMsg(t, conn1)
	expectType(t, ack, MsgAck)
	if ack.BatchID != b.ID {
		t.Errorf("ack batchId = %q, want %q", ack.BatchID, b.ID)
	}

	// c2 gets the broadcast op and converges.
	broadcast := readWsMsg(t, conn2)
	expectType(t, broadcast, MsgOp)
	remote, err := ot.LoadDocument(*doc2.Snapshot)
	if err != nil {
		t.Fatal(err)
	}
	for _, op := range broadcast.Ops {
		if _, err := remote.Apply(op); err != nil {
			t.Fatal(err)
		}
	}
	if got := remote.Stringify(RootName); got != "<paragraph>hello</paragraph>" {
		t.Errorf("c2 content = %s", got)
	}

	// The persisted state is served over HTTP.
	resp, err := http.Get(server.URL + "/docs/collab")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var view DocumentView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.Version != 1 || view.Content != "<paragraph>hello</paragraph>" {
		t.Errorf("view = %+v", view)
	}
}

func TestHandler_Documents(t *testing.T) {
	server, hub := setupTestServer(t)
	for _, id := range []string{"b", "a"} {
		doc, _ := ot.SeedDocument(RootName, "<paragraph></paragraph>")
		hub.store.Create(ctx(), id, doc.Snapshot())
	}

	resp, err := http.Get(server.URL + "/docs")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var docs []DocumentSummary
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].ID != "a" || docs[1].ID != "b" {
		t.Errorf("docs = %+v", docs)
	}

	missing, err := http.Get(server.URL + "/docs/nope")
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", missing.StatusCode)
	}
}
