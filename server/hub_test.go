package server

import (
	"testing"
	"time"

	"github.com/alimasry/go-collab-tree/model"
	"github.com/alimasry/go-collab-tree/ot"
	"github.com/alimasry/go-collab-tree/store"
)

func TestHub_CreateSessionOnJoin(t *testing.T) {
	st := store.NewMemoryStore()
	hub := NewHub(st, &ot.JupiterEngine{})
	hub.Seed = "<heading1>Title</heading1><paragraph></paragraph>"
	go hub.Run()

	c := mockClient("c1")
	c.hub = hub
	hub.joinDoc <- joinRequest{client: c, docID: "new-doc"}

	msg := recvMsg(t, c)
	expectType(t, msg, MsgDoc)
	if msg.DocID != "new-doc" {
		t.Errorf("docId = %q, want %q", msg.DocID, "new-doc")
	}
	doc, err := ot.LoadDocument(*msg.Snapshot)
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Stringify(RootName); got != hub.Seed {
		t.Errorf("content = %s, want the seed", got)
	}

	// Session should exist
	if s := hub.GetSession("new-doc"); s == nil {
		t.Error("session not created")
	}
	// And the document was stored.
	if _, err := st.Get(ctx(), "new-doc"); err != nil {
		t.Errorf("stored document: %v", err)
	}
}

func TestHub_JoinExistingDoc(t *testing.T) {
	st := store.NewMemoryStore()
	doc, _ := ot.SeedDocument(RootName, "<paragraph>hello</paragraph>")
	st.Create(ctx(), "existing", doc.Snapshot())
	b, err := doc.Change(func(w *ot.Writer) error {
		return w.InsertText(model.NewPosition(RootName, 0, 5), " world", nil)
	})
	if err != nil {
		t.Fatal(err)
	}
	st.AppendOperation(ctx(), "existing", b.Operations[0], 1)

	hub := NewHub(st, &ot.JupiterEngine{})
	go hub.Run()

	c := mockClient("c1")
	c.hub = hub
	hub.joinDoc <- joinRequest{client: c, docID: "existing"}

	msg := recvMsg(t, c)
	expectType(t, msg, MsgDoc)
	if msg.Revision != 1 {
		t.Errorf("revision = %d, want 1", msg.Revision)
	}
	loaded, err := ot.LoadDocument(*msg.Snapshot)
	if err != nil {
		t.Fatal(err)
	}
	if got := loaded.Stringify(RootName); got != "<paragraph>hello world</paragraph>" {
		t.Errorf("content = %s", got)
	}
}

func TestHub_SameSessionForSameDoc(t *testing.T) {
	hub := NewHub(store.NewMemoryStore(), &ot.JupiterEngine{})
	go hub.Run()

	c1, c2 := mockClient("c1"), mockClient("c2")
	hub.joinDoc <- joinRequest{client: c1, docID: "d"}
	recvMsg(t, c1)
	hub.joinDoc <- joinRequest{client: c2, docID: "d"}
	msg := recvMsg(t, c2)
	if len(msg.Clients) != 2 {
		t.Errorf("got %d clients, want 2", len(msg.Clients))
	}

	deadline := time.Now().Add(time.Second)
	for {
		c1.mu.Lock()
		s1 := c1.session
		c1.mu.Unlock()
		c2.mu.Lock()
		s2 := c2.session
		c2.mu.Unlock()
		if s1 != nil && s1 == s2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("clients are not in the same session")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
