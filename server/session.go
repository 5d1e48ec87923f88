package server

import (
	"context"
	"errors"
	"log"

	"github.com/alimasry/go-collab-tree/ot"
	"github.com/alimasry/go-collab-tree/store"
)

type opMessage struct {
	client *Client
	msg    ClientMessage
}

// Session manages collaboration for a single document.
// All operations are serialized through a single goroutine.
type Session struct {
	docID   string
	doc     *ot.Document
	engine  ot.Engine
	store   store.DocumentStore
	clients map[*Client]bool

	// A snapshot is stored every snapshotInterval versions and when the
	// last client leaves.
	snapshotInterval int
	snapshotVersion  int

	// unstored holds applied operations the store has not accepted yet,
	// oldest first. They are retried before anything newer is stored.
	unstored []ot.Operation

	incoming chan opMessage
	join     chan *Client
	leave    chan *Client
	stop     chan struct{}
}

func newSession(docID string, doc *ot.Document, engine ot.Engine, st store.DocumentStore, snapshotInterval int) *Session {
	return &Session{
		docID:            docID,
		doc:              doc,
		engine:           engine,
		store:            st,
		clients:          make(map[*Client]bool),
		snapshotInterval: snapshotInterval,
		snapshotVersion:  doc.History().BaseVersion(),
		incoming:         make(chan opMessage, 64),
		join:             make(chan *Client, 16),
		leave:            make(chan *Client, 16),
		stop:             make(chan struct{}),
	}
}

// Run is the session's main loop. It serializes all operations.
func (s *Session) Run() {
	for {
		select {
		case c := <-s.join:
			s.handleJoin(c)
		case c := <-s.leave:
			s.handleLeave(c)
		case om := <-s.incoming:
			s.handleOp(om)
		case <-s.stop:
			return
		}
	}
}

func (s *Session) handleJoin(c *Client) {
	s.clients[c] = true
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	// Send current document state to the joining client.
	s.sendDoc(c)

	// Notify other clients about the new user.
	for other := range s.clients {
		if other != c {
			other.sendMsg(ServerMessage{
				Type:     MsgJoin,
				ClientID: c.ID,
				Name:     c.Name,
				Color:    c.Color,
			})
		}
	}
}

func (s *Session) sendDoc(c *Client) {
	snap := s.doc.Snapshot()
	c.sendMsg(ServerMessage{
		Type:     MsgDoc,
		DocID:    s.docID,
		Snapshot: &snap,
		Revision: s.doc.Version(),
		Clients:  s.clientInfos(),
	})
}

func (s *Session) handleLeave(c *Client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	close(c.send)

	// Notify others.
	for other := range s.clients {
		other.sendMsg(ServerMessage{
			Type:     MsgLeave,
			ClientID: c.ID,
		})
	}
	if len(s.clients) == 0 {
		s.saveSnapshot()
	}
}

func (s *Session) handleOp(om opMessage) {
	// Rebase the client's batch onto everything it has not seen.
	incoming, missed, err := s.engine.TransformIncoming(om.msg.Ops, om.msg.Revision, s.doc)
	if err != nil {
		log.Printf("session %s: transform error: %v", s.docID, err)
		om.client.sendError("transform error: " + err.Error())
		if errors.Is(err, ot.ErrVersionMismatch) {
			s.sendDoc(om.client)
		}
		return
	}

	// Apply to the document.
	for _, op := range incoming {
		if _, err := s.doc.Apply(op); err != nil {
			log.Printf("session %s: apply error: %v", s.docID, err)
			om.client.sendError("apply error: " + err.Error())
			s.resync()
			return
		}
	}

	// Persist. The batch is acked even when the store lags behind; the
	// operations stay queued until it takes them.
	s.unstored = append(s.unstored, incoming...)
	s.persist()
	if s.doc.Version()-s.snapshotVersion >= s.snapshotInterval {
		s.saveSnapshot()
	}

	// Ack the sender with what it missed.
	om.client.sendMsg(ServerMessage{
		Type:     MsgAck,
		Revision: s.doc.Version(),
		BatchID:  om.msg.BatchID,
		Ops:      missed,
	})

	if len(incoming) == 0 {
		return
	}
	// Broadcast to other clients.
	for c := range s.clients {
		if c != om.client {
			c.sendMsg(ServerMessage{
				Type:     MsgOp,
				DocID:    s.docID,
				Revision: s.doc.Version(),
				BatchID:  om.msg.BatchID,
				Ops:      incoming,
				ClientID: om.client.ID,
			})
		}
	}
}

// resync throws away the in-memory document after a failed apply and
// reloads the persisted state. The failed batch was never stored nor
// broadcast, but operations the store still lacks are lost with it, so every
// client gets the reloaded document.
func (s *Session) resync() {
	s.persist()
	if len(s.unstored) > 0 {
		log.Printf("session %s: dropping %d unstored operations", s.docID, len(s.unstored))
		s.unstored = nil
	}
	doc, err := store.Load(context.Background(), s.store, s.docID)
	if err != nil {
		log.Printf("session %s: resync failed: %v", s.docID, err)
		return
	}
	s.doc = doc
	log.Printf("session %s: resynced at v%d", s.docID, doc.Version())
	for c := range s.clients {
		s.sendDoc(c)
	}
}

// persist hands queued operations to the store in order and stops at the
// first failure.
func (s *Session) persist() {
	ctx := context.Background()
	for len(s.unstored) > 0 {
		op := s.unstored[0]
		if err := s.store.AppendOperation(ctx, s.docID, op, op.BaseVersion()+1); err != nil {
			log.Printf("session %s: persist op v%d: %v; %d operations queued", s.docID, op.BaseVersion()+1, err, len(s.unstored))
			return
		}
		s.unstored = s.unstored[1:]
	}
}

// saveSnapshot stores the current state once the operation log has caught
// up with it.
func (s *Session) saveSnapshot() {
	if s.doc.Version() == s.snapshotVersion || s.doc.Corrupted() != nil {
		return
	}
	if s.persist(); len(s.unstored) > 0 {
		return
	}
	if err := s.store.UpdateSnapshot(context.Background(), s.docID, s.doc.Snapshot()); err != nil {
		log.Printf("session %s: snapshot v%d: %v", s.docID, s.doc.Version(), err)
		return
	}
	s.snapshotVersion = s.doc.Version()
}

func (s *Session) clientInfos() []ClientInfo {
	infos := make([]ClientInfo, 0, len(s.clients))
	for c := range s.clients {
		infos = append(infos, c.Info())
	}
	return infos
}
