package server

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/alimasry/go-collab-tree/ot"
	"github.com/alimasry/go-collab-tree/store"
)

// RootName is the root every served document edits.
const RootName = "main"

const (
	defaultSeed             = "<paragraph></paragraph>"
	defaultSnapshotInterval = 50
)

type joinRequest struct {
	client *Client
	docID  string
}

// Hub manages document sessions and routes clients to the right session.
type Hub struct {
	store    store.DocumentStore
	engine   ot.Engine
	sessions map[string]*Session
	mu       sync.RWMutex

	// Seed is the markup new documents start with.
	Seed string
	// SnapshotInterval is how many versions a session lets pass between
	// stored snapshots.
	SnapshotInterval int

	joinDoc chan joinRequest
}

func NewHub(st store.DocumentStore, engine ot.Engine) *Hub {
	return &Hub{
		store:            st,
		engine:           engine,
		sessions:         make(map[string]*Session),
		Seed:             defaultSeed,
		SnapshotInterval: defaultSnapshotInterval,
		joinDoc:          make(chan joinRequest, 64),
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for req := range h.joinDoc {
		h.handleJoinDoc(req)
	}
}

func (h *Hub) handleJoinDoc(req joinRequest) {
	h.mu.Lock()
	s, ok := h.sessions[req.docID]
	if !ok {
		doc, err := h.loadOrCreate(context.Background(), req.docID)
		if err != nil {
			log.Printf("hub: failed to load doc %q: %v", req.docID, err)
			h.mu.Unlock()
			req.client.sendError("failed to load document")
			return
		}
		s = newSession(req.docID, doc, h.engine, h.store, h.SnapshotInterval)
		h.sessions[req.docID] = s
		go s.Run()
	}
	h.mu.Unlock()

	s.join <- req.client
}

// loadOrCreate rebuilds a stored document, or creates it from the seed
// markup when the store does not know it.
func (h *Hub) loadOrCreate(ctx context.Context, docID string) (*ot.Document, error) {
	doc, err := store.Load(ctx, h.store, docID)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, store.ErrDocumentNotFound) {
		return nil, err
	}
	doc, err = ot.SeedDocument(RootName, h.Seed)
	if err != nil {
		return nil, err
	}
	if err := h.store.Create(ctx, docID, doc.Snapshot()); err != nil {
		return nil, err
	}
	log.Printf("hub: created doc %q", docID)
	return doc, nil
}

// GetSession returns the session for a document, if active.
func (h *Hub) GetSession(docID string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[docID]
}
