package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alimasry/go-collab-tree/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// DocumentSummary is one entry of the document listing.
type DocumentSummary struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocumentView is the persisted state of one document rendered as markup.
type DocumentView struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	Content string `json:"content"`
}

// NewHandler creates the HTTP handler with all routes.
func NewHandler(hub *Hub) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /docs", func(w http.ResponseWriter, r *http.Request) {
		docs, err := hub.store.List(r.Context())
		if err != nil {
			log.Printf("list documents: %v", err)
			http.Error(w, "failed to list documents", http.StatusInternalServerError)
			return
		}
		out := make([]DocumentSummary, len(docs))
		for i, d := range docs {
			out[i] = DocumentSummary{ID: d.ID, Version: d.Version, UpdatedAt: d.UpdatedAt}
		}
		writeJSON(w, out)
	})

	mux.HandleFunc("GET /docs/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		doc, err := store.Load(r.Context(), hub.store, id)
		if errors.Is(err, store.ErrDocumentNotFound) {
			http.Error(w, "document not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Printf("load document %q: %v", id, err)
			http.Error(w, "failed to load document", http.StatusInternalServerError)
			return
		}
		writeJSON(w, DocumentView{ID: id, Version: doc.Version(), Content: doc.Stringify(RootName)})
	})

	// WebSocket endpoint.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade error: %v", err)
			return
		}
		client := newClient(hub, conn)
		go client.WritePump()
		go client.ReadPump()
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
