package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/alimasry/go-collab-tree/model"
	"github.com/alimasry/go-collab-tree/ot"
	"github.com/alimasry/go-collab-tree/server"
	"github.com/alimasry/go-collab-tree/store"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	project := flag.String("firestore-project", "", "Firestore project ID; documents are kept in memory when empty")
	flushInterval := flag.Duration("flush-interval", 2*time.Second, "how often cached documents are flushed to Firestore")
	seed := flag.String("root", "<paragraph></paragraph>", "markup new documents start with")
	snapshotInterval := flag.Int("snapshot-interval", 50, "versions between stored snapshots")
	flag.Parse()

	if _, err := model.ParseMarkup(*seed); err != nil {
		log.Fatalf("invalid -root markup: %v", err)
	}

	var st store.DocumentStore
	var cached *store.CachedStore
	if *project != "" {
		client, err := firestore.NewClient(context.Background(), *project)
		if err != nil {
			log.Fatalf("firestore client: %v", err)
		}
		defer client.Close()
		cached = store.NewCachedStore(store.NewFirestoreStore(client), *flushInterval)
		st = cached
		log.Printf("Using Firestore project %s (flush every %s)", *project, *flushInterval)
	} else {
		st = store.NewMemoryStore()
	}

	engine := &ot.JupiterEngine{}
	hub := server.NewHub(st, engine)
	hub.Seed = *seed
	hub.SnapshotInterval = *snapshotInterval
	go hub.Run()

	srv := &http.Server{Addr: *addr, Handler: server.NewHandler(hub)}
	go func() {
		log.Printf("Starting server on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if cached != nil {
		cached.Close()
	}
	log.Printf("Server stopped")
}
