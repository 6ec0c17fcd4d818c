package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"icomnet.org/internal/httpapi"
	"icomnet.org/internal/obs"
	"icomnet.org/internal/revocation"
	"icomnet.org/internal/session"
	"icomnet.org/internal/store/pg"
	"icomnet.org/internal/token"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("ICOMNET_AUTH_SECRET")
	if secret == "" {
		log.Fatal("ICOMNET_AUTH_SECRET is required")
	}

	var tokenOpts []token.Option
	if issuer := os.Getenv("ICOMNET_ISSUER"); issuer != "" {
		tokenOpts = append(tokenOpts, token.WithIssuer(issuer))
	}
	if audience := os.Getenv("ICOMNET_AUDIENCE"); audience != "" {
		tokenOpts = append(tokenOpts, token.WithAudience(audience))
	}
	tokens, err := token.NewService([]byte(secret), tokenOpts...)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	// Stores: Postgres when a DSN is configured, in-process otherwise.
	var (
		revocations revocation.Store
		sessions    session.Store
		probe       httpapi.ReadyProbe
		pgStore     *pg.Store
	)
	if dsn := os.Getenv("ICOMNET_PG_DSN"); dsn != "" {
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		revocations = pgStore
		sessions = pgStore
		probe = httpapi.ReadyProbe{Pinger: pgStore}
	} else {
		revocations = revocation.NewMemory()
		sessions = session.NewMemoryStore()
	}

	manager, err := session.NewManager(tokens, revocations, sessions)
	if err != nil {
		log.Fatalf("session manager: %v", err)
	}

	api := httpapi.New(tokens, revocations, manager, probe, version)

	addr := os.Getenv("ICOMNET_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting icomnet-access %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
