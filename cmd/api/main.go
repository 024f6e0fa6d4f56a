package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lordre.org/internal/admin"
	"lordre.org/internal/config"
	"lordre.org/internal/feed"
	"lordre.org/internal/history"
	"lordre.org/internal/httpapi"
	"lordre.org/internal/identity"
	"lordre.org/internal/member"
	"lordre.org/internal/obs"
	"lordre.org/internal/store/pg"
	"lordre.org/internal/systemstate"
)

var version = "0.3.1"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	secret := cfg.Auth.TokenSecret
	if secret == "" {
		log.Fatal("missing ORDRE_AUTH_SECRET")
	}

	tokens, err := identity.NewTokens(secret, cfg.Auth.TokenIssuer, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	var (
		ready    httpapi.ReadyProbe
		accounts identity.AccountStore
		profiles member.ProfileStore
		roles    member.RoleStore
		stateSt  systemstate.Store
		histSt   history.Store
	)
	if cfg.Database.DSN != "" {
		store, err := pg.Open(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()
		db := store.DB()
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		ready = httpapi.ReadyProbe{Backend: store}

		accounts = store.Accounts()
		profiles = store
		roles = store
		stateSt = store
		histSt = store
	} else {
		// Storeless dev mode: everything in memory, seeded with a
		// guardian so the admin surface is usable out of the box.
		log.Print("ORDRE_PG_DSN not set, running with in-memory stores")
		mem := member.NewInMemory()
		accs := identity.NewInMemory()
		accs.OnDelete = func(userID string) { mem.DeleteCascade(context.Background(), userID) }
		st := systemstate.NewInMemory()
		hist := history.NewInMemory()
		seedDev(accs, mem, st)
		accounts = accs
		profiles = mem
		roles = mem
		stateSt = st
		histSt = hist
	}

	idp := identity.NewDirectory(accounts, tokens)
	live := feed.New()
	histLog := history.NewLogger(histSt,
		history.WithNotifier(live),
		history.WithQueryCap(cfg.History.QueryCap),
	)
	resolver := member.NewResolver(roles)
	stateMgr := systemstate.NewManager(stateSt, roles, histLog)
	adminSvc := admin.NewService(idp, profiles, roles, histLog)

	api := httpapi.New(httpapi.Deps{
		Ready:    ready,
		Version:  version,
		Identity: idp,
		Resolver: resolver,
		Profiles: profiles,
		Roles:    roles,
		State:    stateMgr,
		History:  histLog,
		Admin:    adminSvc,
		Feed:     live,
		Server:   cfg.Server,
		CORS:     cfg.CORS,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	log.Printf("Starting lordre-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	obs.SetReady(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

// seedDev mirrors the SQL bootstrap seed for the in-memory mode.
func seedDev(accs *identity.InMemory, mem *member.InMemory, st *systemstate.InMemory) {
	ctx := context.Background()
	hash, err := identity.HashPassword("change-me-now")
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	guardianID := "00000000-0000-0000-0000-000000000001"
	if err := accs.Create(ctx, &identity.Account{
		ID:           guardianID,
		Email:        "gardien@lordre.org",
		PasswordHash: hash,
	}); err != nil {
		log.Fatalf("seed account: %v", err)
	}
	if err := mem.Create(ctx, &member.Profile{
		ID:        guardianID,
		Pseudonym: "Ombre",
		Grade:     member.GradeOracle,
		Status:    member.StatusActive,
	}); err != nil {
		log.Fatalf("seed profile: %v", err)
	}
	if err := mem.Assign(ctx, guardianID, member.RoleGuardianSupreme); err != nil {
		log.Fatalf("seed role: %v", err)
	}
	st.Seed(systemstate.State{
		Alert:     systemstate.AlertNormal,
		ChangedBy: guardianID,
		ChangedAt: time.Now().UTC(),
	})
}
