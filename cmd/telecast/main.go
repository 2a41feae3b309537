// Command telecast: a personal web front end for an Xtream-style IPTV
// provider. It caches catalog data in SQLite and refreshes each
// resource on demand once it is older than the refresh TTL.
//
//	serve         Run the web UI (default command). Zero interaction after .env.
//	refresh       Refresh the cached catalog from the command line, then exit.
//	create-admin  Create an admin login for the web UI.
package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/telecast/telecast/internal/artwork"
	"github.com/telecast/telecast/internal/auth"
	"github.com/telecast/telecast/internal/catalog"
	"github.com/telecast/telecast/internal/config"
	"github.com/telecast/telecast/internal/health"
	"github.com/telecast/telecast/internal/store"
	"github.com/telecast/telecast/internal/web"
	"github.com/telecast/telecast/internal/xtream"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[telecast] ")

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveAddr := serveCmd.String("addr", "", "Listen address (default: TELECAST_LISTEN or :8080)")

	refreshCmd := flag.NewFlagSet("refresh", flag.ExitOnError)
	refreshForce := refreshCmd.Bool("force", false, "Refresh even when the cached copy is still fresh")

	adminCmd := flag.NewFlagSet("create-admin", flag.ExitOnError)
	adminUser := adminCmd.String("username", "", "Admin username")
	adminPass := adminCmd.String("password", "", "Admin password")

	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "-version" || args[0] == "--version") {
		fmt.Println("telecast", version)
		return
	}
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	cfg := config.Load()

	switch cmd {
	case "serve":
		_ = serveCmd.Parse(args)
		if *serveAddr != "" {
			cfg.Listen = *serveAddr
		}
		if err := serve(cfg); err != nil {
			log.Printf("Serve failed: %v", err)
			os.Exit(1)
		}

	case "refresh":
		_ = refreshCmd.Parse(args)
		if err := refresh(cfg, *refreshForce); err != nil {
			log.Printf("Refresh failed: %v", err)
			os.Exit(1)
		}

	case "create-admin":
		_ = adminCmd.Parse(args)
		if *adminUser == "" || *adminPass == "" {
			fmt.Fprintln(os.Stderr, "create-admin requires -username and -password")
			os.Exit(1)
		}
		if err := createAdmin(cfg, *adminUser, *adminPass); err != nil {
			log.Printf("Create admin failed: %v", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "Usage: %s <serve|refresh|create-admin> [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  serve         Run the web UI (default)\n")
		fmt.Fprintf(os.Stderr, "  refresh       Refresh cached catalog data, then exit (use -force to ignore freshness)\n")
		fmt.Fprintf(os.Stderr, "  create-admin  Create an admin login (-username, -password)\n")
		os.Exit(1)
	}
}

// buildCatalog opens the store and wires the provider client and the
// artwork cache into a catalog service.
func buildCatalog(cfg *config.Config) (*sql.DB, *catalog.Service, *artwork.Cache, error) {
	if cfg.APIBaseURL == "" || cfg.APIUser == "" || cfg.APIPass == "" {
		return nil, nil, nil, fmt.Errorf("set TELECAST_API_URL, TELECAST_API_USER and TELECAST_API_PASS (via env or .env)")
	}
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, err
	}
	art, err := artwork.New(cfg.CacheDir)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	art.Workers = cfg.PrewarmWorkers
	art.Limiter = rate.NewLimiter(rate.Limit(cfg.PrewarmRPS), 1)

	svc := &catalog.Service{
		DB:     db,
		Client: xtream.New(cfg.APIBaseURL, cfg.APIUser, cfg.APIPass),
		Art:    art,
		TTL:    cfg.RefreshTTL,
	}
	return db, svc, art, nil
}

func serve(cfg *config.Config) error {
	db, svc, art, err := buildCatalog(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	secret := cfg.SessionSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("generate session secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		log.Print("TELECAST_SESSION_SECRET not set; using an ephemeral secret (sessions reset on restart)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	if err := health.CheckProvider(checkCtx, cfg.APIBaseURL, cfg.APIUser, cfg.APIPass); err != nil {
		log.Printf("Provider check: %v (serving anyway; pages refresh once it recovers)", err)
	} else {
		log.Printf("Provider reachable at %s", cfg.APIBaseURL)
	}
	cancel()

	srv := &web.Server{
		Addr:       cfg.Listen,
		BaseURL:    cfg.BaseURL,
		MaxConns:   cfg.MaxConns,
		RequestLog: cfg.RequestLog,
		Version:    version,
		DB:         db,
		Catalog:    svc,
		Auth: &auth.Gate{
			DB:     db,
			Tokens: &auth.Tokens{Secret: []byte(secret), TTL: cfg.SessionTTL},
		},
		Art: art,
	}
	return srv.Run(ctx)
}

// refresh pulls the category lists, the three full catalogs and the
// account profile, honoring freshness unless force is set.
func refresh(cfg *config.Config, force bool) error {
	db, svc, _, err := buildCatalog(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"account info", func(ctx context.Context) error {
			_, _, err := svc.AccountInfo(ctx, force)
			return err
		}},
		{"live categories", func(ctx context.Context) error {
			_, _, err := svc.LiveCategories(ctx, force)
			return err
		}},
		{"live channels", func(ctx context.Context) error {
			_, _, err := svc.AllLiveChannels(ctx, force)
			return err
		}},
		{"series categories", func(ctx context.Context) error {
			_, _, err := svc.SeriesCategories(ctx, force)
			return err
		}},
		{"series", func(ctx context.Context) error {
			_, _, err := svc.AllSeries(ctx, force)
			return err
		}},
		{"film categories", func(ctx context.Context) error {
			_, _, err := svc.FilmCategories(ctx, force)
			return err
		}},
		{"films", func(ctx context.Context) error {
			_, _, err := svc.AllFilms(ctx, force)
			return err
		}},
	}
	start := time.Now()
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		log.Printf("Refreshed %s", step.name)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}
	log.Printf("Catalog: %d live channels, %d films, %d series (took %s)",
		stats.LiveChannels, stats.Films, stats.Series, time.Since(start).Round(time.Millisecond))
	return nil
}

func createAdmin(cfg *config.Config, username, password string) error {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user := &store.User{
		Username:       username,
		HashedPassword: hash,
		IsActive:       true,
		IsAdmin:        true,
		StreamsAccess:  true,
		SeriesAccess:   true,
		FilmsAccess:    true,
	}
	if err := store.CreateUser(context.Background(), db, user); err != nil {
		return err
	}
	log.Printf("Admin user %q created successfully.", username)
	return nil
}
