package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/selfmusic/player/internal/api"
	"github.com/selfmusic/player/internal/audio"
	"github.com/selfmusic/player/internal/config"
	"github.com/selfmusic/player/internal/player"
	"github.com/selfmusic/player/internal/playlist"
	"github.com/selfmusic/player/internal/services"
	"github.com/selfmusic/player/internal/storage"
	"github.com/selfmusic/player/pkg/types"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	debug       = flag.Bool("debug", false, "Enable debug mode - shows detailed logging for all components")
	fallbackURL = flag.String("fallback", "", "Path or URL of the bundled fallback track")
	Version     = "dev"
)

func main() {
	flag.Parse()

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		log.Println("[MAIN] Debug mode enabled")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[MAIN] Failed to load config: %v", err)
	}

	if *debug {
		cfg.Debug = true
		log.Printf("[MAIN] Configuration loaded")
		log.Printf("[MAIN] - API Base URL: %s", cfg.API.BaseURL)
		log.Printf("[MAIN] - Database Path: %s", cfg.Storage.DatabasePath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("[MAIN] Failed to open database: %v", err)
	}

	client := api.NewClient(cfg)

	recorder := services.NewPlayRecorderService(client, db, cfg.Debug)
	recorder.Start()

	manager := playlist.NewManager(db, client, cfg)
	store := player.NewStore(manager, cfg)

	output, err := audio.NewPlayer(cfg)
	if err != nil {
		log.Fatalf("[MAIN] Failed to initialize audio output: %v", err)
	}

	streamURL := func(song *types.Song) string {
		return client.StreamURL(song)
	}
	sync := player.NewSynchronizer(store, output, recorder, streamURL, cfg)
	sync.Attach(ctx)

	store.InitializePlaylist(ctx, *fallbackURL)

	setupGracefulShutdown(cancel, sync, recorder, db)

	log.Printf("[MAIN] Player %s ready", Version)
	<-ctx.Done()
}

func setupGracefulShutdown(cancel context.CancelFunc, sync *player.Synchronizer, recorder *services.PlayRecorderService, db *storage.Database) {
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)

		sig := <-c
		log.Printf("[MAIN] Received signal: %v", sig)

		recorder.Stop()
		if err := sync.Close(); err != nil {
			log.Printf("[MAIN] Failed to close synchronizer: %v", err)
		}
		if err := db.Close(); err != nil {
			log.Printf("[MAIN] Failed to close database: %v", err)
		}
		cancel()

		log.Printf("[MAIN] Shutdown complete")
		os.Exit(0)
	}()
}
