// posture-server runs the posture analysis service: sessions are created and
// fed over HTTP or websocket, and completed reports are kept in sqlite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/banshee-data/posture.report/internal/api"
	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/results"
	"github.com/banshee-data/posture.report/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbPath      = flag.String("db", "posture.db", "SQLite database path; empty disables persistence")
	configFile  = flag.String("config", "", "Tuning config (.json or .yaml); reads config/tuning.defaults.json when empty")
	debug       = flag.Bool("debug", false, "Log per-frame labels and period transitions")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if flag.NArg() > 0 && flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(flag.Args()[1:], *dbPath, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	monitoring.SetDebug(*debug)

	tuning, err := loadTuning(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var database *db.DB
	opts := []results.Option{}
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		opts = append(opts, results.WithPersister(database))
	}

	store := results.NewStore(tuning.GetResultTTL(), opts...)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// expire idle sessions and unread reports
	wg.Add(1)
	go func() {
		defer wg.Done()
		store.Run(ctx, tuning.GetSweepInterval())
		log.Print("sweep routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only over loopback or Tailscale)
		if database != nil {
			if err := database.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach admin routes: %v", err)
			}
		}
		mux.Handle("/", api.NewServer(store, database, tuning).ServeMux())

		server := &http.Server{
			Addr:              *listen,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Printf("posture-server %s listening on %s", version.Version, *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// loadTuning reads the named config file. With no name it reads
// config/tuning.defaults.json when present and otherwise uses the built-in
// defaults.
func loadTuning(path string) (*config.TuningConfig, error) {
	if path != "" {
		return config.LoadTuningConfig(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); errors.Is(err, fs.ErrNotExist) {
		log.Printf("%s not found, using built-in defaults", config.DefaultConfigPath)
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(config.DefaultConfigPath)
}
