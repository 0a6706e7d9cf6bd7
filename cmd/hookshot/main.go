// Command hookshot runs the webhook receiver: it loads a server TOML,
// starts the task manager, and serves the chi router built by
// internal/ingress — load config, assemble router with middleware,
// listen, drain on signal, with the queues given a chance to finish
// their in-flight tasks before the process exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hookshot/hookshot/internal/config"
	"github.com/hookshot/hookshot/internal/deploytask"
	"github.com/hookshot/hookshot/internal/ingress"
	"github.com/hookshot/hookshot/internal/notifier"
	"github.com/hookshot/hookshot/internal/taskmanager"
)

const usage = `hookshot: a single-host git webhook deploy receiver

Usage:
  hookshot --config <file>
  hookshot -c <file>

Flags:
  -c, --config <file>   path to the server TOML config
  -h, --help             print this message and exit
`

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the server TOML config")
	flag.StringVar(&configPath, "c", "", "path to the server TOML config (shorthand)")
	help := flag.Bool("help", false, "print usage")
	flag.BoolVar(help, "h", false, "print usage (shorthand)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if *help {
		fmt.Print(usage)
		os.Exit(0)
	}

	cliCfg, err := config.LoadCLIConfig()
	if err != nil {
		log.Fatalf("hookshot: could not read environment: %v", err)
	}

	if configPath == "" {
		configPath = cliCfg.ConfigPath
	}
	if configPath == "" {
		log.Fatal("hookshot: no config file given; pass --config or set HOOKSHOT_CONFIG")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("hookshot: could not load %s: %v", configPath, err)
	}

	insecure := cliCfg.IsInsecure()
	if insecure {
		log.Println("!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!")
		log.Println("!! HOOKSHOT_INSECURE is set: signature verification is DISABLED !!")
		log.Println("!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!")
	}

	shutdownSignal := make(chan struct{}, 1)
	tasks := taskmanager.New[*deploytask.DeployTask](cfg.QueueLimit, shutdownSignal)

	server := &ingress.Server{
		Config:   cfg,
		Tasks:    tasks,
		Notify:   notifier.New(),
		Insecure: insecure,
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/", server.Router())

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.Printf("hookshot: listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("hookshot: server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("hookshot: shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("hookshot: error during HTTP shutdown: %v", err)
	}

	tasks.Shutdown()
	<-shutdownSignal

	log.Println("hookshot: shutdown complete")
}
