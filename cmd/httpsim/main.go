package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/httpsim/internal/config"
	"github.com/tjfontaine/httpsim/internal/handler"
	"github.com/tjfontaine/httpsim/internal/matcher"
	"github.com/tjfontaine/httpsim/internal/proxy"
	"github.com/tjfontaine/httpsim/internal/script"
	"github.com/tjfontaine/httpsim/internal/server"
	"github.com/tjfontaine/httpsim/internal/simulator"
	"github.com/tjfontaine/httpsim/internal/storage"
	"github.com/tjfontaine/httpsim/internal/storage/memory"
	"github.com/tjfontaine/httpsim/internal/storage/sqlite"
	"github.com/tjfontaine/httpsim/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("httpsim", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var store storage.InteractionStore
	if cfg.Recording.Enabled {
		switch cfg.Storage.Type {
		case "sqlite":
			store, err = sqlite.New(cfg.Storage.SQLite.Path)
			if err != nil {
				log.Fatalf("Failed to open interaction store: %v", err)
			}
		case "memory":
			store = memory.New()
		case "none":
			// Recording requested but storage disabled; leave store nil.
		default:
			log.Fatalf("Unknown storage type %q", cfg.Storage.Type)
		}
	}

	var engine script.Engine
	switch cfg.Script.Engine {
	case "goja":
		engine = script.NewGojaEngine()
	case "none":
	default:
		log.Fatalf("Unknown script engine %q", cfg.Script.Engine)
	}

	var hooks simulator.HookRunner = noopHooks{}
	if engine != nil {
		hooks = script.NewRunner(engine, logger)
	}

	var fwd *proxy.Forwarder
	var mapper *proxy.URIMapper
	if cfg.Proxy.Enabled {
		fwd = proxy.NewForwarder(proxy.Config{
			ReadTimeout:      cfg.Proxy.ReadTimeout,
			BufferSize:       cfg.Proxy.BufferSize,
			PropagateHeaders: cfg.Proxy.PropagateHeaders,
		}, logger)
		mappings := make([]proxy.Mapping, len(cfg.Proxy.Mappings))
		for i, m := range cfg.Proxy.Mappings {
			mappings[i] = proxy.Mapping{Prefix: m.Prefix, Target: m.Target}
		}
		mapper = proxy.NewURIMapper(mappings)
	}

	h := handler.New(handler.Options{
		Root:               cfg.Simulation.Root,
		DefaultContentType: cfg.Simulation.DefaultContentType,
		Pipeline:           simulator.NewPipeline(hooks, logger),
		Matcher:            matcher.New(logger),
		Forwarder:          fwd,
		Mapper:             mapper,
		Store:              store,
		Logger:             logger,
	})

	srv := server.New(cfg.Server.Port, cfg.Server.RequestTimeout, logger)
	srv.Router.Handle("/*", h)
	srv.Start()

	logger.Info("simulator started",
		slog.Int("port", cfg.Server.Port),
		slog.String("root", cfg.Simulation.Root),
		slog.String("engine", cfg.Script.Engine),
		slog.Bool("proxy", cfg.Proxy.Enabled))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", slog.String("error", err.Error()))
		}
	}

	logger.Info("shutdown complete")
}

// noopHooks disables customization entirely (script.engine: none).
type noopHooks struct{}

func (noopHooks) Apply(ctx context.Context, role simulator.HookRole, sc *simulator.Context) {}
