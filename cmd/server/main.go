package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rmf-academy/course-server/internal/api"
	"github.com/rmf-academy/course-server/internal/content"
	"github.com/rmf-academy/course-server/internal/platform/cache"
	"github.com/rmf-academy/course-server/internal/platform/config"
	"github.com/rmf-academy/course-server/internal/platform/database"
	"github.com/rmf-academy/course-server/internal/progress"
	"github.com/rmf-academy/course-server/internal/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	repo, err := content.New(cfg.Content.Dir)
	if err != nil {
		slog.Error("failed to load course content", "dir", cfg.Content.Dir, "error", err)
		os.Exit(1)
	}

	store, cleanup, err := newStore(ctx, cfg, repo)
	if err != nil {
		slog.Error("failed to initialize progress store", "backend", cfg.Progress.Backend, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	speech := newSpeechClient(ctx, cfg)

	srv := api.New(repo, store, speech, cfg.CORS.AllowedOrigins)
	handler := newRootHandler(srv, cfg.Static.Dir)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      api.CORS(cfg.CORS.AllowedOrigins, handler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", httpSrv.Addr, "backend", cfg.Progress.Backend)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// newStore builds the configured progress store. The returned cleanup func
// releases backend resources.
func newStore(ctx context.Context, cfg *config.Config, counts progress.LessonCounter) (progress.Store, func(), error) {
	switch cfg.Progress.Backend {
	case config.BackendPostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, nil, err
		}
		store, err := progress.NewPostgresStore(ctx, db.Pool, counts)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	default:
		store, err := progress.NewFileStore(cfg.Progress.FilePath, counts)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

// newSpeechClient wires the TTS engine and its audio cache. Either piece is
// optional; a missing engine degrades the TTS endpoints rather than the
// whole server.
func newSpeechClient(ctx context.Context, cfg *config.Config) *tts.Client {
	if cfg.TTS.EngineURL == "" {
		slog.Info("speech synthesis disabled, no engine configured")
		return nil
	}

	var audioCache *cache.Cache
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Warn("audio cache unavailable, synthesizing uncached", "error", err)
		} else {
			audioCache = c
		}
	}

	return tts.NewClient(cfg.TTS.EngineURL, audioCache, cfg.Cache.AudioTTL)
}

// newRootHandler mounts the API and, when a client build exists, serves it
// for every non-API path so the SPA router works on deep links.
func newRootHandler(srv *api.Server, staticDir string) http.Handler {
	mux := srv.Routes()
	if staticDir == "" {
		return mux
	}
	if _, err := os.Stat(staticDir); err != nil {
		slog.Info("static client not found, serving API only", "dir", staticDir)
		return mux
	}

	fileServer := http.FileServer(http.Dir(staticDir))
	root := http.NewServeMux()
	root.Handle("/api/", mux)
	root.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		path := staticDir + r.URL.Path
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			if r.URL.Path != "/" {
				http.ServeFile(w, r, staticDir+"/index.html")
				return
			}
		}
		fileServer.ServeHTTP(w, r)
	})
	return root
}
