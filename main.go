package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/chalk-box/app/hub"
	"github.com/chalk-box/app/hub/telemetry"
	"github.com/chalk-box/app/transport"
)

// Config is the host configuration, loaded from YAML with environment
// overrides.
type Config struct {
	Listen         string `yaml:"listen"`
	LocalFilesDir  string `yaml:"localFilesDir"`
	LocalURLPrefix string `yaml:"localUrlPrefix"`
	UpdateKey      string `yaml:"updateKey"`
	LogLevel       string `yaml:"logLevel"`
}

func loadConfig(path string) (Config, error) {
	cfg := Config{
		Listen:         ":8096",
		LocalURLPrefix: "/local",
		LogLevel:       "info",
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	for env, target := range map[string]*string{
		"HUB_LISTEN":           &cfg.Listen,
		"HUB_LOCAL_FILES_DIR":  &cfg.LocalFilesDir,
		"HUB_LOCAL_URL_PREFIX": &cfg.LocalURLPrefix,
		"HUB_UPDATE_KEY":       &cfg.UpdateKey,
		"HUB_LOG_LEVEL":        &cfg.LogLevel,
	} {
		if v := os.Getenv(env); v != "" {
			*target = v
		}
	}
	return cfg, nil
}

// logrusAdapter exposes a logrus logger through the hub's logging facade.
type logrusAdapter struct {
	log *logrus.Logger
}

func (a logrusAdapter) entry(source []string) *logrus.Entry {
	if len(source) > 0 && source[0] != "" {
		return a.log.WithField("source", source[0])
	}
	return logrus.NewEntry(a.log)
}

func (a logrusAdapter) Error(message string, source ...string) { a.entry(source).Error(message) }
func (a logrusAdapter) Warn(message string, source ...string)  { a.entry(source).Warn(message) }
func (a logrusAdapter) Info(message string, source ...string)  { a.entry(source).Info(message) }
func (a logrusAdapter) Debug(message string, source ...string) { a.entry(source).Debug(message) }
func (a logrusAdapter) Trace(message string, source ...string) { a.entry(source).Trace(message) }

func main() {
	configPath := os.Getenv("HUB_CONFIG")
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	logger := logrusAdapter{log: log}

	recorder := telemetry.NewRecorder()
	h := hub.New(hub.Options{
		LocalFilesDir:  cfg.LocalFilesDir,
		LocalURLPrefix: cfg.LocalURLPrefix,
		UpdateKey:      cfg.UpdateKey,
		Logger:         logger,
		Telemetry:      recorder,
	})
	if err := h.StartContentWatcher(); err != nil {
		log.WithError(err).Warn("content watcher unavailable")
	}

	producer := transport.NewServer(transport.Options{
		Hub:       h,
		Logger:    logger,
		Telemetry: recorder,
	})

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/ws", producer)
	router.Handle(cfg.LocalURLPrefix+"/*", http.StripPrefix(cfg.LocalURLPrefix+"/",
		http.FileServer(http.Dir(h.GetLocalFilesDir()))))
	router.Handle("/metrics", telemetry.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !h.IsReady() {
			http.Error(w, "waiting for competition data", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.WithField("addr", cfg.Listen).Info("competition hub listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		h.StopContentWatcher()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.WithError(err).Fatal("hub exited")
	}
}
