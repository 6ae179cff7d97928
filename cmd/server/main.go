package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/agenthands/scrivener/internal/config"
	"github.com/agenthands/scrivener/internal/core"
	"github.com/agenthands/scrivener/internal/dossier"
	"github.com/agenthands/scrivener/internal/graph"
	"github.com/agenthands/scrivener/internal/jobs"
	"github.com/agenthands/scrivener/internal/logging"
	"github.com/agenthands/scrivener/internal/server"
	"github.com/agenthands/scrivener/internal/store"
	"github.com/agenthands/scrivener/internal/transcribe"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using environment as-is")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.WithError(err).Warn("config file not loaded, using defaults")
		cfg = config.Default()
	}

	logging.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logrus.WithField("component", "main")

	ctx := context.Background()

	st, err := store.NewFileStore(cfg.Storage.Root)
	if err != nil {
		log.WithError(err).Fatal("failed to open version store")
	}

	var index *graph.Index
	if cfg.Graph.Enabled {
		driver, err := graph.NewMemgraphDriver(cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password)
		if err != nil {
			log.WithError(err).Warn("graph mirror unavailable, continuing without it")
		} else {
			index = graph.NewIndex(driver)
			if err := index.BuildIndices(ctx); err != nil {
				log.WithError(err).Warn("failed to build graph indices")
			}
			defer index.Close(ctx)
		}
	}

	engines := make([]transcribe.Engine, 0, len(cfg.Engines))
	for _, ec := range cfg.Engines {
		engine, err := transcribe.NewEngine(ctx, ec)
		if err != nil {
			log.WithError(err).WithField("provider", ec.Provider).Warn("skipping engine")
			continue
		}
		engines = append(engines, engine)
		log.WithField("provider", ec.Provider).Info("transcription engine ready")
	}
	if len(engines) == 0 {
		log.Warn("no transcription engines configured; submissions will be rejected")
	}

	bus := dossier.NewBus()
	dossiers, err := dossier.NewService(cfg.Storage.Root, st, index, bus)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize dossier service")
	}

	scriv := core.NewScrivener(st, transcribe.NewRunner(engines), dossiers, bus, cfg.Preprocess.MaxDimension)

	dispatcher := jobs.NewDispatcher(cfg.Jobs.Workers, cfg.Jobs.QueueSize)
	defer dispatcher.Stop()

	srv := server.NewServer(scriv, dispatcher)
	r := srv.SetupRouter()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.WithField("addr", addr).Info("starting server")
	if err := r.Run(addr); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
