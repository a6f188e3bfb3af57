package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"dealcore/internal/engine"
	"dealcore/internal/events"
	"dealcore/pkg/config"
	"dealcore/pkg/logger"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config; env-only when empty")
	flag.Parse()

	zl, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	logger.Set(zl)
	defer zl.Sync()
	log := logger.Get()

	var cfg *config.Config
	if *cfgPath != "" {
		cfg, err = config.LoadFile(*cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalw("load config", "err", err)
	}
	if !cfg.DryRun {
		log.Fatalw("no venue gateway configured; set DEAL_DRY_RUN=true to run against the simulator")
	}

	eng, err := engine.New(cfg, nil)
	if err != nil {
		log.Fatalw("build engine", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	closed, unsub := eng.Bus().Subscribe(events.TopicDealClosed, 16)
	go func() {
		for ev := range closed {
			log.Infow("deal closed", "deal", ev)
		}
	}()
	defer unsub()

	eng.Start(ctx)
	log.Infow("running", "symbol", cfg.Symbol)

	<-ctx.Done()
	eng.Stop()
}
